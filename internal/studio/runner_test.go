package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imagegen-studio/internal/genai"
	"imagegen-studio/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []string

	description string
	imageURL    string
	imageErr    error
	// block 非空时 GenerateImage 会等待其关闭或 ctx 取消
	block chan struct{}
}

func (g *fakeGenerator) record(call string) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, description string, styleID string) (string, error) {
	g.record("image:" + description)
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", &genai.GenerationError{Message: ctx.Err().Error(), Err: ctx.Err()}
		}
	}
	if g.imageErr != nil {
		return "", g.imageErr
	}
	return g.imageURL, nil
}

func (g *fakeGenerator) GenerateDescription(ctx context.Context, text string, styleID string) string {
	g.record("describe:" + text)
	if g.description == "" {
		return text
	}
	return g.description
}

func (g *fakeGenerator) TranslateText(ctx context.Context, text string, targetLanguage string) string {
	return text
}

type fakeSaver struct {
	entries []history.Entry
	err     error
}

func (s *fakeSaver) SaveImage(ctx context.Context, imageURL string, description string, format string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.entries = append(s.entries, history.Entry{Description: description, ImagePath: "image.png", Format: format})
	return "/tmp/images/image.png", nil
}

func (s *fakeSaver) Len() int { return len(s.entries) }

func (s *fakeSaver) Entry(index int) (history.Entry, bool) {
	if index < 0 || index >= len(s.entries) {
		return history.Entry{}, false
	}
	return s.entries[index], true
}

func collect(t *testing.T, task *Task) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("task did not finish in time")
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestRunner_WithDescription(t *testing.T) {
	gen := &fakeGenerator{imageURL: "https://images.example.com/1.png"}
	saver := &fakeSaver{}
	r := NewRunner(gen, saver)

	task, err := r.Start(context.Background(), Request{Description: "a red fox in snow", Style: "default", Format: "png"})
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	events := collect(t, task)
	assert.Equal(t, []EventKind{EventImage, EventSaved}, kinds(events))

	saved := events[1]
	assert.Equal(t, "/tmp/images/image.png", saved.Path)
	assert.Equal(t, "a red fox in snow", saved.Entry.Description)
	assert.Equal(t, 0, saved.Index)
	assert.Equal(t, []string{"image:a red fox in snow"}, gen.calls)
	assert.False(t, r.Busy())
}

func TestRunner_EmptyDescriptionGeneratedFirst(t *testing.T) {
	gen := &fakeGenerator{description: "A lighthouse at dusk.", imageURL: "https://images.example.com/2.png"}
	r := NewRunner(gen, &fakeSaver{})

	task, err := r.Start(context.Background(), Request{Description: "  ", Format: "jpeg"})
	require.NoError(t, err)

	events := collect(t, task)
	assert.Equal(t, []EventKind{EventDescription, EventImage, EventSaved}, kinds(events))
	assert.Equal(t, "A lighthouse at dusk.", events[0].Description)
	assert.Equal(t, []string{"describe:", "image:A lighthouse at dusk."}, gen.calls)
	assert.Equal(t, "jpeg", events[2].Entry.Format)
}

func TestRunner_ImageFailureSkipsSave(t *testing.T) {
	gen := &fakeGenerator{imageErr: &genai.GenerationError{StatusCode: 400, Message: "rejected"}}
	saver := &fakeSaver{}
	r := NewRunner(gen, saver)

	task, err := r.Start(context.Background(), Request{Description: "x"})
	require.NoError(t, err)

	last := task.Wait()
	assert.Equal(t, EventFailed, last.Kind)
	var genErr *genai.GenerationError
	require.ErrorAs(t, last.Err, &genErr)
	assert.Equal(t, 400, genErr.StatusCode)
	assert.Empty(t, saver.entries)
}

func TestRunner_SaveFailure(t *testing.T) {
	gen := &fakeGenerator{imageURL: "https://images.example.com/3.png"}
	r := NewRunner(gen, &fakeSaver{err: errors.New("disk full")})

	task, err := r.Start(context.Background(), Request{Description: "x"})
	require.NoError(t, err)

	events := collect(t, task)
	assert.Equal(t, []EventKind{EventImage, EventFailed}, kinds(events))
	assert.EqualError(t, events[1].Err, "disk full")
	assert.Equal(t, "https://images.example.com/3.png", events[1].ImageURL)
}

func TestRunner_BusyAndCancel(t *testing.T) {
	gen := &fakeGenerator{imageURL: "https://images.example.com/4.png", block: make(chan struct{})}
	r := NewRunner(gen, &fakeSaver{})

	task, err := r.Start(context.Background(), Request{Description: "x"})
	require.NoError(t, err)
	assert.True(t, r.Busy())

	_, err = r.Start(context.Background(), Request{Description: "y"})
	assert.ErrorIs(t, err, ErrBusy)

	_, err = r.Enhance(context.Background(), "z", "default")
	assert.ErrorIs(t, err, ErrBusy)

	task.Cancel()
	last := task.Wait()
	assert.Equal(t, EventFailed, last.Kind)
	assert.ErrorIs(t, last.Err, context.Canceled)
	assert.False(t, r.Busy())

	// 上一个任务结束后可以再次启动
	gen.block = nil
	task, err = r.Start(context.Background(), Request{Description: "y"})
	require.NoError(t, err)
	assert.Equal(t, EventSaved, task.Wait().Kind)
}

func TestRunner_Enhance(t *testing.T) {
	gen := &fakeGenerator{description: "Two cats on a windowsill."}
	r := NewRunner(gen, &fakeSaver{})

	out, err := r.Enhance(context.Background(), "a cat", "comic")
	require.NoError(t, err)
	assert.Equal(t, "Two cats on a windowsill.", out)
	assert.False(t, r.Busy())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "description", EventDescription.String())
	assert.Equal(t, "saved", EventSaved.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
