// Package studio 驱动一次完整的生成流程：必要时先生成描述，再生成图片，最后写入历史。
// 同一时刻只允许一个生成任务，结果通过 channel 按顺序投递给调用方。
package studio

import (
	"context"
	"errors"
	"strings"
	"sync"

	"imagegen-studio/common"
	"imagegen-studio/internal/genai"
	"imagegen-studio/internal/history"

	"github.com/google/uuid"
)

// ErrBusy 已有生成任务在执行
var ErrBusy = errors.New("a generation is already in progress")

// Saver 历史存储中生成流程用到的部分
type Saver interface {
	SaveImage(ctx context.Context, imageURL string, description string, format string) (string, error)
	Len() int
	Entry(index int) (history.Entry, bool)
}

// Request 一次生成请求，不会被持久化
type Request struct {
	Description string
	Style       string
	Format      string // png 或 jpeg
}

// EventKind 事件类型
type EventKind int

const (
	// EventDescription 描述为空时自动生成的描述
	EventDescription EventKind = iota + 1
	// EventImage 图片已生成，尚未保存
	EventImage
	// EventSaved 图片已写入历史，终止事件
	EventSaved
	// EventFailed 流程失败，终止事件
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventDescription:
		return "description"
	case EventImage:
		return "image"
	case EventSaved:
		return "saved"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event 任务进度
type Event struct {
	Kind        EventKind
	Description string
	ImageURL    string
	Path        string
	Entry       history.Entry
	Index       int
	Err         error
}

// Task 一次正在执行的生成任务
type Task struct {
	ID     string
	events chan Event
	cancel context.CancelFunc
}

// Events 按顺序返回任务事件。channel 关闭即任务结束，此后才能启动下一个任务
func (t *Task) Events() <-chan Event {
	return t.events
}

// Cancel 取消任务；正在进行的 HTTP 调用随 context 中止
func (t *Task) Cancel() {
	t.cancel()
}

// Wait 等待任务结束并返回终止事件
func (t *Task) Wait() Event {
	var last Event
	for ev := range t.events {
		last = ev
	}
	return last
}

// Runner 串行执行生成任务
type Runner struct {
	generator genai.GeneratorIface
	store     Saver

	mu      sync.Mutex
	current *Task
}

// NewRunner 创建任务执行器
func NewRunner(generator genai.GeneratorIface, store Saver) *Runner {
	return &Runner{generator: generator, store: store}
}

// Busy 是否有任务在执行
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Start 在后台启动一次生成，已有任务未结束时返回 ErrBusy
func (r *Runner) Start(ctx context.Context, req Request) (*Task, error) {
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return nil, ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		ID: uuid.NewString(),
		// 事件最多三条，缓冲后后台协程不会因调用方未读而阻塞
		events: make(chan Event, 3),
		cancel: cancel,
	}
	r.current = task
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			r.current = nil
			r.mu.Unlock()
			close(task.events)
		}()
		r.run(ctx, task, req)
	}()

	return task, nil
}

// run 描述生成（如需要）总是先于图片生成完成并投递；写历史严格在图片下载成功之后
func (r *Runner) run(ctx context.Context, task *Task, req Request) {
	logger := common.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"style":   req.Style,
		"format":  req.Format,
	})

	description := req.Description
	if strings.TrimSpace(description) == "" {
		description = r.generator.GenerateDescription(ctx, "", req.Style)
		task.events <- Event{Kind: EventDescription, Description: description}
	}

	if err := ctx.Err(); err != nil {
		task.events <- Event{Kind: EventFailed, Description: description, Err: err}
		return
	}

	imageURL, err := r.generator.GenerateImage(ctx, description, req.Style)
	if err != nil {
		logger.WithError(err).Warn("Generation task failed at image generation")
		task.events <- Event{Kind: EventFailed, Description: description, Err: err}
		return
	}
	task.events <- Event{Kind: EventImage, Description: description, ImageURL: imageURL}

	path, err := r.store.SaveImage(ctx, imageURL, description, req.Format)
	if err != nil {
		logger.WithError(err).Warn("Generation task failed at saving")
		task.events <- Event{Kind: EventFailed, Description: description, ImageURL: imageURL, Err: err}
		return
	}

	index := r.store.Len() - 1
	entry, _ := r.store.Entry(index)
	logger.WithField("path", path).Info("Generation task finished")
	task.events <- Event{
		Kind:        EventSaved,
		Description: description,
		ImageURL:    imageURL,
		Path:        path,
		Entry:       entry,
		Index:       index,
	}
}

// Enhance 描述增强，与生成任务互斥
func (r *Runner) Enhance(ctx context.Context, text string, styleID string) (string, error) {
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return text, ErrBusy
	}
	// 占位任务，保证增强期间不会启动生成
	placeholder := &Task{ID: uuid.NewString()}
	r.current = placeholder
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	}()

	return r.generator.GenerateDescription(ctx, text, styleID), nil
}
