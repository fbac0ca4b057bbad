package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"imagegen-studio/internal/style"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 记录收到的请求，并按路径返回预设响应
type fakeProvider struct {
	mu       sync.Mutex
	requests []recordedRequest

	imageStatus int
	imageBody   string
	chatStatus  int
	chatBody    string
}

type recordedRequest struct {
	Path          string
	Authorization string
	Body          map[string]interface{}
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/images/generations"):
		w.WriteHeader(f.imageStatus)
		_, _ = w.Write([]byte(f.imageBody))
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		w.WriteHeader(f.chatStatus)
		_, _ = w.Write([]byte(f.chatBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProvider) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request reached the provider")
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func chatReply(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": content},
		}},
	})
	return string(data)
}

const providerError = `{"error":{"message":"Your request was rejected","type":"invalid_request_error","code":"content_policy_violation"}}`

func newTestClient(t *testing.T, provider *fakeProvider) (*Client, *style.Catalog) {
	t.Helper()
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	catalog := style.NewCatalog(filepath.Join(t.TempDir(), "custom_style.txt"))
	client, err := NewClient(Config{
		APIKey:     "sk-test",
		BaseURL:    server.URL + "/v1",
		HTTPClient: server.Client(),
	}, catalog)
	require.NoError(t, err)
	return client, catalog
}

func TestNewClient_Validation(t *testing.T) {
	catalog := style.NewCatalog("")

	_, err := NewClient(Config{}, catalog)
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "sk-test"}, nil)
	assert.Error(t, err)
}

func TestGenerateImage_Success(t *testing.T) {
	provider := &fakeProvider{
		imageStatus: http.StatusOK,
		imageBody:   `{"created":1700000000,"data":[{"url":"https://images.example.com/fox.png"}]}`,
	}
	client, catalog := newTestClient(t, provider)

	url, err := client.GenerateImage(context.Background(), "a red fox in snow", "watercolor")
	require.NoError(t, err)
	assert.Equal(t, "https://images.example.com/fox.png", url)

	req := provider.last(t)
	assert.Equal(t, "/v1/images/generations", req.Path)
	assert.Equal(t, "Bearer sk-test", req.Authorization)

	def := catalog.Resolve("watercolor")
	assert.Equal(t, def.Prefix+" a red fox in snow. "+def.Suffix, req.Body["prompt"])
	assert.Equal(t, "dall-e-3", req.Body["model"])
	assert.EqualValues(t, 1, req.Body["n"])
	assert.Equal(t, "1024x1024", req.Body["size"])
	assert.Equal(t, "standard", req.Body["quality"])
}

func TestGenerateImage_UnknownStyleUsesDefault(t *testing.T) {
	provider := &fakeProvider{
		imageStatus: http.StatusOK,
		imageBody:   `{"created":1700000000,"data":[{"url":"https://images.example.com/x.png"}]}`,
	}
	client, catalog := newTestClient(t, provider)

	_, err := client.GenerateImage(context.Background(), "a cat", "no-such-style")
	require.NoError(t, err)

	def := catalog.Resolve(style.DefaultID)
	assert.Equal(t, BuildImagePrompt(def, "a cat"), provider.last(t).Body["prompt"])
}

func TestGenerateImage_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{
		imageStatus: http.StatusBadRequest,
		imageBody:   providerError,
	}
	client, _ := newTestClient(t, provider)

	url, err := client.GenerateImage(context.Background(), "a cat", "default")
	require.Error(t, err)
	assert.Empty(t, url)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, http.StatusBadRequest, genErr.StatusCode)
	assert.NotEmpty(t, genErr.Message)
	// 不重试
	assert.Equal(t, 1, provider.count())
}

func TestGenerateImage_ServerErrorIsNotRetried(t *testing.T) {
	provider := &fakeProvider{
		imageStatus: http.StatusInternalServerError,
		imageBody:   `{"error":{"message":"boom","type":"server_error"}}`,
	}
	client, _ := newTestClient(t, provider)

	_, err := client.GenerateImage(context.Background(), "a cat", "default")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusInternalServerError, genErr.StatusCode)
	assert.Equal(t, 1, provider.count())
}

func TestGenerateImage_EmptyData(t *testing.T) {
	provider := &fakeProvider{
		imageStatus: http.StatusOK,
		imageBody:   `{"created":1700000000,"data":[]}`,
	}
	client, _ := newTestClient(t, provider)

	_, err := client.GenerateImage(context.Background(), "a cat", "default")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusOK, genErr.StatusCode)
}

func TestGenerateImage_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: baseURL}, style.NewCatalog(""))
	require.NoError(t, err)

	_, err = client.GenerateImage(context.Background(), "a cat", "default")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 0, genErr.StatusCode)
}

func TestGenerateDescription_RandomScene(t *testing.T) {
	provider := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   chatReply("A lighthouse on a cliff at dusk."),
	}
	client, _ := newTestClient(t, provider)

	for _, input := range []string{"", "   \n"} {
		out := client.GenerateDescription(context.Background(), input, "default")
		assert.Equal(t, "A lighthouse on a cliff at dusk.", out)

		req := provider.last(t)
		assert.Equal(t, "/v1/chat/completions", req.Path)
		assert.Equal(t, randomScenePrompt(), firstMessage(t, req))
	}
}

func TestGenerateDescription_Enhance(t *testing.T) {
	provider := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   chatReply("  Two tabby cats on a sunlit windowsill.  "),
	}
	client, catalog := newTestClient(t, provider)

	out := client.GenerateDescription(context.Background(), "a cat", "comic")
	assert.Equal(t, "Two tabby cats on a sunlit windowsill.", out)

	req := provider.last(t)
	content := firstMessage(t, req)
	assert.Contains(t, content, "a cat")
	assert.Contains(t, content, catalog.Resolve("comic").Suffix)
	assert.NotEqual(t, randomScenePrompt(), content)
	assert.EqualValues(t, descriptionMaxTokens, req.Body["max_tokens"])
	assert.InDelta(t, descriptionTemperature, req.Body["temperature"], 0.0001)
	assert.Equal(t, "gpt-4", req.Body["model"])
}

func TestGenerateDescription_FailureKeepsInput(t *testing.T) {
	provider := &fakeProvider{
		chatStatus: http.StatusUnauthorized,
		chatBody:   providerError,
	}
	client, _ := newTestClient(t, provider)

	assert.Equal(t, "a cat", client.GenerateDescription(context.Background(), "a cat", "default"))
	assert.Equal(t, "", client.GenerateDescription(context.Background(), "", "default"))
}

func TestTranslateText(t *testing.T) {
	provider := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   chatReply("Рыжая лиса в снегу"),
	}
	client, _ := newTestClient(t, provider)

	out := client.TranslateText(context.Background(), "a red fox in snow", "ru")
	assert.Equal(t, "Рыжая лиса в снегу", out)

	content := firstMessage(t, provider.last(t))
	assert.Contains(t, content, "Translate this text to Russian")
	assert.Contains(t, content, "a red fox in snow")
	// 翻译请求不携带描述生成的长度与温度参数
	_, hasMaxTokens := provider.last(t).Body["max_tokens"]
	assert.False(t, hasMaxTokens)
}

func TestTranslateText_UnknownCodeAndFailure(t *testing.T) {
	provider := &fakeProvider{
		chatStatus: http.StatusTooManyRequests,
		chatBody:   providerError,
	}
	client, _ := newTestClient(t, provider)

	out := client.TranslateText(context.Background(), "hello", "eo")
	assert.True(t, strings.HasPrefix(out, "Translation error:"), out)
	assert.Contains(t, firstMessage(t, provider.last(t)), "Translate this text to eo")
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", LanguageName("en"))
	assert.Equal(t, "German", LanguageName(" DE "))
	assert.Equal(t, "xx", LanguageName("xx"))
}

func firstMessage(t *testing.T, req recordedRequest) string {
	t.Helper()
	messages, ok := req.Body["messages"].([]interface{})
	require.True(t, ok, "messages missing in %v", req.Body)
	require.Len(t, messages, 1)

	msg, ok := messages[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user", msg["role"])

	content, ok := msg["content"].(string)
	require.True(t, ok, "content is not a plain string: %v", msg["content"])
	return content
}
