package genai

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// GenerationError 生成请求失败。StatusCode 为 0 表示传输层错误（请求未得到响应）。
type GenerationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("generation request failed: %s", e.Message)
	}
	return fmt.Sprintf("generation api error: status %d: %s", e.StatusCode, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// wrapError 将 SDK 错误转换为 GenerationError，提取状态码与服务端错误信息
func wrapError(err error) *GenerationError {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &GenerationError{Message: err.Error(), Err: err}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error()
	}
	return &GenerationError{StatusCode: apiErr.StatusCode, Message: msg, Err: err}
}
