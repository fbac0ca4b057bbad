package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagegen-studio/common"
	"imagegen-studio/internal/style"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// 文生图固定参数
	imageCount   = 1
	imageSize    = "1024x1024"
	imageQuality = "standard"

	// 描述生成固定参数
	descriptionMaxTokens   = 150
	descriptionTemperature = 0.7
)

// Client 生成服务客户端。无状态包装：不重试、不限流，单次调用失败即返回。
type Client struct {
	client     openai.Client
	catalog    *style.Catalog
	imageModel string
	chatModel  string
}

// Config 生成服务客户端配置
type Config struct {
	APIKey     string
	BaseURL    string // 为空时使用 SDK 默认地址
	ImageModel string
	ChatModel  string
	// Timeout 为 0 时不设置超时，沿用 HTTP 库默认行为
	Timeout time.Duration
	// HTTPClient 可选，测试时注入
	HTTPClient *http.Client
}

// NewClientFromConfig 从通用配置创建客户端
func NewClientFromConfig(cfg *common.Config, catalog *style.Catalog) (*Client, error) {
	return NewClient(Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ImageModel: cfg.ImageModelName,
		ChatModel:  cfg.ChatModelName,
		Timeout:    time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	}, catalog)
}

// NewClient 创建生成服务客户端
func NewClient(cfg Config, catalog *style.Catalog) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("style catalog is required")
	}

	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// 失败策略由调用方决定，SDK 不做重试
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		catalog:    catalog,
		imageModel: imageModel,
		chatModel:  chatModel,
	}, nil
}

// BuildImagePrompt 组合最终的图片提示词："{prefix} {description}. {suffix}"
func BuildImagePrompt(def style.Definition, description string) string {
	return fmt.Sprintf("%s %s. %s", def.Prefix, description, def.Suffix)
}

// GenerateImage 文生图：按风格模板组合提示词并请求生成一张图片，返回图片 URL
func (c *Client) GenerateImage(ctx context.Context, description string, styleID string) (string, error) {
	def := c.catalog.Resolve(styleID)
	prompt := BuildImagePrompt(def, description)

	common.WithFields(map[string]interface{}{
		"model":  c.imageModel,
		"style":  def.ID,
		"prompt": prompt,
	}).Info("Starting image generation")

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:          openai.ImageModel(c.imageModel),
		Prompt:         prompt,
		N:              openai.Int(imageCount),
		Size:           openai.ImageGenerateParamsSize(imageSize),
		Quality:        openai.ImageGenerateParamsQuality(imageQuality),
		ResponseFormat: openai.ImageGenerateParamsResponseFormat("url"),
	})
	if err != nil {
		genErr := wrapError(err)
		common.WithError(err).WithFields(map[string]interface{}{
			"model":       c.imageModel,
			"status_code": genErr.StatusCode,
		}).Error("Image generation failed")
		return "", genErr
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		common.WithField("model", c.imageModel).Error("Image generation response has no image url")
		return "", &GenerationError{StatusCode: http.StatusOK, Message: "response contains no image url"}
	}

	imageURL := resp.Data[0].URL
	common.WithField("image_url", imageURL).Debug("Image generated")
	return imageURL, nil
}

// GenerateDescription 文本为空时请求一段随机场景描述，否则结合风格要求增强描述。
// 描述增强属于非关键功能，失败时原样返回输入。
func (c *Client) GenerateDescription(ctx context.Context, text string, styleID string) string {
	var prompt string
	if strings.TrimSpace(text) == "" {
		prompt = randomScenePrompt()
	} else {
		prompt = enhancePrompt(text, c.catalog.Resolve(styleID))
	}

	out, err := c.chat(ctx, prompt, true)
	if err != nil {
		common.WithError(err).Warn("Description generation failed, keeping original text")
		return text
	}
	if out == "" {
		return text
	}
	return out
}

// TranslateText 将文本翻译为目标语言；失败时返回错误字符串而不是 error
func (c *Client) TranslateText(ctx context.Context, text string, targetLanguage string) string {
	prompt := translatePrompt(text, LanguageName(targetLanguage))

	out, err := c.chat(ctx, prompt, false)
	if err != nil {
		common.WithError(err).WithField("language", targetLanguage).Warn("Translation failed")
		return fmt.Sprintf("Translation error: %v", err)
	}
	return out
}

// chat 发送单条用户消息，返回第一条回复内容
func (c *Client) chat(ctx context.Context, prompt string, bounded bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if bounded {
		params.MaxTokens = openai.Int(descriptionMaxTokens)
		params.Temperature = openai.Float(descriptionTemperature)
	}

	common.WithFields(map[string]interface{}{
		"model":  c.chatModel,
		"prompt": prompt,
	}).Debug("Sending chat completion request")

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{StatusCode: http.StatusOK, Message: "response contains no choices"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
