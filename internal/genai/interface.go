package genai

import "context"

// GeneratorIface 生成服务接口：文生图、描述增强与翻译
type GeneratorIface interface {
	// GenerateImage 返回生成图片的远程 URL；失败时返回 *GenerationError
	GenerateImage(ctx context.Context, description string, styleID string) (string, error)
	// GenerateDescription 文本为空时生成随机场景描述，否则增强描述；失败时原样返回输入
	GenerateDescription(ctx context.Context, text string, styleID string) string
	// TranslateText 翻译文本；失败时返回内联的错误字符串
	TranslateText(ctx context.Context, text string, targetLanguage string) string
}
