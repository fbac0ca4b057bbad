package genai

import (
	"fmt"
	"strings"

	"imagegen-studio/internal/style"
)

// languageNames 支持的翻译目标语言
var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"uk": "Ukrainian",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"zh": "Chinese",
	"ja": "Japanese",
}

// LanguageName 返回语言代码对应的名称，未知代码原样返回
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

func randomScenePrompt() string {
	return "Invent a short random scene that would make an interesting picture. " +
		"Describe it in 2-3 sentences with concrete visual details. " +
		"Reply with the description only."
}

func enhancePrompt(text string, def style.Definition) string {
	return fmt.Sprintf("Improve the following image description by adding concrete visual details: "+
		"number of objects, colors, lighting and composition. Keep it to 2-3 sentences and keep the original meaning. "+
		"The image will be rendered with these style requirements: %s\n\nDescription: %s\n\n"+
		"Reply with the improved description only.", def.Suffix, text)
}

func translatePrompt(text string, language string) string {
	return fmt.Sprintf("Translate this text to %s. Reply with the translation only.\n\n%s", language, text)
}
