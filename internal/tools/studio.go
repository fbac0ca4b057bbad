package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imagegen-studio/common"
	"imagegen-studio/internal/genai"
	"imagegen-studio/internal/history"
	"imagegen-studio/internal/imgutil"
	"imagegen-studio/internal/studio"
	"imagegen-studio/internal/style"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Deps 工具依赖的核心组件
type Deps struct {
	Catalog   *style.Catalog
	Generator genai.GeneratorIface
	Store     *history.Store
	Runner    *studio.Runner
}

type studioTools struct {
	Deps
}

// RegisterStudioTools 注册图片生成、描述增强、翻译、历史浏览与风格管理的 MCP tools
func RegisterStudioTools(s *server.MCPServer, deps Deps) error {
	if deps.Catalog == nil || deps.Generator == nil || deps.Store == nil || deps.Runner == nil {
		return fmt.Errorf("studio tools require catalog, generator, store and runner")
	}
	h := &studioTools{Deps: deps}

	s.AddTool(mcp.NewTool(
		"generate_image",
		mcp.WithDescription("Generate an image from a text description in the selected style and save it to the local history. "+
			"An empty description asks the model to invent a random scene first."),
		mcp.WithString("description",
			mcp.Description("Text description of the image. Leave empty for a random scene."),
		),
		mcp.WithString("style",
			mcp.Description("Style id: "+strings.Join(deps.Catalog.IDs(), ", ")+". Unknown ids use default."),
		),
		mcp.WithString("format",
			mcp.Description("Output file format: png (default) or jpeg."),
		),
	), h.handleGenerateImage)

	s.AddTool(mcp.NewTool(
		"enhance_description",
		mcp.WithDescription("Enrich an image description with concrete visual details for the selected style. "+
			"An empty text returns a random scene description."),
		mcp.WithString("text", mcp.Description("Description to enhance.")),
		mcp.WithString("style", mcp.Description("Style id used as conditioning.")),
	), h.handleEnhanceDescription)

	s.AddTool(mcp.NewTool(
		"translate_text",
		mcp.WithDescription("Translate text to the target language."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to translate.")),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Target language code, e.g. en, ru, de, fr, es, it, zh, ja, uk."),
		),
	), h.handleTranslateText)

	s.AddTool(mcp.NewTool(
		"list_history",
		mcp.WithDescription("List past generations, oldest first, as JSON."),
	), h.handleListHistory)

	s.AddTool(mcp.NewTool(
		"show_history_entry",
		mcp.WithDescription("Return a stored image from the history. Out-of-range indexes are clamped; -1 means the latest entry."),
		mcp.WithNumber("index", mcp.Description("History index, 0 is the oldest entry.")),
	), h.handleShowHistoryEntry)

	s.AddTool(mcp.NewTool(
		"list_styles",
		mcp.WithDescription("List available styles with their prompt templates as JSON."),
	), h.handleListStyles)

	s.AddTool(mcp.NewTool(
		"save_custom_style",
		mcp.WithDescription("Save the custom style. The text describes the rendering conventions of the style."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Custom style instructions.")),
	), h.handleSaveCustomStyle)

	return nil
}

type generateResult struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Path        string `json:"path"`
	Index       int    `json:"index"`
}

func (h *studioTools) handleGenerateImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	genReq := studio.Request{
		Description: req.GetString("description", ""),
		Style:       req.GetString("style", style.DefaultID),
		Format:      imgutil.NormalizeFormat(req.GetString("format", imgutil.FormatPNG)),
	}

	task, err := h.Runner.Start(ctx, genReq)
	if err != nil {
		if errors.Is(err, studio.ErrBusy) {
			return mcp.NewToolResultError("another generation is still running, try again when it finishes"), nil
		}
		common.WithError(err).Error("Failed to start generation task")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start generation: %v", err)), nil
	}

	last := task.Wait()
	if last.Kind != studio.EventSaved {
		common.WithError(last.Err).WithField("task_id", task.ID).Error("Generation task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate image: %v", last.Err)), nil
	}

	return jsonResult(generateResult{
		Description: last.Description,
		ImageURL:    last.ImageURL,
		Path:        last.Path,
		Index:       last.Index,
	})
}

func (h *studioTools) handleEnhanceDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	out, err := h.Runner.Enhance(ctx, text, req.GetString("style", style.DefaultID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to enhance description: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (h *studioTools) handleTranslateText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("text parameter is required: %v", err)), nil
	}
	language, err := req.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("language parameter is required: %v", err)), nil
	}
	return mcp.NewToolResultText(h.Generator.TranslateText(ctx, text, language)), nil
}

func (h *studioTools) handleListHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.Store.History())
}

func (h *studioTools) handleShowHistoryEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cursor := history.NewCursor(h.Store.Len())
	if cursor.Index() < 0 {
		return mcp.NewToolResultError("history is empty"), nil
	}
	if index := req.GetInt("index", -1); index >= 0 {
		cursor.Seek(index)
	}

	entry, ok := h.Store.Entry(cursor.Index())
	if !ok {
		return mcp.NewToolResultError("history entry not found"), nil
	}

	img, err := h.Store.LoadImage(entry.ImagePath)
	if err != nil {
		common.WithError(err).WithField("image_path", entry.ImagePath).Warn("Failed to load history image")
		return mcp.NewToolResultError(fmt.Sprintf("failed to load image %s: %v", entry.ImagePath, err)), nil
	}
	data, err := imgutil.Encode(img, entry.Format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode image: %v", err)), nil
	}

	caption := fmt.Sprintf("#%d of %d (%s): %s", cursor.Index()+1, h.Store.Len(), entry.Timestamp, entry.Description)
	return mcp.NewToolResultImage(caption, base64.StdEncoding.EncodeToString(data), imgutil.MimeType(entry.Format)), nil
}

func (h *studioTools) handleListStyles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := h.Catalog.IDs()
	defs := make([]style.Definition, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, h.Catalog.Resolve(id))
	}
	return jsonResult(defs)
}

func (h *studioTools) handleSaveCustomStyle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("text parameter is required: %v", err)), nil
	}
	if err := h.Catalog.SaveCustom(text); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save custom style: %v", err)), nil
	}
	return mcp.NewToolResultText("custom style saved"), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
