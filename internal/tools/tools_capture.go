package tools

import (
	"context"
	"fmt"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
	"github.com/chipp-ai/dispatch-sub015/internal/vision"
)

// TakeScreenshotTool captures a tab as an encoded image.
type TakeScreenshotTool struct {
	engine *browser.Engine
}

func NewTakeScreenshotTool(engine *browser.Engine) *TakeScreenshotTool {
	return &TakeScreenshotTool{engine: engine}
}

func (t *TakeScreenshotTool) Name() string { return "take_screenshot" }

func (t *TakeScreenshotTool) Description() string {
	return "Capture the viewport or full page as a base64 image, bundled with a page context probe"
}

func (t *TakeScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of the viewport",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Image format: png (default) or jpeg",
			},
			"quality": map[string]interface{}{
				"type":        "integer",
				"description": "JPEG quality 1-100 (ignored for png)",
			},
		},
	}
}

func (t *TakeScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.engine.Screenshot(ctx,
		getStringArg(args, "tab_id"),
		getBoolArg(args, "full_page", false),
		getStringArg(args, "format"),
		getIntArg(args, "quality", 0))
}

// pageRefArg reads one side of a comparison from args. Either the tab
// or the url key may name it.
func pageRefArg(args map[string]interface{}, tabKey, urlKey string) browser.PageRef {
	return browser.PageRef{
		TabID: getStringArg(args, tabKey),
		URL:   getStringArg(args, urlKey),
	}
}

// CompareScreenshotsTool captures two pages and diffs them pixel by pixel.
type CompareScreenshotsTool struct {
	engine *browser.Engine
}

func NewCompareScreenshotsTool(engine *browser.Engine) *CompareScreenshotsTool {
	return &CompareScreenshotsTool{engine: engine}
}

func (t *CompareScreenshotsTool) Name() string { return "compare_screenshots" }

func (t *CompareScreenshotsTool) Description() string {
	return "Capture two pages (open tabs or URLs) and compare them perceptually, returning a match percentage and a diff image"
}

func (t *CompareScreenshotsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Reference side: an open tab",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Reference side: a URL to open fresh",
			},
			"compare_tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Comparison side: an open tab",
			},
			"compare_url": map[string]interface{}{
				"type":        "string",
				"description": "Comparison side: a URL to open fresh",
			},
			"threshold": map[string]interface{}{
				"type":        "number",
				"description": "Perceptual sensitivity 0-1, lower is stricter (default 0.1)",
			},
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Compare full pages instead of viewports",
			},
			"save_diff_to": map[string]interface{}{
				"type":        "string",
				"description": "File path to write the diff image to",
			},
		},
	}
}

func (t *CompareScreenshotsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref := pageRefArg(args, "tab_id", "url")
	cmp := pageRefArg(args, "compare_tab_id", "compare_url")
	if cmp.TabID == "" && cmp.URL == "" {
		return nil, fmt.Errorf("either compare_tab_id or compare_url is required")
	}
	return t.engine.CompareScreenshots(ctx, ref, cmp,
		getFloatArg(args, "threshold", vision.DefaultThreshold),
		getBoolArg(args, "full_page", false),
		getStringArg(args, "save_diff_to"))
}

// ExtractDesignTokensTool samples computed styles from a rendered page.
type ExtractDesignTokensTool struct {
	engine *browser.Engine
}

func NewExtractDesignTokensTool(engine *browser.Engine) *ExtractDesignTokensTool {
	return &ExtractDesignTokensTool{engine: engine}
}

func (t *ExtractDesignTokensTool) Name() string { return "extract_design_tokens" }

func (t *ExtractDesignTokensTool) Description() string {
	return "Sample computed styles across a rendered page to extract its colors, fonts, spacing, radii, shadows, and CSS custom properties"
}

func (t *ExtractDesignTokensTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Open tab to sample (defaults to the active tab)",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to open fresh and sample instead of a tab",
			},
		},
	}
}

func (t *ExtractDesignTokensTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.engine.DesignTokens(ctx, pageRefArg(args, "tab_id", "url"))
}
