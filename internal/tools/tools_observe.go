package tools

import (
	"context"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
)

// GetConsoleLogsTool reads the per-tab console ring buffer.
type GetConsoleLogsTool struct {
	engine *browser.Engine
}

func NewGetConsoleLogsTool(engine *browser.Engine) *GetConsoleLogsTool {
	return &GetConsoleLogsTool{engine: engine}
}

func (t *GetConsoleLogsTool) Name() string { return "get_console_logs" }

func (t *GetConsoleLogsTool) Description() string {
	return "Read buffered console messages and uncaught exceptions for a tab, with level/text filters"
}

func (t *GetConsoleLogsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Keep only the most recent N matching entries (0 = all)",
			},
			"level": map[string]interface{}{
				"type":        "string",
				"description": "Filter by level: log, info, warn, error, debug",
			},
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Case-insensitive substring filter on message text",
			},
			"clear": map[string]interface{}{
				"type":        "boolean",
				"description": "Empty the buffer after reading",
			},
		},
	}
}

func (t *GetConsoleLogsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.engine.ConsoleLogs(ctx,
		getStringArg(args, "tab_id"),
		getIntArg(args, "limit", 0),
		getStringArg(args, "level"),
		getStringArg(args, "search"),
		getBoolArg(args, "clear", false))
}

// GetNetworkRequestsTool reads the per-tab network ring buffer.
type GetNetworkRequestsTool struct {
	engine *browser.Engine
}

func NewGetNetworkRequestsTool(engine *browser.Engine) *GetNetworkRequestsTool {
	return &GetNetworkRequestsTool{engine: engine}
}

func (t *GetNetworkRequestsTool) Name() string { return "get_network_requests" }

func (t *GetNetworkRequestsTool) Description() string {
	return "Read buffered network requests for a tab, with status and URL filters"
}

func (t *GetNetworkRequestsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Keep only the most recent N matching entries (0 = all)",
			},
			"status": map[string]interface{}{
				"type":        "string",
				"description": "Filter by status: a numeric code, \"pending\", or \"failed\"",
			},
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Case-insensitive substring filter on the request URL",
			},
			"clear": map[string]interface{}{
				"type":        "boolean",
				"description": "Empty the buffer after reading",
			},
		},
	}
}

func (t *GetNetworkRequestsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.engine.NetworkRequests(ctx,
		getStringArg(args, "tab_id"),
		getIntArg(args, "limit", 0),
		getStringArg(args, "status"),
		getStringArg(args, "search"),
		getBoolArg(args, "clear", false))
}

// GetPageContextTool runs the lightweight page probe on its own, without
// a screenshot.
type GetPageContextTool struct {
	engine *browser.Engine
}

func NewGetPageContextTool(engine *browser.Engine) *GetPageContextTool {
	return &GetPageContextTool{engine: engine}
}

func (t *GetPageContextTool) Name() string { return "get_page_context" }

func (t *GetPageContextTool) Description() string {
	return "Probe the rendered page for its heading, interactive element counts, and visible dialogs or error styling"
}

func (t *GetPageContextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
		},
	}
}

func (t *GetPageContextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.engine.PageContextProbe(ctx, getStringArg(args, "tab_id"))
}
