package tools

import (
	"context"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
)

// StartBrowserTool ensures a debuggable browser is listening on the
// configured debug port, launching one when needed.
type StartBrowserTool struct {
	engine *browser.Engine
}

func NewStartBrowserTool(engine *browser.Engine) *StartBrowserTool {
	return &StartBrowserTool{engine: engine}
}

func (t *StartBrowserTool) Name() string { return "start_browser" }

func (t *StartBrowserTool) Description() string {
	return "Ensure a Chrome or Chromium instance is running with remote debugging enabled, launching one if needed"
}

func (t *StartBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to open once the browser is up",
			},
		},
	}
}

func (t *StartBrowserTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	result, err := t.engine.StartBrowser(ctx, getStringArg(args, "url"))
	if err != nil {
		return nil, err
	}
	return result, nil
}
