package tools

import (
	"context"
	"fmt"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
)

// ListTabsTool enumerates open page targets.
type ListTabsTool struct {
	engine *browser.Engine
}

func NewListTabsTool(engine *browser.Engine) *ListTabsTool {
	return &ListTabsTool{engine: engine}
}

func (t *ListTabsTool) Name() string { return "list_tabs" }

func (t *ListTabsTool) Description() string {
	return "List open browser tabs with their id, URL, title, and which one is active"
}

func (t *ListTabsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListTabsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabs, err := t.engine.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"tabs":  tabs,
		"count": len(tabs),
	}, nil
}

// OpenTabTool creates a new page target, optionally at a URL.
type OpenTabTool struct {
	engine *browser.Engine
}

func NewOpenTabTool(engine *browser.Engine) *OpenTabTool {
	return &OpenTabTool{engine: engine}
}

func (t *OpenTabTool) Name() string { return "open_tab" }

func (t *OpenTabTool) Description() string {
	return "Open a new browser tab, optionally navigating it to a URL, and make it the active tab"
}

func (t *OpenTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to load in the new tab (defaults to about:blank)",
			},
		},
	}
}

func (t *OpenTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	tab, err := t.engine.OpenTab(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary": fmt.Sprintf("opened tab %s", tab.ID),
		"tabId":   tab.ID,
		"url":     tab.URL,
	}, nil
}

// SwitchTabTool changes the active tab.
type SwitchTabTool struct {
	engine *browser.Engine
}

func NewSwitchTabTool(engine *browser.Engine) *SwitchTabTool {
	return &SwitchTabTool{engine: engine}
}

func (t *SwitchTabTool) Name() string { return "switch_tab" }

func (t *SwitchTabTool) Description() string {
	return "Make a tab the active target for subsequent operations that omit tab_id"
}

func (t *SwitchTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id of the tab to activate",
			},
		},
		"required": []string{"tab_id"},
	}
}

func (t *SwitchTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		return nil, fmt.Errorf("tab_id is required")
	}
	tab, err := t.engine.SwitchTab(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary": fmt.Sprintf("switched to %s (%s)", tab.ID, tab.URL),
		"tabId":   tab.ID,
		"url":     tab.URL,
		"title":   tab.Title,
	}, nil
}

// CloseTabTool closes a tab and reports which tab became active.
type CloseTabTool struct {
	engine *browser.Engine
}

func NewCloseTabTool(engine *browser.Engine) *CloseTabTool {
	return &CloseTabTool{engine: engine}
}

func (t *CloseTabTool) Name() string { return "close_tab" }

func (t *CloseTabTool) Description() string {
	return "Close a tab. If it was active, the oldest remaining tab becomes active"
}

func (t *CloseTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id of the tab to close (defaults to the active tab)",
			},
		},
	}
}

func (t *CloseTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		tabID = t.engine.Registry().ActiveID()
	}
	if tabID == "" {
		return nil, fmt.Errorf("no tab to close: no tab_id given and no active tab")
	}
	activeID, err := t.engine.CloseTab(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary":      "tab closed",
		"closed":       tabID,
		"newActiveTab": activeID,
	}, nil
}
