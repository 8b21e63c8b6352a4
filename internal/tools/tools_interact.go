package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
)

// locatorSchema is the shared selector/text/index argument trio used by
// every element-targeting tool.
func locatorSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"tab_id": map[string]interface{}{
			"type":        "string",
			"description": "Target id (defaults to the active tab)",
		},
		"selector": map[string]interface{}{
			"type":        "string",
			"description": "CSS selector for the element",
		},
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Visible text to match when no selector is given",
		},
		"index": map[string]interface{}{
			"type":        "integer",
			"description": "Which match to use when several elements match (0-based)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
}

// NavigateTool loads a URL in a tab.
type NavigateTool struct {
	engine *browser.Engine
}

func NewNavigateTool(engine *browser.Engine) *NavigateTool {
	return &NavigateTool{engine: engine}
}

func (t *NavigateTool) Name() string { return "navigate" }

func (t *NavigateTool) Description() string {
	return "Navigate a tab to a URL, wait for load, and report console errors that appeared after"
}

func (t *NavigateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Absolute URL to load",
			},
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	return t.engine.Navigate(ctx, getStringArg(args, "tab_id"), url)
}

// ClickTool locates an element and clicks its center.
type ClickTool struct {
	engine *browser.Engine
}

func NewClickTool(engine *browser.Engine) *ClickTool {
	return &ClickTool{engine: engine}
}

func (t *ClickTool) Name() string { return "click" }

func (t *ClickTool) Description() string {
	return "Click an element found by CSS selector or visible text, then report what changed"
}

func (t *ClickTool) InputSchema() map[string]interface{} {
	return locatorSchema(nil)
}

func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector, text := getStringArg(args, "selector"), getStringArg(args, "text")
	if selector == "" && text == "" {
		return nil, fmt.Errorf("either selector or text is required")
	}
	return t.engine.Click(ctx, getStringArg(args, "tab_id"), selector, text,
		getIntArg(args, "index", 0))
}

// HoverTool moves the mouse over an element without clicking.
type HoverTool struct {
	engine *browser.Engine
}

func NewHoverTool(engine *browser.Engine) *HoverTool {
	return &HoverTool{engine: engine}
}

func (t *HoverTool) Name() string { return "hover" }

func (t *HoverTool) Description() string {
	return "Move the mouse over an element to trigger hover styling or menus"
}

func (t *HoverTool) InputSchema() map[string]interface{} {
	return locatorSchema(nil)
}

func (t *HoverTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector, text := getStringArg(args, "selector"), getStringArg(args, "text")
	if selector == "" && text == "" {
		return nil, fmt.Errorf("either selector or text is required")
	}
	return t.engine.Hover(ctx, getStringArg(args, "tab_id"), selector, text,
		getIntArg(args, "index", 0))
}

// TypeTool focuses an element and types text as key events.
type TypeTool struct {
	engine *browser.Engine
}

func NewTypeTool(engine *browser.Engine) *TypeTool {
	return &TypeTool{engine: engine}
}

func (t *TypeTool) Name() string { return "type" }

func (t *TypeTool) Description() string {
	return "Focus an input and type text keystroke by keystroke, optionally clearing it first or pressing Enter after"
}

func (t *TypeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector for the input element",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type",
			},
			"clear": map[string]interface{}{
				"type":        "boolean",
				"description": "Clear the field before typing",
			},
			"press_enter": map[string]interface{}{
				"type":        "boolean",
				"description": "Press Enter after typing",
			},
		},
		"required": []string{"selector", "text"},
	}
}

func (t *TypeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector := getStringArg(args, "selector")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}
	return t.engine.Type(ctx, getStringArg(args, "tab_id"), selector,
		getStringArg(args, "text"),
		getBoolArg(args, "clear", false),
		getBoolArg(args, "press_enter", false))
}

// SelectOptionTool picks an option in a native select element.
type SelectOptionTool struct {
	engine *browser.Engine
}

func NewSelectOptionTool(engine *browser.Engine) *SelectOptionTool {
	return &SelectOptionTool{engine: engine}
}

func (t *SelectOptionTool) Name() string { return "select_option" }

func (t *SelectOptionTool) Description() string {
	return "Select an option in a <select> element by value or visible label"
}

func (t *SelectOptionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector for the select element",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Option value or visible label to select",
			},
		},
		"required": []string{"selector", "value"},
	}
}

func (t *SelectOptionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector, value := getStringArg(args, "selector"), getStringArg(args, "value")
	if selector == "" || value == "" {
		return nil, fmt.Errorf("selector and value are required")
	}
	return t.engine.SelectOption(ctx, getStringArg(args, "tab_id"), selector, value)
}

// WaitForTool polls for an element to appear, or appear visibly.
type WaitForTool struct {
	engine *browser.Engine
}

func NewWaitForTool(engine *browser.Engine) *WaitForTool {
	return &WaitForTool{engine: engine}
}

func (t *WaitForTool) Name() string { return "wait_for" }

func (t *WaitForTool) Description() string {
	return "Wait for an element matching a selector or text to exist (or be visible). Timing out is a normal result, not an error"
}

func (t *WaitForTool) InputSchema() map[string]interface{} {
	return locatorSchema(map[string]interface{}{
		"timeout": map[string]interface{}{
			"type":        "integer",
			"description": "Timeout in milliseconds (default 5000)",
		},
		"visible": map[string]interface{}{
			"type":        "boolean",
			"description": "Require the element to be visible, not merely present",
		},
	})
}

func (t *WaitForTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	selector, text := getStringArg(args, "selector"), getStringArg(args, "text")
	if selector == "" && text == "" {
		return nil, fmt.Errorf("either selector or text is required")
	}
	timeout := time.Duration(getIntArg(args, "timeout", 5000)) * time.Millisecond
	return t.engine.WaitFor(ctx, getStringArg(args, "tab_id"), selector, text,
		timeout, getBoolArg(args, "visible", false))
}

// ExecuteJSTool evaluates arbitrary JavaScript in page context.
type ExecuteJSTool struct {
	engine *browser.Engine
}

func NewExecuteJSTool(engine *browser.Engine) *ExecuteJSTool {
	return &ExecuteJSTool{engine: engine}
}

func (t *ExecuteJSTool) Name() string { return "execute_js" }

func (t *ExecuteJSTool) Description() string {
	return "Evaluate JavaScript in the page and return its JSON-serialized value. Promises are awaited"
}

func (t *ExecuteJSTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript source to evaluate",
			},
			"tab_id": map[string]interface{}{
				"type":        "string",
				"description": "Target id (defaults to the active tab)",
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecuteJSTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	code := getStringArg(args, "code")
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return evalOutcome(t.engine.ExecuteJS(ctx, getStringArg(args, "tab_id"), code))
}

// evalOutcome shapes an execute_js result. A page-side exception is a
// property of the caller's script, not of the engine, so it comes back as a
// success:false result the caller can act on; anything else stays terminal.
func evalOutcome(value interface{}, err error) (interface{}, error) {
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			return map[string]interface{}{
				"success": false,
				"error":   evalErr.Error(),
			}, nil
		}
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"result":  value,
	}, nil
}
