package tools

import "github.com/chipp-ai/dispatch-sub015/internal/browser"

// RegisterAll wires every operation against the engine.
func RegisterAll(reg *Registry, engine *browser.Engine) {
	reg.Register(NewListTabsTool(engine))
	reg.Register(NewOpenTabTool(engine))
	reg.Register(NewSwitchTabTool(engine))
	reg.Register(NewCloseTabTool(engine))

	reg.Register(NewGetConsoleLogsTool(engine))
	reg.Register(NewGetNetworkRequestsTool(engine))
	reg.Register(NewGetPageContextTool(engine))

	reg.Register(NewNavigateTool(engine))
	reg.Register(NewClickTool(engine))
	reg.Register(NewHoverTool(engine))
	reg.Register(NewTypeTool(engine))
	reg.Register(NewSelectOptionTool(engine))
	reg.Register(NewWaitForTool(engine))
	reg.Register(NewExecuteJSTool(engine))

	reg.Register(NewTakeScreenshotTool(engine))
	reg.Register(NewCompareScreenshotsTool(engine))
	reg.Register(NewExtractDesignTokensTool(engine))

	reg.Register(NewStartBrowserTool(engine))
}
