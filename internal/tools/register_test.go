package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
	"github.com/chipp-ai/dispatch-sub015/internal/config"
)

func TestRegisterAll(t *testing.T) {
	reg := NewRegistry()
	RegisterAll(reg, browser.NewEngine(config.Default()))

	want := []string{
		"click",
		"close_tab",
		"compare_screenshots",
		"execute_js",
		"extract_design_tokens",
		"get_console_logs",
		"get_network_requests",
		"get_page_context",
		"hover",
		"list_tabs",
		"navigate",
		"open_tab",
		"select_option",
		"start_browser",
		"switch_tab",
		"take_screenshot",
		"type",
		"wait_for",
	}
	assert.Equal(t, want, reg.Names())

	for _, desc := range reg.Describe() {
		name := desc["name"].(string)
		assert.NotEmpty(t, desc["description"], "tool %s needs a description", name)

		schema, ok := desc["inputSchema"].(map[string]interface{})
		require.True(t, ok, "tool %s needs an input schema", name)
		assert.Equal(t, "object", schema["type"], "tool %s schema type", name)
	}
}
