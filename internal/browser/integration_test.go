//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
	"github.com/chipp-ai/dispatch-sub015/internal/config"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Fixture</title></head>
<body>
  <h1>Hello World</h1>
  <button id="go" onclick="document.getElementById('out').textContent='clicked'; console.error('boom')">Go</button>
  <input id="name" type="text">
  <select id="pick"><option value="a">Alpha</option><option value="b">Beta</option></select>
  <div id="out"></div>
  <script>fetch('/api/missing')</script>
</body>
</html>`

// startEngine launches (or attaches to) a debuggable browser and returns an
// engine wired to it. Requires a Chrome/Chromium install.
func startEngine(t *testing.T) *browser.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Supervisor.UserDataDir = t.TempDir()
	cfg.Supervisor.LaunchTimeoutMs = 20000

	engine := browser.NewEngine(cfg)
	t.Cleanup(engine.Shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := engine.StartBrowser(ctx, "")
	require.NoError(t, err)
	require.True(t, res.Connected)
	return engine
}

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, testPage)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestEngine_NavigateClickAndObserve_Integration(t *testing.T) {
	engine := startEngine(t)
	ts := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tab, err := engine.OpenTab(ctx, "about:blank")
	require.NoError(t, err)

	nav, err := engine.Navigate(ctx, tab.ID, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/", nav.To)
	assert.Equal(t, "Fixture", nav.Title)

	click, err := engine.Click(ctx, tab.ID, "#go", "", 0)
	require.NoError(t, err)
	require.True(t, click.Success)

	// The click handler logs a console error.
	require.Eventually(t, func() bool {
		logs, err := engine.ConsoleLogs(ctx, tab.ID, 0, "error", "", false)
		return err == nil && logs.ErrorCount > 0
	}, 10*time.Second, 200*time.Millisecond)

	// The page's fetch produced a buffered 404.
	require.Eventually(t, func() bool {
		reqs, err := engine.NetworkRequests(ctx, tab.ID, 0, "404", "", false)
		return err == nil && reqs.Count > 0
	}, 10*time.Second, 200*time.Millisecond)

	val, err := engine.ExecuteJS(ctx, tab.ID, `() => document.getElementById('out').textContent`)
	require.NoError(t, err)
	assert.Equal(t, "clicked", val)
}

func TestEngine_TypeWaitAndCapture_Integration(t *testing.T) {
	engine := startEngine(t)
	ts := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tab, err := engine.OpenTab(ctx, ts.URL)
	require.NoError(t, err)

	wait, err := engine.WaitFor(ctx, tab.ID, "#name", "", 10*time.Second, true)
	require.NoError(t, err)
	require.True(t, wait.Found)

	typed, err := engine.Type(ctx, tab.ID, "#name", "hello", false, false)
	require.NoError(t, err)
	require.True(t, typed.Success)

	val, err := engine.ExecuteJS(ctx, tab.ID, `() => document.getElementById('name').value`)
	require.NoError(t, err)
	assert.Equal(t, "hello", val)

	sel, err := engine.SelectOption(ctx, tab.ID, "#pick", "Beta")
	require.NoError(t, err)
	require.True(t, sel.Success)

	shot, err := engine.Screenshot(ctx, tab.ID, false, "png", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, shot.Data)
	assert.Equal(t, "Hello World", shot.PageContext.Heading)

	cmp, err := engine.CompareScreenshots(ctx,
		browser.PageRef{TabID: tab.ID}, browser.PageRef{TabID: tab.ID},
		0.1, false, "")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cmp.MatchPercentage, 1.0)
}

func TestEngine_UnknownTargetListsAvailable_Integration(t *testing.T) {
	engine := startEngine(t)
	ts := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tab, err := engine.OpenTab(ctx, ts.URL)
	require.NoError(t, err)
	require.True(t, tab.IsActive)

	// A freshly opened tab becomes the active one.
	tabs, err := engine.ListTabs(ctx)
	require.NoError(t, err)
	for _, tb := range tabs {
		if tb.ID == tab.ID {
			assert.True(t, tb.IsActive)
		} else {
			assert.False(t, tb.IsActive)
		}
	}

	// Operations against a dead tab id report the live tabs, not a blank
	// result.
	_, err = engine.Screenshot(ctx, "does-not-exist", false, "png", 0)
	require.Error(t, err)

	var notFound *browser.TargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "does-not-exist", notFound.TargetID)
	assert.NotEmpty(t, notFound.Available)
}

func TestEngine_WaitForTimeoutIsSoft_Integration(t *testing.T) {
	engine := startEngine(t)
	ts := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tab, err := engine.OpenTab(ctx, ts.URL)
	require.NoError(t, err)

	wait, err := engine.WaitFor(ctx, tab.ID, "#does-not-exist", "", time.Second, false)
	require.NoError(t, err, "timeout is a result, not an error")
	assert.False(t, wait.Found)
	assert.False(t, wait.Success)
}
