package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chipp-ai/dispatch-sub015/internal/config"
	"github.com/chipp-ai/dispatch-sub015/internal/logging"
	"github.com/chipp-ai/dispatch-sub015/internal/vision"
)

// Engine is the facade the tool layer talks to: it owns the transport, the
// session registry, the action executor, and the process supervisor.
type Engine struct {
	transport  Transport
	registry   *Registry
	exec       *Executor
	sctx       *SessionContext
	supervisor *Supervisor
}

// NewEngine wires an engine from configuration.
func NewEngine(cfg *config.Config) *Engine {
	transport := NewTransport(cfg.Debug.Endpoint())
	sctx := NewSessionContext()
	return &Engine{
		transport:  transport,
		registry:   NewRegistry(transport, cfg.Buffers.ConsoleCapacity, cfg.Buffers.NetworkCapacity),
		exec:       NewExecutor(cfg.Actions, sctx),
		sctx:       sctx,
		supervisor: NewSupervisor(cfg.Debug, cfg.Supervisor),
	}
}

// ApplyConfig picks up runtime-tunable settings from a reloaded config.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.registry.SetBufferCapacities(cfg.Buffers.ConsoleCapacity, cfg.Buffers.NetworkCapacity)
}

// Shutdown tears down all sessions.
func (e *Engine) Shutdown() {
	e.registry.CloseAll()
}

// Registry exposes the session registry (used by tests and the tool layer
// for tab-list error payloads).
func (e *Engine) Registry() *Registry { return e.registry }

// ---- tabs ----

// ListTabs returns the live tab list with registry state.
func (e *Engine) ListTabs(ctx context.Context) ([]Tab, error) {
	return e.registry.Tabs(ctx)
}

// OpenTab opens a new tab and connects a session to it.
func (e *Engine) OpenTab(ctx context.Context, url string) (Tab, error) {
	target, err := e.transport.CreateTarget(ctx, url)
	if err != nil {
		return Tab{}, err
	}
	s, err := e.registry.GetOrOpen(ctx, target.ID)
	if err != nil {
		return Tab{}, err
	}
	// A freshly opened tab is what the caller wants to work in next.
	e.registry.Promote(s.Target.ID)
	e.sctx.Record("open_tab", url)
	return Tab{
		ID:          s.Target.ID,
		URL:         target.URL,
		IsActive:    true,
		IsConnected: true,
	}, nil
}

// SwitchTab promotes the target to active.
func (e *Engine) SwitchTab(ctx context.Context, targetID string) (Tab, error) {
	s, err := e.registry.SwitchActive(ctx, targetID)
	if err != nil {
		return Tab{}, err
	}
	url, title, err := s.Info(ctx)
	if err != nil {
		return Tab{}, err
	}
	e.sctx.Record("switch_tab", targetID)
	return Tab{ID: targetID, URL: url, Title: title, IsActive: true, IsConnected: true}, nil
}

// CloseTab closes the tab and its session, returning the new active target
// id (empty if none remain). Idempotent.
func (e *Engine) CloseTab(ctx context.Context, targetID string) (string, error) {
	if err := e.transport.CloseTarget(ctx, targetID); err != nil {
		return "", err
	}
	e.registry.Close(targetID)
	e.sctx.Record("close_tab", targetID)
	return e.registry.ActiveID(), nil
}

// ---- observation ----

// LogsResult is the shaped console-log query result.
type LogsResult struct {
	Summary    string     `json:"summary"`
	Count      int        `json:"count"`
	ErrorCount int        `json:"errorCount"`
	WarnCount  int        `json:"warnCount"`
	Logs       []LogEntry `json:"logs"`
	Cleared    int        `json:"cleared,omitempty"`
}

// ConsoleLogs queries the session's log buffer. level filters by entry
// level, search by substring; limit keeps the most recent entries; clear
// empties the buffer after reading.
func (e *Engine) ConsoleLogs(ctx context.Context, targetID string, limit int, level, search string, clear bool) (LogsResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return LogsResult{}, err
	}
	entries := s.Logs.Snapshot()

	res := LogsResult{}
	for _, entry := range entries {
		switch entry.Level {
		case "error":
			res.ErrorCount++
		case "warn":
			res.WarnCount++
		}
	}

	filtered := entries[:0:0]
	for _, entry := range entries {
		if level != "" && entry.Level != level {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(entry.Text), strings.ToLower(search)) {
			continue
		}
		filtered = append(filtered, entry)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	res.Logs = filtered
	res.Count = len(filtered)
	res.Summary = fmt.Sprintf("%d log entries (%d errors, %d warnings)",
		len(entries), res.ErrorCount, res.WarnCount)

	if clear {
		res.Cleared = s.Logs.Clear()
	}
	return res, nil
}

// NetworkResult is the shaped network query result.
type NetworkResult struct {
	Summary      string         `json:"summary"`
	Count        int            `json:"count"`
	FailedCount  int            `json:"failedCount"`
	PendingCount int            `json:"pendingCount"`
	Requests     []NetworkEntry `json:"requests"`
	Cleared      int            `json:"cleared,omitempty"`
}

// NetworkRequests queries the session's network buffer. status filters to
// "pending", "failed", or an exact numeric status.
func (e *Engine) NetworkRequests(ctx context.Context, targetID string, limit int, status, search string, clear bool) (NetworkResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return NetworkResult{}, err
	}
	entries := s.Network.Snapshot()

	res := NetworkResult{}
	for _, entry := range entries {
		switch {
		case entry.Status == StatusPending:
			res.PendingCount++
		case entry.IsFailure():
			res.FailedCount++
		}
	}

	filtered := entries[:0:0]
	for _, entry := range entries {
		if status != "" && entry.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(entry.URL), strings.ToLower(search)) {
			continue
		}
		filtered = append(filtered, entry)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	res.Requests = filtered
	res.Count = len(filtered)
	res.Summary = fmt.Sprintf("%d requests (%d failed, %d pending)",
		len(entries), res.FailedCount, res.PendingCount)

	if clear {
		res.Cleared = s.Network.Clear()
	}
	return res, nil
}

// ---- actions ----

func (e *Engine) Navigate(ctx context.Context, targetID, url string) (NavigateResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return NavigateResult{}, err
	}
	return e.exec.Navigate(ctx, s, url)
}

func (e *Engine) Click(ctx context.Context, targetID, selector, text string, index int) (ActionResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return ActionResult{}, err
	}
	return e.exec.Click(ctx, s, selector, text, index)
}

func (e *Engine) Hover(ctx context.Context, targetID, selector, text string, index int) (ActionResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return ActionResult{}, err
	}
	return e.exec.Hover(ctx, s, selector, text, index)
}

func (e *Engine) Type(ctx context.Context, targetID, selector, text string, clear, pressEnter bool) (ActionResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return ActionResult{}, err
	}
	return e.exec.Type(ctx, s, selector, text, clear, pressEnter)
}

func (e *Engine) SelectOption(ctx context.Context, targetID, selector, value string) (ActionResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return ActionResult{}, err
	}
	return e.exec.SelectOption(ctx, s, selector, value)
}

func (e *Engine) WaitFor(ctx context.Context, targetID, selector, text string, timeout time.Duration, visible bool) (WaitResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return WaitResult{}, err
	}
	return e.exec.WaitFor(ctx, s, selector, text, timeout, visible)
}

func (e *Engine) ExecuteJS(ctx context.Context, targetID, code string) (interface{}, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return e.exec.ExecuteJS(ctx, s, code)
}

// ---- capture ----

// ScreenshotResult carries the encoded capture plus a qualitative probe.
type ScreenshotResult struct {
	Summary     string      `json:"summary"`
	Format      string      `json:"format"`
	PageContext PageContext `json:"pageContext"`
	Data        string      `json:"data"` // base64
}

func (e *Engine) Screenshot(ctx context.Context, targetID string, fullPage bool, format string, quality int) (ScreenshotResult, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return ScreenshotResult{}, err
	}
	data, format, err := CaptureScreenshot(ctx, s, fullPage, format, quality)
	if err != nil {
		return ScreenshotResult{}, err
	}
	pctx, err := ProbePageContext(ctx, s)
	if err != nil {
		// The capture succeeded; a failed probe should not discard it.
		logging.Get(logging.CategoryBrowser).Debugw("page context probe failed", "error", err)
	}
	url, _, _ := s.Info(ctx)
	e.sctx.Record("screenshot", url)
	kind := "viewport"
	if fullPage {
		kind = "full page"
	}
	return ScreenshotResult{
		Summary:     fmt.Sprintf("captured %s screenshot of %s", kind, url),
		Format:      format,
		PageContext: pctx,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, nil
}

// PageRef describes one side of a comparison: an existing tab or a URL to
// open fresh.
type PageRef struct {
	TabID string
	URL   string
}

// CompareResult is the visual-diff output.
type CompareResult struct {
	MatchPercentage float64 `json:"matchPercentage"`
	DiffPixels      int     `json:"diffPixels"`
	TotalPixels     int     `json:"totalPixels"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	DiffImage       string  `json:"diffImage,omitempty"` // base64 png
	SavedTo         string  `json:"savedTo,omitempty"`
}

// CompareScreenshots captures both page refs concurrently, then runs the
// perceptual pixel comparison. Tabs opened fresh for the comparison are
// closed afterwards.
func (e *Engine) CompareScreenshots(ctx context.Context, ref, cmp PageRef, threshold float64, fullPage bool, savePath string) (CompareResult, error) {
	captures := make([][]byte, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, pr := range []PageRef{ref, cmp} {
		i, pr := i, pr
		g.Go(func() error {
			data, err := e.capturePageRef(gctx, pr, fullPage)
			if err != nil {
				return err
			}
			captures[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CompareResult{}, err
	}

	imgA, err := vision.Decode(captures[0])
	if err != nil {
		return CompareResult{}, err
	}
	imgB, err := vision.Decode(captures[1])
	if err != nil {
		return CompareResult{}, err
	}

	diff, err := vision.Compare(imgA, imgB, vision.Options{
		Threshold: threshold,
		DiffImage: true,
	})
	if err != nil {
		return CompareResult{}, err
	}

	res := CompareResult{
		MatchPercentage: diff.MatchPercentage,
		DiffPixels:      diff.DiffPixels,
		TotalPixels:     diff.TotalPixels,
		Width:           diff.Width,
		Height:          diff.Height,
	}
	if diff.Diff != nil {
		encoded, err := vision.EncodePNG(diff.Diff)
		if err != nil {
			return CompareResult{}, err
		}
		res.DiffImage = base64.StdEncoding.EncodeToString(encoded)
		if savePath != "" {
			if err := vision.Save(diff.Diff, savePath); err != nil {
				logging.Get(logging.CategoryBrowser).Warnw("diff save failed", "path", savePath, "error", err)
			} else {
				res.SavedTo = savePath
			}
		}
	}
	e.sctx.Record("compare_screenshots", fmt.Sprintf("%.1f%% match", res.MatchPercentage))
	return res, nil
}

// capturePageRef resolves a page ref to a session, captures it, and cleans
// up any tab it opened.
func (e *Engine) capturePageRef(ctx context.Context, ref PageRef, fullPage bool) ([]byte, error) {
	targetID := ref.TabID
	opened := false
	if targetID == "" {
		if ref.URL == "" {
			return nil, fmt.Errorf("page ref needs a tab id or url")
		}
		target, err := e.transport.CreateTarget(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		targetID = target.ID
		opened = true
	}
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if opened {
		defer func() {
			e.registry.Close(targetID)
			_ = e.transport.CloseTarget(ctx, targetID)
		}()
		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		_ = s.Page().Context(loadCtx).WaitLoad()
		cancel()
	}
	data, _, err := CaptureScreenshot(ctx, s, fullPage, "png", 0)
	return data, err
}

// DesignTokens surveys the page's visual language.
func (e *Engine) DesignTokens(ctx context.Context, ref PageRef) (DesignTokens, error) {
	targetID := ref.TabID
	opened := false
	if targetID == "" && ref.URL != "" {
		target, err := e.transport.CreateTarget(ctx, ref.URL)
		if err != nil {
			return DesignTokens{}, err
		}
		targetID = target.ID
		opened = true
	}
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return DesignTokens{}, err
	}
	if opened {
		defer func() {
			e.registry.Close(targetID)
			_ = e.transport.CloseTarget(ctx, targetID)
		}()
		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		_ = s.Page().Context(loadCtx).WaitLoad()
		cancel()
	}
	return ExtractDesignTokens(ctx, s)
}

// PageContextProbe runs the qualitative probe on its own.
func (e *Engine) PageContextProbe(ctx context.Context, targetID string) (PageContext, error) {
	s, err := e.registry.GetOrOpen(ctx, targetID)
	if err != nil {
		return PageContext{}, err
	}
	return ProbePageContext(ctx, s)
}

// ---- supervisor ----

// StartBrowser ensures a debuggable browser is running.
func (e *Engine) StartBrowser(ctx context.Context, url string) (StartResult, error) {
	return e.supervisor.EnsureRunning(ctx, url)
}
