package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/chipp-ai/dispatch-sub015/internal/config"
	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// recentWindow is the trailing window scanned for console errors and network
// failures when annotating an action result.
const recentWindow = 2 * time.Second

// Navigation reports a URL change caused by an action.
type Navigation struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ActionResult is the common outcome of a synthesized action. A missing
// element yields Success=false with a message, never a Go error.
type ActionResult struct {
	Summary      string      `json:"summary"`
	Success      bool        `json:"success"`
	Error        string      `json:"error,omitempty"`
	Clicked      string      `json:"clicked,omitempty"`
	Typed        string      `json:"typed,omitempty"`
	Element      string      `json:"element,omitempty"`
	Matches      int         `json:"matches,omitempty"`
	Navigation   *Navigation `json:"navigation,omitempty"`
	RecentErrors []LogEntry  `json:"recentErrors,omitempty"`
}

// NavigateResult reports a navigate operation with its page-state delta.
type NavigateResult struct {
	Summary        string     `json:"summary"`
	From           string     `json:"from"`
	To             string     `json:"to"`
	Title          string     `json:"title"`
	ErrorsAfterNav []LogEntry `json:"errorsAfterNav,omitempty"`
}

// WaitResult reports a wait_for outcome. A timeout is a normal negative
// result, not an error.
type WaitResult struct {
	Summary   string `json:"summary"`
	Success   bool   `json:"success"`
	Found     bool   `json:"found"`
	ElapsedMs int64  `json:"elapsed"`
}

// Executor synthesizes user actions against a session: a locate phase finds
// the element and its coordinates, an act phase dispatches synthetic input
// there, then a short settle delay lets the page's own handlers run before
// state is observed.
type Executor struct {
	cfg  config.ActionConfig
	sctx *SessionContext
}

// NewExecutor creates an executor with the given timing and shared context.
func NewExecutor(cfg config.ActionConfig, sctx *SessionContext) *Executor {
	return &Executor{cfg: cfg, sctx: sctx}
}

// sleep pauses for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Navigate loads a URL and reports the before/after delta plus console
// errors observed right after the load.
func (x *Executor) Navigate(ctx context.Context, s *Session, url string) (NavigateResult, error) {
	from, _, err := s.Info(ctx)
	if err != nil {
		return NavigateResult{}, err
	}

	if err := s.Page().Context(ctx).Navigate(url); err != nil {
		return NavigateResult{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	// Best effort: a page that never fires load should not hang the action.
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_ = s.Page().Context(loadCtx).WaitLoad()
	cancel()
	if err := sleep(ctx, x.cfg.Settle()); err != nil {
		return NavigateResult{}, err
	}

	to, title, err := s.Info(ctx)
	if err != nil {
		return NavigateResult{}, err
	}
	x.sctx.Observe(to, title)
	x.sctx.Record("navigate", url)

	res := NavigateResult{
		Summary:        fmt.Sprintf("navigated from %s to %s", from, to),
		From:           from,
		To:             to,
		Title:          title,
		ErrorsAfterNav: s.Logs.RecentErrors(recentWindow),
	}
	logging.Get(logging.CategoryBrowser).Debugw("navigate", "from", from, "to", to)
	return res, nil
}

// Click locates an element by selector or visible text and dispatches a
// synthetic mouse press/release at its center.
func (x *Executor) Click(ctx context.Context, s *Session, selector, text string, index int) (ActionResult, error) {
	before, _, err := s.Info(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	el, err := locate(ctx, s, selector, text, index)
	if err != nil {
		return ActionResult{}, err
	}
	if !el.Found {
		return notFoundResult("click", selector, text), nil
	}

	page := s.Page().Context(ctx)
	move := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    el.X, Y: el.Y,
	}
	press := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMousePressed,
		X:    el.X, Y: el.Y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	release := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseReleased,
		X:    el.X, Y: el.Y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	for _, ev := range []proto.InputDispatchMouseEvent{move, press, release} {
		if err := ev.Call(page); err != nil {
			return ActionResult{}, fmt.Errorf("dispatch mouse event: %w", err)
		}
	}

	if err := sleep(ctx, x.cfg.Settle()); err != nil {
		return ActionResult{}, err
	}

	after, title, err := s.Info(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	x.sctx.Observe(after, title)
	x.sctx.Record("click", el.Describe())

	res := ActionResult{
		Summary:      fmt.Sprintf("clicked %s", el.Describe()),
		Success:      true,
		Clicked:      el.Describe(),
		Matches:      el.Matches,
		RecentErrors: s.Logs.RecentErrors(recentWindow),
	}
	if after != before {
		res.Navigation = &Navigation{From: before, To: after}
		res.Summary += fmt.Sprintf(", navigated to %s", after)
	}
	return res, nil
}

// Hover locates an element and dispatches a synthetic mouse move to its
// center.
func (x *Executor) Hover(ctx context.Context, s *Session, selector, text string, index int) (ActionResult, error) {
	el, err := locate(ctx, s, selector, text, index)
	if err != nil {
		return ActionResult{}, err
	}
	if !el.Found {
		return notFoundResult("hover", selector, text), nil
	}
	move := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    el.X, Y: el.Y,
	}
	if err := move.Call(s.Page().Context(ctx)); err != nil {
		return ActionResult{}, fmt.Errorf("dispatch mouse move: %w", err)
	}
	if err := sleep(ctx, x.cfg.Settle()); err != nil {
		return ActionResult{}, err
	}
	x.sctx.Record("hover", el.Describe())
	return ActionResult{
		Summary: fmt.Sprintf("hovered over %s", el.Describe()),
		Success: true,
		Element: el.Describe(),
		Matches: el.Matches,
	}, nil
}

// Type focuses an element, optionally clears it (firing a synthetic input
// event so bound listeners observe the clear), then types each character as
// discrete key events so page-side masking and validation logic reacts, and
// optionally finishes with Enter.
func (x *Executor) Type(ctx context.Context, s *Session, selector, text string, clear, pressEnter bool) (ActionResult, error) {
	val, err := s.Eval(ctx, focusJS, selector, clear)
	if err != nil {
		return ActionResult{}, err
	}
	if !val.Get("found").Bool() {
		return notFoundResult("type", selector, ""), nil
	}

	page := s.Page().Context(ctx)
	for _, r := range text {
		ch := string(r)
		down := proto.InputDispatchKeyEvent{
			Type: proto.InputDispatchKeyEventTypeKeyDown,
			Text: ch,
			Key:  ch,
		}
		up := proto.InputDispatchKeyEvent{
			Type: proto.InputDispatchKeyEventTypeKeyUp,
			Key:  ch,
		}
		if err := down.Call(page); err != nil {
			return ActionResult{}, fmt.Errorf("dispatch key event: %w", err)
		}
		if err := up.Call(page); err != nil {
			return ActionResult{}, fmt.Errorf("dispatch key event: %w", err)
		}
		if err := sleep(ctx, x.cfg.TypeKeyDelay()); err != nil {
			return ActionResult{}, err
		}
	}

	if pressEnter {
		down := proto.InputDispatchKeyEvent{
			Type:                  proto.InputDispatchKeyEventTypeKeyDown,
			Key:                   "Enter",
			Code:                  "Enter",
			Text:                  "\r",
			WindowsVirtualKeyCode: 13,
		}
		up := proto.InputDispatchKeyEvent{
			Type:                  proto.InputDispatchKeyEventTypeKeyUp,
			Key:                   "Enter",
			Code:                  "Enter",
			WindowsVirtualKeyCode: 13,
		}
		if err := down.Call(page); err != nil {
			return ActionResult{}, fmt.Errorf("dispatch enter: %w", err)
		}
		if err := up.Call(page); err != nil {
			return ActionResult{}, fmt.Errorf("dispatch enter: %w", err)
		}
	}

	if err := sleep(ctx, x.cfg.Settle()); err != nil {
		return ActionResult{}, err
	}
	x.sctx.Record("type", fmt.Sprintf("%q into %s", text, selector))
	return ActionResult{
		Summary:      fmt.Sprintf("typed %q into %s", text, selector),
		Success:      true,
		Typed:        text,
		Element:      selector,
		RecentErrors: s.Logs.RecentErrors(recentWindow),
	}, nil
}

// SelectOption selects a <select> option through the DOM API.
func (x *Executor) SelectOption(ctx context.Context, s *Session, selector, value string) (ActionResult, error) {
	val, err := s.Eval(ctx, selectOptionJS, selector, value)
	if err != nil {
		return ActionResult{}, err
	}
	if !val.Get("found").Bool() {
		return notFoundResult("select", selector, ""), nil
	}
	if !val.Get("matched").Bool() {
		return ActionResult{
			Summary: fmt.Sprintf("no option matching %q in %s", value, selector),
			Success: false,
			Error:   fmt.Sprintf("option %q not found", value),
		}, nil
	}
	if err := sleep(ctx, x.cfg.Settle()); err != nil {
		return ActionResult{}, err
	}
	x.sctx.Record("select", fmt.Sprintf("%q in %s", value, selector))
	return ActionResult{
		Summary: fmt.Sprintf("selected %q in %s", value, selector),
		Success: true,
		Element: selector,
	}, nil
}

// WaitFor polls until an element matching the predicate exists (and, when
// visible is set, renders) or until the timeout elapses.
func (x *Executor) WaitFor(ctx context.Context, s *Session, selector, text string, timeout time.Duration, visible bool) (WaitResult, error) {
	start := time.Now()
	deadline := start.Add(timeout)
	what := selector
	if what == "" {
		what = fmt.Sprintf("text %q", text)
	}

	for {
		val, err := s.Eval(ctx, waitPredicateJS, selector, text, visible)
		if err != nil {
			return WaitResult{}, err
		}
		if val.Bool() {
			elapsed := time.Since(start)
			x.sctx.Record("wait_for", what)
			return WaitResult{
				Summary:   fmt.Sprintf("%s appeared after %s", what, elapsed.Round(time.Millisecond)),
				Success:   true,
				Found:     true,
				ElapsedMs: elapsed.Milliseconds(),
			}, nil
		}
		if !time.Now().Before(deadline) {
			elapsed := time.Since(start)
			return WaitResult{
				Summary:   fmt.Sprintf("%s did not appear within %s", what, timeout),
				Success:   false,
				Found:     false,
				ElapsedMs: elapsed.Milliseconds(),
			}, nil
		}
		if err := sleep(ctx, x.cfg.WaitPoll()); err != nil {
			return WaitResult{}, err
		}
	}
}

// ExecuteJS evaluates caller-supplied code in page context. A page-side
// exception comes back as the call's error with its description intact.
func (x *Executor) ExecuteJS(ctx context.Context, s *Session, code string) (interface{}, error) {
	val, err := s.Eval(ctx, code)
	if err != nil {
		return nil, err
	}
	x.sctx.Record("execute_js", truncate(code, 60))
	return val.Val(), nil
}

func notFoundResult(action, selector, text string) ActionResult {
	what := selector
	if what == "" {
		what = fmt.Sprintf("text %q", text)
	}
	return ActionResult{
		Summary: fmt.Sprintf("%s: no element matching %s", action, what),
		Success: false,
		Error:   fmt.Sprintf("no element matching %s", what),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
