package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// ErrTransportUnavailable means the remote-debugging endpoint cannot be
// reached at all. Distinct from ErrTargetNotFound, which is a caller error.
var ErrTransportUnavailable = errors.New("debugging endpoint unreachable")

// ErrTargetNotFound means a referenced tab id no longer exists.
var ErrTargetNotFound = errors.New("target not found")

// StartHint is attached to transport errors so callers can self-remediate.
const StartHint = "start the browser with remote debugging enabled, e.g. chrome --remote-debugging-port=9222, or call start_browser"

// Transport opens protocol connections to the browser's remote-debugging
// endpoint. It performs no caching; every ListTargets call reflects live
// browser state.
type Transport interface {
	// ListTargets returns the page-type targets currently open.
	ListTargets(ctx context.Context) ([]Target, error)
	// OpenSession attaches a dedicated protocol session to the target and
	// enables the required domains before returning.
	OpenSession(ctx context.Context, targetID string) (*Session, error)
	// CreateTarget opens a new tab at the given URL.
	CreateTarget(ctx context.Context, url string) (Target, error)
	// CloseTarget closes the tab. Closing an unknown target is a no-op.
	CloseTarget(ctx context.Context, targetID string) error
}

// rodTransport drives the endpoint through a lazily-connected rod.Browser.
type rodTransport struct {
	endpoint string // host:port

	mu      sync.Mutex
	browser *rod.Browser
}

// NewTransport returns a Transport bound to the host:port debugging endpoint.
func NewTransport(endpoint string) Transport {
	return &rodTransport{endpoint: endpoint}
}

// connect returns a live control connection, dialing (or re-dialing after a
// stale connection) as needed.
func (t *rodTransport) connect(ctx context.Context) (*rod.Browser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.browser != nil {
		if _, err := t.browser.Version(); err == nil {
			return t.browser, nil
		}
		logging.Get(logging.CategoryBrowser).Warn("stale control connection, reconnecting")
		_ = t.browser.Close()
		t.browser = nil
	}

	controlURL, err := launcher.ResolveURL(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrTransportUnavailable, t.endpoint, err)
	}
	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrTransportUnavailable, t.endpoint, err)
	}
	t.browser = b
	return b, nil
}

func (t *rodTransport) ListTargets(ctx context.Context) ([]Target, error) {
	b, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	res, err := proto.TargetGetTargets{}.Call(b)
	if err != nil {
		return nil, fmt.Errorf("%w: list targets: %v", ErrTransportUnavailable, err)
	}
	var targets []Target
	for _, info := range res.TargetInfos {
		// Background and service workers are not addressable tabs.
		if info.Type != "page" {
			continue
		}
		targets = append(targets, Target{
			ID:    string(info.TargetID),
			URL:   info.URL,
			Title: info.Title,
			Type:  string(info.Type),
		})
	}
	return targets, nil
}

func (t *rodTransport) OpenSession(ctx context.Context, targetID string) (*Session, error) {
	targets, err := t.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	var target *Target
	for i := range targets {
		if targets[i].ID == targetID {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		return nil, &TargetNotFoundError{TargetID: targetID, Available: targets}
	}

	b, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("%w: attach %s: %v", ErrTransportUnavailable, targetID, err)
	}

	// The session is unusable until its protocol domains are enabled.
	for _, enable := range []error{
		proto.RuntimeEnable{}.Call(page),
		proto.NetworkEnable{}.Call(page),
		proto.PageEnable{}.Call(page),
	} {
		if enable != nil {
			return nil, fmt.Errorf("%w: enable domains on %s: %v", ErrTransportUnavailable, targetID, enable)
		}
	}

	return newSession(*target, page), nil
}

func (t *rodTransport) CreateTarget(ctx context.Context, url string) (Target, error) {
	b, err := t.connect(ctx)
	if err != nil {
		return Target{}, err
	}
	if url == "" {
		url = "about:blank"
	}
	res, err := proto.TargetCreateTarget{URL: url}.Call(b)
	if err != nil {
		return Target{}, fmt.Errorf("%w: create target: %v", ErrTransportUnavailable, err)
	}
	return Target{ID: string(res.TargetID), URL: url, Type: "page"}, nil
}

func (t *rodTransport) CloseTarget(ctx context.Context, targetID string) error {
	b, err := t.connect(ctx)
	if err != nil {
		return err
	}
	if _, err := (proto.TargetCloseTarget{TargetID: proto.TargetTargetID(targetID)}).Call(b); err != nil {
		// Closing a tab that is already gone is not an error.
		logging.Get(logging.CategoryBrowser).Debugw("close target", "targetId", targetID, "error", err)
	}
	return nil
}
