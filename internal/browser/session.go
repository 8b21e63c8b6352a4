package browser

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// Session is a live protocol connection scoped to one Target. At most one
// live Session exists per Target; the Registry is the sole authority that
// creates or tears one down.
type Session struct {
	Target Target

	// Event buffers, owned here rather than as package-level state so reads
	// always go through an explicit owner.
	Logs    *LogBuffer
	Network *NetworkBuffer

	page      *rod.Page
	events    chan event
	subscribe func() // blocks until the event stream ends

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	dropped atomic.Int64 // events dropped because the channel was full

	closeOnce sync.Once
	closedMu  sync.Mutex
	onClosed  func() // registry disconnect self-heal hook, guarded by closedMu

	seq int64 // registry insertion order, used for deterministic promotion
}

func newSession(target Target, page *rod.Page) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Target:  target,
		Logs:    NewLogBuffer(DefaultConsoleCapacity),
		Network: NewNetworkBuffer(DefaultNetworkCapacity),
		page:    page,
		events:  make(chan event, eventChannelSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.subscribe = s.subscribeEvents
	return s
}

// configureBuffers swaps in buffers of the given capacities. Must be called
// before StartIngestion.
func (s *Session) configureBuffers(consoleCap, networkCap int) {
	s.Logs = NewLogBuffer(consoleCap)
	s.Network = NewNetworkBuffer(networkCap)
}

// Page exposes the underlying protocol connection to the action executor and
// capture engine.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Eval runs a constrained script in page context and returns its value.
// A script exception surfaces as the call's error with the page-side
// description passed through verbatim.
func (s *Session) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

// Info returns the session's current URL and title from live target state.
func (s *Session) Info(ctx context.Context) (url, title string, err error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.URL, info.Title, nil
}

// Close tears down the session: ingestion stops and the protocol connection
// is released. The tab itself stays open. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

// setOnClosed installs or clears the registry's disconnect hook. A browser
// side disconnect can fire the hook concurrently with a registry teardown,
// so access is serialized.
func (s *Session) setOnClosed(fn func()) {
	s.closedMu.Lock()
	s.onClosed = fn
	s.closedMu.Unlock()
}

// notifyClosed invokes the disconnect hook, if one is still installed.
func (s *Session) notifyClosed() {
	s.closedMu.Lock()
	fn := s.onClosed
	s.closedMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Done is closed once the ingestion loop has exited, either from Close or
// from the browser side dropping the connection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// DroppedEvents reports how many events were shed under channel backpressure.
func (s *Session) DroppedEvents() int64 {
	return s.dropped.Load()
}
