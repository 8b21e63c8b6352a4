package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTransport serves sessions from an in-memory target list, with no
// protocol connection behind them.
type fakeTransport struct {
	mu      sync.Mutex
	targets []Target
	opened  []string
	closed  []string
	listErr error
}

func (f *fakeTransport) ListTargets(ctx context.Context) ([]Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Target, len(f.targets))
	copy(out, f.targets)
	return out, nil
}

func (f *fakeTransport) OpenSession(ctx context.Context, targetID string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.targets {
		if t.ID == targetID {
			f.opened = append(f.opened, targetID)
			s := newSession(t, nil)
			s.subscribe = func() { <-s.ctx.Done() }
			return s, nil
		}
	}
	return nil, &TargetNotFoundError{TargetID: targetID, Available: f.targets}
}

func (f *fakeTransport) CreateTarget(ctx context.Context, url string) (Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := Target{ID: fmt.Sprintf("t%d", len(f.targets)+1), URL: url, Type: "page"}
	f.targets = append(f.targets, t)
	return t, nil
}

func (f *fakeTransport) CloseTarget(ctx context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, targetID)
	for i, t := range f.targets {
		if t.ID == targetID {
			f.targets = append(f.targets[:i], f.targets[i+1:]...)
			break
		}
	}
	return nil
}

func twoTabs() *fakeTransport {
	return &fakeTransport{targets: []Target{
		{ID: "t1", URL: "http://one", Title: "One", Type: "page"},
		{ID: "t2", URL: "http://two", Title: "Two", Type: "page"},
	}}
}

func waitClosed(t *testing.T, sessions ...*Session) {
	t.Helper()
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session did not shut down")
		}
	}
}

func closeRegistry(t *testing.T, r *Registry) {
	t.Helper()
	sessions := r.Sessions()
	r.CloseAll()
	waitClosed(t, sessions...)
}

func TestRegistry_GetOrOpenDefaultsToFirstTarget(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	s, err := r.GetOrOpen(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "t1", s.Target.ID)
	assert.Equal(t, "t1", r.ActiveID())

	// Second call reuses the session instead of reopening.
	again, err := r.GetOrOpen(context.Background(), "")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, []string{"t1"}, ft.opened)
}

func TestRegistry_ExplicitOpenDoesNotStealActive(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", r.ActiveID())

	_, err = r.GetOrOpen(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "t1", r.ActiveID())
}

func TestRegistry_GetOrOpenNoTabs(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, 0, 0)
	_, err := r.GetOrOpen(context.Background(), "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRegistry_GetOrOpenUnknownTargetListsAvailable(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.GetOrOpen(context.Background(), "stale")
	require.Error(t, err)

	var notFound *TargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "stale", notFound.TargetID)
	assert.Len(t, notFound.Available, 2)
}

func TestRegistry_SwitchActiveUnknownTargetListsAvailable(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.SwitchActive(context.Background(), "nope")
	require.Error(t, err)

	var notFound *TargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.Equal(t, "nope", notFound.TargetID)
	assert.Len(t, notFound.Available, 2)
}

func TestRegistry_SwitchActivePromotes(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)

	s, err := r.SwitchActive(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", s.Target.ID)
	assert.Equal(t, "t2", r.ActiveID())
}

func TestRegistry_PromoteMarksExistingSessionActive(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)
	_, err = r.GetOrOpen(context.Background(), "t2")
	require.NoError(t, err)
	require.Equal(t, "t1", r.ActiveID())

	r.Promote("t2")
	assert.Equal(t, "t2", r.ActiveID())

	// Unknown ids never win the active slot.
	r.Promote("nope")
	assert.Equal(t, "t2", r.ActiveID())
}

func TestRegistry_ReusePromotesWhenNoActiveRemains(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	s1, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)
	_, err = r.GetOrOpen(context.Background(), "t2")
	require.NoError(t, err)
	require.Equal(t, "t1", r.ActiveID())

	// The active session drops; self-healing leaves no tab active.
	s1.Close()
	require.Eventually(t, func() bool { return r.ActiveID() == "" },
		time.Second, 10*time.Millisecond)
	waitClosed(t, s1)

	// Reusing the surviving session must restore an active tab.
	s2, err := r.GetOrOpen(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", s2.Target.ID)
	assert.Equal(t, "t2", r.ActiveID())
}

func TestRegistry_CloseActivePromotesOldestRemaining(t *testing.T) {
	ft := &fakeTransport{targets: []Target{
		{ID: "t1", Type: "page"}, {ID: "t2", Type: "page"}, {ID: "t3", Type: "page"},
	}}
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	var sessions []*Session
	for _, id := range []string{"t1", "t2", "t3"} {
		s, err := r.GetOrOpen(context.Background(), id)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}
	require.Equal(t, "t1", r.ActiveID())

	r.Close("t1")
	// Earliest-opened survivor wins, not most recent.
	assert.Equal(t, "t2", r.ActiveID())

	r.Close("t2")
	assert.Equal(t, "t3", r.ActiveID())

	r.Close("t3")
	assert.Equal(t, "", r.ActiveID())
	waitClosed(t, sessions...)
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	s, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)

	r.Close("t1")
	r.Close("t1")
	r.Close("never-opened")
	assert.Equal(t, "", r.ActiveID())
	waitClosed(t, s)
}

func TestRegistry_DisconnectSelfHeals(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	s, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", r.ActiveID())

	// Simulate the browser dropping the connection.
	s.Close()

	require.Eventually(t, func() bool {
		_, ok := r.Get("t1")
		return !ok && r.ActiveID() == ""
	}, time.Second, 10*time.Millisecond)
	waitClosed(t, s)
}

func TestRegistry_CloseRacesDisconnect(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)

	s, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)

	// An explicit teardown and a browser-side disconnect may land at the
	// same time; neither order may corrupt registry state.
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Close("t1")
	}()
	s.Close()
	<-done
	waitClosed(t, s)

	_, ok := r.Get("t1")
	assert.False(t, ok)
	assert.Equal(t, "", r.ActiveID())
}

func TestRegistry_BufferCapacitiesApplyToNewSessions(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 10, 5)
	defer closeRegistry(t, r)

	s1, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)

	r.SetBufferCapacities(20, 8)
	s2, err := r.GetOrOpen(context.Background(), "t2")
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		s1.Logs.Append(LogEntry{Text: "x"})
		s2.Logs.Append(LogEntry{Text: "x"})
	}
	assert.Equal(t, 10, s1.Logs.Len())
	assert.Equal(t, 20, s2.Logs.Len())
}

func TestRegistry_TabsMergesLiveAndRegistryState(t *testing.T) {
	ft := twoTabs()
	r := NewRegistry(ft, 0, 0)
	defer closeRegistry(t, r)

	_, err := r.GetOrOpen(context.Background(), "t1")
	require.NoError(t, err)

	tabs, err := r.Tabs(context.Background())
	require.NoError(t, err)
	require.Len(t, tabs, 2)

	assert.True(t, tabs[0].IsActive)
	assert.True(t, tabs[0].IsConnected)
	assert.False(t, tabs[1].IsActive)
	assert.False(t, tabs[1].IsConnected)
}

func TestRegistry_TabsPropagatesTransportError(t *testing.T) {
	ft := &fakeTransport{listErr: fmt.Errorf("%w: refused", ErrTransportUnavailable)}
	r := NewRegistry(ft, 0, 0)

	_, err := r.Tabs(context.Background())
	assert.True(t, errors.Is(err, ErrTransportUnavailable))
}
