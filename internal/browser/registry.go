package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// TargetNotFoundError reports a missing tab together with the currently
// known targets so the caller can self-correct.
type TargetNotFoundError struct {
	TargetID  string
	Available []Target
}

func (e *TargetNotFoundError) Error() string {
	ids := make([]string, 0, len(e.Available))
	for _, t := range e.Available {
		ids = append(ids, t.ID)
	}
	return fmt.Sprintf("target %s not found (available: %s)", e.TargetID, strings.Join(ids, ", "))
}

func (e *TargetNotFoundError) Unwrap() error { return ErrTargetNotFound }

// Registry is the single source of truth for which sessions exist. It maps
// target ids to sessions, tracks the active target used as the default for
// operations without an explicit one, and self-heals on disconnect.
// Mutations are serialized; reads run concurrently.
type Registry struct {
	transport Transport

	mu         sync.RWMutex
	sessions   map[string]*Session
	activeID   string
	nextSeq    int64
	consoleCap int
	networkCap int
}

// NewRegistry creates a registry using the given buffer capacities for
// sessions it opens.
func NewRegistry(transport Transport, consoleCap, networkCap int) *Registry {
	if consoleCap <= 0 {
		consoleCap = DefaultConsoleCapacity
	}
	if networkCap <= 0 {
		networkCap = DefaultNetworkCapacity
	}
	return &Registry{
		transport:  transport,
		sessions:   make(map[string]*Session),
		consoleCap: consoleCap,
		networkCap: networkCap,
	}
}

// SetBufferCapacities updates the capacities applied to sessions opened from
// now on. Existing sessions keep their buffers.
func (r *Registry) SetBufferCapacities(consoleCap, networkCap int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if consoleCap > 0 {
		r.consoleCap = consoleCap
	}
	if networkCap > 0 {
		r.networkCap = networkCap
	}
}

// GetOrOpen resolves a session. With an empty targetID it returns the active
// session, opening one against the first available target if none exists
// yet. With an explicit targetID it returns the existing session or opens
// one; a newly-opened session becomes active only if nothing else is.
func (r *Registry) GetOrOpen(ctx context.Context, targetID string) (*Session, error) {
	r.mu.RLock()
	if targetID == "" {
		if s, ok := r.sessions[r.activeID]; ok {
			r.mu.RUnlock()
			return s, nil
		}
	} else if s, ok := r.sessions[targetID]; ok && r.activeID != "" {
		// With no active tab left the session must be re-promoted, which
		// needs the write lock below.
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock.
	if targetID == "" {
		if s, ok := r.sessions[r.activeID]; ok {
			return s, nil
		}
		targets, err := r.transport.ListTargets(ctx)
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: no open tabs", ErrTargetNotFound)
		}
		targetID = targets[0].ID
	}
	if s, ok := r.sessions[targetID]; ok {
		// A lost active session may have left no tab active; reusing an
		// existing session must not leave the registry headless.
		if r.activeID == "" {
			r.activeID = targetID
		}
		return s, nil
	}
	return r.openLocked(ctx, targetID)
}

// openLocked opens and registers a session. Caller holds the write lock.
func (r *Registry) openLocked(ctx context.Context, targetID string) (*Session, error) {
	s, err := r.transport.OpenSession(ctx, targetID)
	if err != nil {
		return nil, err
	}
	s.configureBuffers(r.consoleCap, r.networkCap)
	r.nextSeq++
	s.seq = r.nextSeq
	s.setOnClosed(func() { r.handleDisconnect(targetID, s) })
	s.StartIngestion()

	r.sessions[targetID] = s
	if r.activeID == "" {
		r.activeID = targetID
	}
	logging.Get(logging.CategoryBrowser).Infow("session opened",
		"targetId", targetID, "url", s.Target.URL, "active", r.activeID == targetID)
	return s, nil
}

// SwitchActive validates the target still exists against live browser state,
// opens a session for it if needed, and promotes it.
func (r *Registry) SwitchActive(ctx context.Context, targetID string) (*Session, error) {
	targets, err := r.transport.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range targets {
		if t.ID == targetID {
			found = true
			break
		}
	}
	if !found {
		return nil, &TargetNotFoundError{TargetID: targetID, Available: targets}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[targetID]
	if !ok {
		s, err = r.openLocked(ctx, targetID)
		if err != nil {
			return nil, err
		}
	}
	r.activeID = targetID
	return s, nil
}

// Promote marks an already-registered session as active. Unknown targets are
// ignored; use SwitchActive to validate against live browser state.
func (r *Registry) Promote(targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[targetID]; ok {
		r.activeID = targetID
	}
}

// Close tears down the session for a target. Idempotent: closing an unknown
// target is a no-op. If the closed session was active, the remaining open
// session with the lowest insertion order is promoted; with none left the
// registry reports no active session.
func (r *Registry) Close(targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[targetID]
	if !ok {
		return
	}
	delete(r.sessions, targetID)
	s.setOnClosed(nil)
	s.Close()

	if r.activeID == targetID {
		r.activeID = r.lowestSeqLocked()
	}
	logging.Get(logging.CategoryBrowser).Infow("session closed",
		"targetId", targetID, "newActive", r.activeID)
}

// handleDisconnect is the background self-healing path: the transport lost
// the session, so it is removed and the active mark cleared if it pointed
// there. Callers never manage this.
func (r *Registry) handleDisconnect(targetID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[targetID]
	if !ok || current != s {
		return
	}
	delete(r.sessions, targetID)
	if r.activeID == targetID {
		r.activeID = ""
	}
	logging.Get(logging.CategoryBrowser).Warnw("session disconnected", "targetId", targetID)
}

func (r *Registry) lowestSeqLocked() string {
	best := ""
	var bestSeq int64
	for id, s := range r.sessions {
		if best == "" || s.seq < bestSeq {
			best = id
			bestSeq = s.seq
		}
	}
	return best
}

// ActiveID returns the current active target id, or empty.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Get returns the session for a target without opening one.
func (r *Registry) Get(targetID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[targetID]
	return s, ok
}

// Sessions returns the registered sessions in insertion order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Tabs merges live target state with registry state into the caller-facing
// tab list.
func (r *Registry) Tabs(ctx context.Context) ([]Tab, error) {
	targets, err := r.transport.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	tabs := make([]Tab, 0, len(targets))
	for _, t := range targets {
		_, connected := r.sessions[t.ID]
		tabs = append(tabs, Tab{
			ID:          t.ID,
			URL:         t.URL,
			Title:       t.Title,
			IsActive:    t.ID == r.activeID,
			IsConnected: connected,
		})
	}
	return tabs, nil
}

// CloseAll tears down every session. Called at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.setOnClosed(nil)
		s.Close()
		delete(r.sessions, id)
	}
	r.activeID = ""
}
