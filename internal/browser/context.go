package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyLimit bounds the rolling action log; the context self-bounds by
// truncation and never needs a reset.
const historyLimit = 20

// ActionRecord is one synthesized action in the rolling history.
type ActionRecord struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
}

// SessionContext is ephemeral per-process state: the last observed URL and
// title plus a short log of recent synthesized actions, used to produce
// human-readable operation summaries.
type SessionContext struct {
	mu        sync.Mutex
	lastURL   string
	lastTitle string
	history   []ActionRecord
}

// NewSessionContext creates an empty context.
func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// Record appends an action to the history, truncating the oldest entries.
func (c *SessionContext) Record(kind, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, ActionRecord{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Kind:   kind,
		Detail: detail,
	})
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
}

// Observe updates the last seen URL/title, returning the previous pair for
// "navigated from X to Y" style summaries.
func (c *SessionContext) Observe(url, title string) (prevURL, prevTitle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prevURL, prevTitle = c.lastURL, c.lastTitle
	c.lastURL, c.lastTitle = url, title
	return prevURL, prevTitle
}

// Last returns the most recently observed URL and title.
func (c *SessionContext) Last() (url, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastURL, c.lastTitle
}

// History returns a copy of the rolling action log, oldest first.
func (c *SessionContext) History() []ActionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActionRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Summarize renders the history tail for diagnostics.
func (c *SessionContext) Summarize(n int) string {
	h := c.History()
	if len(h) > n {
		h = h[len(h)-n:]
	}
	s := ""
	for i, rec := range h {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s %s", rec.Kind, rec.Detail)
	}
	return s
}
