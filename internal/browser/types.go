// Package browser drives a live browser over the Chrome DevTools Protocol:
// it multiplexes per-tab sessions, streams console and network events into
// bounded buffers, synthesizes user input, and captures screenshots.
package browser

import (
	"fmt"
	"strings"
	"time"
)

// Target is an addressable browser tab as reported by the debugging endpoint.
type Target struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// LogEntry is one console message or normalized uncaught exception.
// Immutable once appended to a buffer.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // log, warn, error, info, debug
	Text      string    `json:"text"`
	Stack     string    `json:"stack,omitempty"`
}

// Network request status values beyond numeric HTTP statuses.
const (
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// NetworkEntry tracks one request through its lifecycle. Created on
// request-sent, mutated in place on response/failure, keyed by the
// protocol's request id.
type NetworkEntry struct {
	RequestID    string    `json:"requestId"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	ResourceType string    `json:"resourceType,omitempty"`
	Status       string    `json:"status"` // "pending", numeric status, or "failed"
	StatusCode   int       `json:"statusCode,omitempty"`
	StatusText   string    `json:"statusText,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	ErrorText    string    `json:"errorText,omitempty"`
}

// IsFailure reports whether the entry represents a failed or error-status
// request.
func (e *NetworkEntry) IsFailure() bool {
	return e.Status == StatusFailed || e.StatusCode >= 400
}

// Tab is the caller-facing view of a target plus registry state.
type Tab struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	IsActive    bool   `json:"isActive"`
	IsConnected bool   `json:"isConnected"`
}

// PageContext is a lightweight qualitative probe of the rendered page,
// bundled with screenshots so callers get context without a second round
// trip.
type PageContext struct {
	Heading     string `json:"heading,omitempty"`
	ButtonCount int    `json:"buttonCount"`
	InputCount  int    `json:"inputCount"`
	LinkCount   int    `json:"linkCount"`
	HasDialog   bool   `json:"hasDialog"`
	HasErrors   bool   `json:"hasErrors"`
}

// ElementInfo describes the element found by a locate phase: bounding-box
// center coordinates plus descriptive metadata.
type ElementInfo struct {
	Found      bool              `json:"found"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Tag        string            `json:"tag,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Matches    int               `json:"matches"`
}

// Describe renders a short human-readable description of the element.
func (e ElementInfo) Describe() string {
	if !e.Found {
		return "no element"
	}
	desc := "<" + strings.ToLower(e.Tag) + ">"
	if t := strings.TrimSpace(e.Text); t != "" {
		if len(t) > 40 {
			t = t[:40] + "…"
		}
		desc += fmt.Sprintf(" %q", t)
	}
	return desc
}
