package tools

import (
	"errors"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
)

// ErrorPayload is the structured error object returned to callers: always a
// human-readable message, plus a remediation hint and the current tab list
// where applicable.
type ErrorPayload struct {
	Error         string        `json:"error"`
	Hint          string        `json:"hint,omitempty"`
	AvailableTabs []browser.Tab `json:"availableTabs,omitempty"`
}

// shapeError builds the caller-facing error object for a terminal failure.
func shapeError(err error) ErrorPayload {
	payload := ErrorPayload{Error: err.Error()}

	if errors.Is(err, browser.ErrTransportUnavailable) || errors.Is(err, browser.ErrLaunchTimeout) {
		payload.Hint = browser.StartHint
	}
	if errors.Is(err, browser.ErrBrowserNotFound) {
		payload.Hint = "install Chrome or Chromium, or point BROWSERD_USER_DATA_DIR at an existing install"
	}

	var notFound *browser.TargetNotFoundError
	if errors.As(err, &notFound) {
		tabs := make([]browser.Tab, 0, len(notFound.Available))
		for _, t := range notFound.Available {
			tabs = append(tabs, browser.Tab{ID: t.ID, URL: t.URL, Title: t.Title})
		}
		payload.AvailableTabs = tabs
	}
	return payload
}
