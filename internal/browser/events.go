package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// Default buffer capacities; overridable through config.
const (
	DefaultConsoleCapacity = 500
	DefaultNetworkCapacity = 200
)

// eventChannelSize bounds the per-session queue between the protocol
// callbacks and the ingestion loop. Callbacks never block: when the queue is
// full the event is shed and counted.
const eventChannelSize = 256

// event is the tagged union of protocol notifications the ingestion loop
// consumes. Exactly one concrete type per notification kind, plus a variant
// for payloads that failed validation.
type event interface {
	eventKind() string
}

type consoleEvent struct {
	entry LogEntry
}

func (consoleEvent) eventKind() string { return "console" }

type requestSentEvent struct {
	entry NetworkEntry
}

func (requestSentEvent) eventKind() string { return "requestSent" }

type responseEvent struct {
	requestID  string
	statusCode int
	statusText string
	mimeType   string
}

func (responseEvent) eventKind() string { return "response" }

type loadingFailedEvent struct {
	requestID string
	errorText string
}

func (loadingFailedEvent) eventKind() string { return "loadingFailed" }

// unparseableEvent marks a notification whose payload failed validation. It
// is logged and dropped; one malformed event must not interrupt the stream.
type unparseableEvent struct {
	source string
	reason string
}

func (unparseableEvent) eventKind() string { return "unparseable" }

// StartIngestion subscribes to console, exception, and network lifecycle
// notifications and runs the buffer-maintenance loop until the session
// closes or the browser drops the connection. Subscriptions live for the
// session's lifetime; they are torn down implicitly when it closes.
func (s *Session) StartIngestion() {
	go s.ingest()

	go func() {
		defer close(s.done)
		s.subscribe()
		// Connection gone or session closed: stop the ingest loop and let
		// the registry self-heal.
		s.cancel()
		close(s.events)
		s.notifyClosed()
	}()
}

// subscribeEvents registers the protocol handlers and blocks until the
// session context is cancelled or the connection drops.
func (s *Session) subscribeEvents() {
	wait := s.page.Context(s.ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			s.publish(consoleEvent{entry: consoleEntryFrom(ev)})
		},
		func(ev *proto.RuntimeExceptionThrown) {
			s.publish(consoleEvent{entry: exceptionEntryFrom(ev)})
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil {
				s.publish(unparseableEvent{source: "requestWillBeSent", reason: "nil request"})
				return
			}
			s.publish(requestSentEvent{entry: NetworkEntry{
				RequestID:    string(ev.RequestID),
				Timestamp:    time.Now(),
				Method:       ev.Request.Method,
				URL:          ev.Request.URL,
				ResourceType: string(ev.Type),
				Status:       StatusPending,
			}})
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				s.publish(unparseableEvent{source: "responseReceived", reason: "nil response"})
				return
			}
			s.publish(responseEvent{
				requestID:  string(ev.RequestID),
				statusCode: ev.Response.Status,
				statusText: ev.Response.StatusText,
				mimeType:   ev.Response.MIMEType,
			})
		},
		func(ev *proto.NetworkLoadingFailed) {
			s.publish(loadingFailedEvent{
				requestID: string(ev.RequestID),
				errorText: ev.ErrorText,
			})
		},
	)
	wait()
}

// publish hands an event to the ingestion loop without ever blocking the
// protocol callback.
func (s *Session) publish(ev event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// ingest is the single writer for this session's buffers.
func (s *Session) ingest() {
	log := logging.Get(logging.CategoryEvents)
	for ev := range s.events {
		switch e := ev.(type) {
		case consoleEvent:
			s.Logs.Append(e.entry)
		case requestSentEvent:
			entry := e.entry
			s.Network.Add(&entry)
		case responseEvent:
			// Unknown id: the request predates the buffer or was evicted.
			s.Network.Update(e.requestID, func(n *NetworkEntry) {
				n.Status = fmt.Sprintf("%d", e.statusCode)
				n.StatusCode = e.statusCode
				n.StatusText = e.statusText
				n.MimeType = e.mimeType
			})
		case loadingFailedEvent:
			s.Network.Update(e.requestID, func(n *NetworkEntry) {
				n.Status = StatusFailed
				n.ErrorText = e.errorText
			})
		case unparseableEvent:
			log.Debugw("dropping unparseable event",
				"targetId", s.Target.ID, "source", e.source, "reason", e.reason)
		}
	}
}

// consoleEntryFrom normalizes a console-API notification.
func consoleEntryFrom(ev *proto.RuntimeConsoleAPICalled) LogEntry {
	level := string(ev.Type)
	switch ev.Type {
	case proto.RuntimeConsoleAPICalledTypeWarning:
		level = "warn"
	case proto.RuntimeConsoleAPICalledTypeLog,
		proto.RuntimeConsoleAPICalledTypeError,
		proto.RuntimeConsoleAPICalledTypeInfo,
		proto.RuntimeConsoleAPICalledTypeDebug:
		// already the caller-facing name
	default:
		level = "log"
	}
	return LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Text:      stringifyRemoteObjects(ev.Args),
		Stack:     shortStack(ev.StackTrace),
	}
}

// exceptionEntryFrom normalizes an uncaught exception into an error-level
// entry.
func exceptionEntryFrom(ev *proto.RuntimeExceptionThrown) LogEntry {
	entry := LogEntry{Timestamp: time.Now(), Level: "error", Text: "uncaught exception"}
	if ev.ExceptionDetails == nil {
		return entry
	}
	d := ev.ExceptionDetails
	text := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		text = d.Exception.Description
	}
	entry.Text = text
	entry.Stack = shortStack(d.StackTrace)
	return entry
}

func stringifyRemoteObjects(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

// shortStack renders the top frames of a stack trace, enough to locate the
// source without flooding the buffer.
func shortStack(st *proto.RuntimeStackTrace) string {
	if st == nil || len(st.CallFrames) == 0 {
		return ""
	}
	frames := st.CallFrames
	if len(frames) > 3 {
		frames = frames[:3]
	}
	parts := make([]string, 0, len(frames))
	for _, f := range frames {
		loc := f.URL
		if loc == "" {
			loc = string(f.ScriptID)
		}
		parts = append(parts, fmt.Sprintf("%s:%d", loc, f.LineNumber))
	}
	return strings.Join(parts, " < ")
}
