package browser

import (
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDetachedSession runs the full ingestion pipeline against the event
// channel with no protocol connection behind it.
func startDetachedSession(t *testing.T) *Session {
	t.Helper()
	s := newSession(Target{ID: "t1", URL: "http://example", Type: "page"}, nil)
	s.subscribe = func() { <-s.ctx.Done() }
	s.configureBuffers(16, 8)
	s.StartIngestion()
	t.Cleanup(func() {
		s.Close()
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session did not shut down")
		}
	})
	return s
}

func TestIngestion_ConsoleEventsReachBuffer(t *testing.T) {
	s := startDetachedSession(t)

	s.publish(consoleEvent{entry: LogEntry{Level: "error", Text: "boom", Timestamp: time.Now()}})
	s.publish(consoleEvent{entry: LogEntry{Level: "log", Text: "hello", Timestamp: time.Now()}})

	require.Eventually(t, func() bool { return s.Logs.Len() == 2 }, time.Second, 5*time.Millisecond)
	snap := s.Logs.Snapshot()
	assert.Equal(t, "boom", snap[0].Text)
	assert.Equal(t, "hello", snap[1].Text)
}

func TestIngestion_NetworkLifecycleCorrelation(t *testing.T) {
	s := startDetachedSession(t)

	s.publish(requestSentEvent{entry: NetworkEntry{
		RequestID: "r1", Method: "GET", URL: "http://example/api", Status: StatusPending, Timestamp: time.Now(),
	}})
	s.publish(responseEvent{requestID: "r1", statusCode: 503, statusText: "Service Unavailable", mimeType: "text/html"})

	require.Eventually(t, func() bool {
		snap := s.Network.Snapshot()
		return len(snap) == 1 && snap[0].StatusCode == 503
	}, time.Second, 5*time.Millisecond)

	snap := s.Network.Snapshot()
	assert.Equal(t, "503", snap[0].Status)
	assert.True(t, snap[0].IsFailure())
}

func TestIngestion_LoadingFailedMarksEntry(t *testing.T) {
	s := startDetachedSession(t)

	s.publish(requestSentEvent{entry: NetworkEntry{
		RequestID: "r1", URL: "http://example/img", Status: StatusPending, Timestamp: time.Now(),
	}})
	s.publish(loadingFailedEvent{requestID: "r1", errorText: "net::ERR_CONNECTION_REFUSED"})

	require.Eventually(t, func() bool {
		snap := s.Network.Snapshot()
		return len(snap) == 1 && snap[0].Status == StatusFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", s.Network.Snapshot()[0].ErrorText)
}

func TestIngestion_UnparseableEventIsDropped(t *testing.T) {
	s := startDetachedSession(t)

	s.publish(unparseableEvent{source: "responseReceived", reason: "nil response"})
	s.publish(consoleEvent{entry: LogEntry{Text: "still flowing", Timestamp: time.Now()}})

	require.Eventually(t, func() bool { return s.Logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Network.Len())
}

func TestPublish_ShedsUnderBackpressure(t *testing.T) {
	// No ingestion loop: the channel fills and the overflow is counted.
	s := newSession(Target{ID: "t1"}, nil)
	defer s.cancel()

	for i := 0; i < eventChannelSize+7; i++ {
		s.publish(consoleEvent{entry: LogEntry{Text: "x"}})
	}
	assert.Equal(t, int64(7), s.DroppedEvents())
}

func TestConsoleEntryFrom_NormalizesLevels(t *testing.T) {
	tests := []struct {
		apiType proto.RuntimeConsoleAPICalledType
		want    string
	}{
		{proto.RuntimeConsoleAPICalledTypeWarning, "warn"},
		{proto.RuntimeConsoleAPICalledTypeError, "error"},
		{proto.RuntimeConsoleAPICalledTypeLog, "log"},
		{proto.RuntimeConsoleAPICalledTypeInfo, "info"},
		{proto.RuntimeConsoleAPICalledTypeDebug, "debug"},
		{proto.RuntimeConsoleAPICalledTypeTable, "log"},
	}
	for _, tt := range tests {
		t.Run(string(tt.apiType), func(t *testing.T) {
			entry := consoleEntryFrom(&proto.RuntimeConsoleAPICalled{Type: tt.apiType})
			assert.Equal(t, tt.want, entry.Level)
		})
	}
}

func TestExceptionEntryFrom(t *testing.T) {
	entry := exceptionEntryFrom(&proto.RuntimeExceptionThrown{
		ExceptionDetails: &proto.RuntimeExceptionDetails{
			Text: "Uncaught",
			Exception: &proto.RuntimeRemoteObject{
				Description: "TypeError: x is not a function",
			},
		},
	})
	assert.Equal(t, "error", entry.Level)
	assert.Equal(t, "TypeError: x is not a function", entry.Text)

	// Missing details still yields a usable entry.
	bare := exceptionEntryFrom(&proto.RuntimeExceptionThrown{})
	assert.Equal(t, "error", bare.Level)
	assert.NotEmpty(t, bare.Text)
}
