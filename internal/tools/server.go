package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// maxLineBytes bounds a single request line. Screenshots travel in
// responses, not requests, so requests stay small; this is headroom for
// large execute_js payloads.
const maxLineBytes = 4 * 1024 * 1024

// request is one line on stdin.
type request struct {
	ID   string                 `json:"id,omitempty"`
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// response is one line on stdout. Exactly one of Result or Error is set.
type response struct {
	ID            string        `json:"id,omitempty"`
	Result        interface{}   `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	Hint          string        `json:"hint,omitempty"`
	AvailableTabs []browser.Tab `json:"availableTabs,omitempty"`
}

// Server reads newline-delimited JSON requests, dispatches them to
// registered tools, and writes one response line per request. Requests
// are handled sequentially: browser actions are stateful and callers
// depend on ordering.
type Server struct {
	registry *Registry
	in       io.Reader
	out      io.Writer

	writeMu sync.Mutex
}

func NewServer(registry *Registry, in io.Reader, out io.Writer) *Server {
	return &Server{registry: registry, in: in, out: out}
}

// Serve runs until stdin closes or ctx is cancelled. A malformed line
// produces an error response, never a crash.
func (s *Server) Serve(ctx context.Context) error {
	log := logging.Get(logging.CategoryTools)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		start := time.Now()
		resp := s.dispatch(ctx, req)
		log.Debugw("dispatched", "op", req.Op, "id", req.ID,
			"latency", time.Since(start), "ok", resp.Error == "")

		s.write(resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.Op == "list_operations" {
		return response{ID: req.ID, Result: s.registry.Describe()}
	}

	tool, ok := s.registry.Get(req.Op)
	if !ok {
		return response{
			ID:    req.ID,
			Error: fmt.Sprintf("unknown operation %q", req.Op),
			Hint:  fmt.Sprintf("known operations: %v", s.registry.Names()),
		}
	}

	args := req.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		payload := shapeError(err)
		return response{
			ID:            req.ID,
			Error:         payload.Error,
			Hint:          payload.Hint,
			AvailableTabs: payload.AvailableTabs,
		}
	}
	return response{ID: req.ID, Result: result}
}

func (s *Server) write(resp response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		logging.Get(logging.CategoryTools).Errorw("marshal response", "error", err)
		data = []byte(`{"error":"internal: response not serializable"}`)
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		logging.Get(logging.CategoryTools).Errorw("write response", "error", err)
	}
}
