package browser

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chipp-ai/dispatch-sub015/internal/config"
)

// fakeProc records the process-management calls the supervisor makes.
type fakeProc struct {
	mu      sync.Mutex
	running bool
	calls   []string
	spawned [][]string
	// killClears makes the graceful/force kill calls flip running off.
	killClears bool
}

func (p *fakeProc) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakeProc) IsRunning(name string) (bool, error) {
	p.record("isRunning")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, nil
}

func (p *fakeProc) TerminateGracefully(name string) error {
	p.record("terminate")
	if p.killClears {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}
	return nil
}

func (p *fakeProc) ForceKill(name string) error {
	p.record("forceKill")
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *fakeProc) SpawnDetached(path string, args ...string) error {
	p.record("spawn")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spawned = append(p.spawned, append([]string{path}, args...))
	return nil
}

func versionResponse(wsURL string) func(ctx context.Context, url string) (*http.Response, error) {
	return func(ctx context.Context, url string) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"webSocketDebuggerUrl":"` + wsURL + `"}`)),
		}, nil
	}
}

func testSupervisorConfig() (config.DebugConfig, config.SupervisorConfig) {
	return config.DebugConfig{Host: "localhost", Port: 9222},
		config.SupervisorConfig{
			LaunchTimeoutMs: 300,
			PollIntervalMs:  10,
			KillGraceMs:     1,
		}
}

func TestSupervisor_AlreadyDebuggable(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	proc := &fakeProc{}
	sv := newSupervisor(debug, cfg, proc, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return true }
	sv.httpGet = versionResponse("ws://localhost:9222/devtools/browser/abc")

	res, err := sv.EnsureRunning(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Connected)
	assert.Empty(t, proc.calls, "no process management when already debuggable")
}

func TestSupervisor_PortHeldByNonBrowser(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	sv := newSupervisor(debug, cfg, &fakeProc{}, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return true }
	sv.httpGet = func(ctx context.Context, url string) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("<html>not a debugger</html>")),
		}, nil
	}

	_, err := sv.EnsureRunning(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a debuggable browser")
}

func TestSupervisor_BinaryNotFound(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	sv := newSupervisor(debug, cfg, &fakeProc{}, func() (string, bool) { return "", false })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return false }

	_, err := sv.EnsureRunning(context.Background(), "")
	assert.ErrorIs(t, err, ErrBrowserNotFound)
}

func TestSupervisor_LaunchesAndWaitsForPort(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	cfg.UserDataDir = t.TempDir()
	proc := &fakeProc{}
	sv := newSupervisor(debug, cfg, proc, func() (string, bool) { return "/usr/bin/chromium", true })

	var mu sync.Mutex
	up := false
	sv.dialPort = func(addr string, timeout time.Duration) bool {
		mu.Lock()
		defer mu.Unlock()
		return up
	}
	sv.httpGet = versionResponse("ws://localhost:9222/devtools/browser/abc")

	// Port comes up shortly after spawn, inside the launch deadline.
	go func() {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		up = true
		mu.Unlock()
	}()

	res, err := sv.EnsureRunning(context.Background(), "http://app.local")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, proc.spawned, 1)
	spawned := proc.spawned[0]
	assert.Equal(t, "/usr/bin/chromium", spawned[0])
	assert.Contains(t, spawned, "--remote-debugging-port=9222")
	assert.Contains(t, spawned, "--user-data-dir="+cfg.UserDataDir)
	assert.Contains(t, spawned, "--no-first-run")
	assert.Contains(t, spawned, "http://app.local")
}

func TestSupervisor_LaunchTimeout(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	cfg.UserDataDir = t.TempDir()
	sv := newSupervisor(debug, cfg, &fakeProc{}, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return false }

	_, err := sv.EnsureRunning(context.Background(), "")
	assert.ErrorIs(t, err, ErrLaunchTimeout)
	assert.NotErrorIs(t, err, ErrBrowserNotFound)
}

func TestSupervisor_KillsNonDebuggableInstanceBeforeLaunch(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	cfg.UserDataDir = t.TempDir()
	proc := &fakeProc{running: true, killClears: true}
	sv := newSupervisor(debug, cfg, proc, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return false }

	_, err := sv.EnsureRunning(context.Background(), "")
	assert.ErrorIs(t, err, ErrLaunchTimeout)

	// Graceful termination sufficed, so no force kill before the spawn.
	assert.Equal(t, []string{"isRunning", "terminate", "isRunning", "spawn"}, proc.calls)
}

func TestSupervisor_ForceKillsStragglers(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	cfg.UserDataDir = t.TempDir()
	proc := &fakeProc{running: true} // survives graceful termination
	sv := newSupervisor(debug, cfg, proc, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return false }

	_, err := sv.EnsureRunning(context.Background(), "")
	assert.ErrorIs(t, err, ErrLaunchTimeout)
	assert.Equal(t, []string{"isRunning", "terminate", "isRunning", "forceKill", "spawn"}, proc.calls)
}

func TestSupervisor_ContextCancelDuringPoll(t *testing.T) {
	debug, cfg := testSupervisorConfig()
	cfg.UserDataDir = t.TempDir()
	cfg.LaunchTimeoutMs = 10_000
	sv := newSupervisor(debug, cfg, &fakeProc{}, func() (string, bool) { return "/usr/bin/chromium", true })
	sv.dialPort = func(addr string, timeout time.Duration) bool { return false }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := sv.EnsureRunning(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
