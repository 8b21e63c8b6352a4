package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/chipp-ai/dispatch-sub015/internal/config"
	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// ErrBrowserNotFound means no browser executable could be located.
var ErrBrowserNotFound = errors.New("browser binary not found")

// ErrLaunchTimeout means the browser was spawned but its debugging port never
// became connectable within the deadline. Distinct from ErrBrowserNotFound.
var ErrLaunchTimeout = errors.New("browser did not become debuggable in time")

// ProcessController abstracts OS process management so the supervisor's core
// logic stays platform-independent. Platform implementations live in
// proc_unix.go and proc_windows.go.
type ProcessController interface {
	// IsRunning reports whether a process with the given image name exists.
	IsRunning(name string) (bool, error)
	// TerminateGracefully asks all processes with the image name to exit.
	TerminateGracefully(name string) error
	// ForceKill kills remaining processes with the image name.
	ForceKill(name string) error
	// SpawnDetached starts the executable detached from this process.
	SpawnDetached(path string, args ...string) error
}

// BinaryLocator finds a browser executable. The default consults well-known
// installation paths.
type BinaryLocator func() (string, bool)

func defaultLocator() (string, bool) {
	return launcher.LookPath()
}

// StartResult reports the outcome of EnsureRunning.
type StartResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Connected bool   `json:"connected"`
}

// Supervisor ensures a debuggable browser instance is listening on the
// configured port, launching one if needed. The launch/kill sequence is not
// reentrant; callers issue one EnsureRunning at a time.
type Supervisor struct {
	debug    config.DebugConfig
	cfg      config.SupervisorConfig
	proc     ProcessController
	locate   BinaryLocator
	httpGet  func(ctx context.Context, url string) (*http.Response, error)
	dialPort func(addr string, timeout time.Duration) bool
}

// NewSupervisor creates a supervisor using the platform process controller.
func NewSupervisor(debug config.DebugConfig, cfg config.SupervisorConfig) *Supervisor {
	return newSupervisor(debug, cfg, newProcessController(), defaultLocator)
}

func newSupervisor(debug config.DebugConfig, cfg config.SupervisorConfig, proc ProcessController, locate BinaryLocator) *Supervisor {
	return &Supervisor{
		debug:  debug,
		cfg:    cfg,
		proc:   proc,
		locate: locate,
		httpGet: func(ctx context.Context, url string) (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			return http.DefaultClient.Do(req)
		},
		dialPort: func(addr string, timeout time.Duration) bool {
			conn, err := net.DialTimeout("tcp", addr, timeout)
			if err != nil {
				return false
			}
			_ = conn.Close()
			return true
		},
	}
}

// EnsureRunning makes the debugging endpoint available: verify an existing
// listener, or locate a browser binary, clear any non-debuggable instance,
// and launch a fresh one with remote debugging against a dedicated profile
// directory. The browser refuses remote debugging on its default profile,
// hence the dedicated user-data dir.
func (sv *Supervisor) EnsureRunning(ctx context.Context, url string) (StartResult, error) {
	log := logging.Get(logging.CategorySupervisor)
	addr := sv.debug.Endpoint()

	if sv.dialPort(addr, time.Second) {
		if sv.verifyDebugger(ctx) {
			return StartResult{
				Success:   true,
				Message:   fmt.Sprintf("browser already debuggable at %s", addr),
				Connected: true,
			}, nil
		}
		return StartResult{}, fmt.Errorf("port %s has a listener that is not a debuggable browser", addr)
	}

	bin, ok := sv.locate()
	if !ok {
		return StartResult{}, ErrBrowserNotFound
	}
	name := filepath.Base(bin)

	// A running non-debuggable instance holds the profile lock; clear it
	// before relaunching with debugging enabled.
	if running, err := sv.proc.IsRunning(name); err == nil && running {
		log.Infow("terminating non-debuggable browser instance", "name", name)
		_ = sv.proc.TerminateGracefully(name)
		_ = sleep(ctx, sv.cfg.KillGrace())
		if still, err := sv.proc.IsRunning(name); err == nil && still {
			log.Warnw("force killing browser stragglers", "name", name)
			_ = sv.proc.ForceKill(name)
		}
	}

	dataDir := sv.cfg.UserDataDir
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "browserd-profile")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return StartResult{}, fmt.Errorf("create user data dir: %w", err)
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", sv.debug.Port),
		"--user-data-dir=" + dataDir,
		"--no-first-run",
		"--no-default-browser-check",
	}
	if url != "" {
		args = append(args, url)
	}
	log.Infow("launching browser", "bin", bin, "port", sv.debug.Port)
	if err := sv.proc.SpawnDetached(bin, args...); err != nil {
		return StartResult{}, fmt.Errorf("spawn browser: %w", err)
	}

	deadline := time.Now().Add(sv.cfg.LaunchTimeout())
	for time.Now().Before(deadline) {
		if sv.dialPort(addr, time.Second) && sv.verifyDebugger(ctx) {
			return StartResult{
				Success:   true,
				Message:   fmt.Sprintf("browser launched, debugging at %s", addr),
				Connected: true,
			}, nil
		}
		if err := sleep(ctx, sv.cfg.PollInterval()); err != nil {
			return StartResult{}, err
		}
	}
	return StartResult{}, fmt.Errorf("%w (waited %s)", ErrLaunchTimeout, sv.cfg.LaunchTimeout())
}

// verifyDebugger confirms the listener speaks the debugging protocol rather
// than being some unrelated process on the port.
func (sv *Supervisor) verifyDebugger(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := sv.httpGet(reqCtx, fmt.Sprintf("http://%s/json/version", sv.debug.Endpoint()))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return false
	}
	return version.WebSocketDebuggerURL != ""
}
