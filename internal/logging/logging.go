// Package logging provides categorized structured logging for browserd.
// The tool protocol owns stdout, so all log output goes to stderr (or a
// file when configured); callers grab a category logger once and keep it.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem for log scoping.
type Category string

const (
	CategoryBrowser    Category = "browser"    // sessions, transport, CDP traffic
	CategoryEvents     Category = "events"     // ingestion loops, buffer maintenance
	CategoryTools      Category = "tools"      // tool dispatch and results
	CategorySupervisor Category = "supervisor" // browser process management
	CategoryConfig     Category = "config"     // config load and reload
)

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)

	// Shared across Initialize calls so loggers callers cached before a
	// config reload still pick up the new level.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize builds the root logger. levelName is one of debug/info/warn/
// error; unknown values fall back to info. file, when non-empty, redirects
// output away from stderr. Safe to call again on config reload.
func Initialize(levelName, file string) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	SetLevel(levelName)
	cfg.Level = level

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// SetLevel re-levels every logger built by this package, including ones
// callers obtained before the call. Unknown values fall back to info.
func SetLevel(levelName string) {
	lvl, err := zapcore.ParseLevel(levelName)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}

// Get returns the sugared logger for a category, creating it on first use.
// Before Initialize it returns a no-op logger so early code paths stay quiet.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	base := root
	if base == nil {
		base = zap.NewNop()
	}
	l := base.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// Fallback logs a pre-initialization failure directly to stderr and exits
// are left to the caller.
func Fallback(msg string, err error) {
	if err != nil {
		os.Stderr.WriteString("browserd: " + msg + ": " + err.Error() + "\n")
		return
	}
	os.Stderr.WriteString("browserd: " + msg + "\n")
}
