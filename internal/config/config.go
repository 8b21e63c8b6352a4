// Package config holds browserd configuration: defaults, an optional YAML
// file, and BROWSERD_* environment overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all browserd configuration.
type Config struct {
	// Remote-debugging endpoint of the browser under control.
	Debug DebugConfig `yaml:"debug"`

	// Event buffer capacities.
	Buffers BufferConfig `yaml:"buffers"`

	// Process supervisor timing.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Action executor timing.
	Actions ActionConfig `yaml:"actions"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DebugConfig locates the browser's remote-debugging endpoint.
type DebugConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Endpoint returns the host:port address of the debugging endpoint.
func (d DebugConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// BufferConfig bounds the per-session event buffers.
type BufferConfig struct {
	ConsoleCapacity int `yaml:"console_capacity"`
	NetworkCapacity int `yaml:"network_capacity"`
}

// SupervisorConfig times the launch/readiness sequence.
type SupervisorConfig struct {
	LaunchTimeoutMs int    `yaml:"launch_timeout_ms"` // port readiness deadline after spawn
	PollIntervalMs  int    `yaml:"poll_interval_ms"`  // readiness poll cadence
	KillGraceMs     int    `yaml:"kill_grace_ms"`     // grace before force-kill
	UserDataDir     string `yaml:"user_data_dir"`     // empty = derived under os.TempDir
}

// LaunchTimeout returns the launch readiness deadline.
func (s SupervisorConfig) LaunchTimeout() time.Duration {
	return time.Duration(s.LaunchTimeoutMs) * time.Millisecond
}

// PollInterval returns the readiness poll cadence.
func (s SupervisorConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// KillGrace returns the graceful-termination window.
func (s SupervisorConfig) KillGrace() time.Duration {
	return time.Duration(s.KillGraceMs) * time.Millisecond
}

// ActionConfig times synthetic input.
type ActionConfig struct {
	SettleMs       int `yaml:"settle_ms"`         // pause after input dispatch
	WaitPollMs     int `yaml:"wait_poll_ms"`      // wait_for poll cadence
	TypeKeyDelayMs int `yaml:"type_key_delay_ms"` // delay between key events
}

// Settle returns the post-dispatch settle delay.
func (a ActionConfig) Settle() time.Duration {
	return time.Duration(a.SettleMs) * time.Millisecond
}

// WaitPoll returns the wait_for polling interval.
func (a ActionConfig) WaitPoll() time.Duration {
	return time.Duration(a.WaitPollMs) * time.Millisecond
}

// TypeKeyDelay returns the inter-keystroke delay.
func (a ActionConfig) TypeKeyDelay() time.Duration {
	return time.Duration(a.TypeKeyDelayMs) * time.Millisecond
}

// LoggingConfig configures the log sink.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty = stderr
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug: DebugConfig{
			Host: "localhost",
			Port: 9222,
		},
		Buffers: BufferConfig{
			ConsoleCapacity: 500,
			NetworkCapacity: 200,
		},
		Supervisor: SupervisorConfig{
			LaunchTimeoutMs: 5000,
			PollIntervalMs:  200,
			KillGraceMs:     2000,
		},
		Actions: ActionConfig{
			SettleMs:       300,
			WaitPollMs:     100,
			TypeKeyDelayMs: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies env
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers BROWSERD_* environment variables over the
// file/default values. Invalid numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BROWSERD_DEBUG_HOST"); v != "" {
		c.Debug.Host = v
	}
	if v := os.Getenv("BROWSERD_DEBUG_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Debug.Port = n
		}
	}
	if v := os.Getenv("BROWSERD_CONSOLE_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Buffers.ConsoleCapacity = n
		}
	}
	if v := os.Getenv("BROWSERD_NETWORK_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Buffers.NetworkCapacity = n
		}
	}
	if v := os.Getenv("BROWSERD_LAUNCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Supervisor.LaunchTimeoutMs = n
		}
	}
	if v := os.Getenv("BROWSERD_USER_DATA_DIR"); v != "" {
		c.Supervisor.UserDataDir = v
	}
	if v := os.Getenv("BROWSERD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BROWSERD_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) validate() error {
	if c.Debug.Port <= 0 || c.Debug.Port > 65535 {
		return fmt.Errorf("invalid debug port %d", c.Debug.Port)
	}
	if c.Buffers.ConsoleCapacity <= 0 {
		return fmt.Errorf("console buffer capacity must be positive, got %d", c.Buffers.ConsoleCapacity)
	}
	if c.Buffers.NetworkCapacity <= 0 {
		return fmt.Errorf("network buffer capacity must be positive, got %d", c.Buffers.NetworkCapacity)
	}
	return nil
}
