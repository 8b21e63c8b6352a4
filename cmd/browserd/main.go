package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chipp-ai/dispatch-sub015/internal/browser"
	"github.com/chipp-ai/dispatch-sub015/internal/config"
	"github.com/chipp-ai/dispatch-sub015/internal/logging"
	"github.com/chipp-ai/dispatch-sub015/internal/tools"
)

// Set via -ldflags at release time.
var version = "dev"

var (
	configPath string
	logLevel   string
	logFile    string
	debugHost  string
	debugPort  int
)

var rootCmd = &cobra.Command{
	Use:   "browserd",
	Short: "browserd - browser automation over the Chrome DevTools Protocol",
	Long: `browserd attaches to a Chrome or Chromium instance over the DevTools
Protocol and exposes tab management, console and network capture, page
interaction, and visual comparison as newline-delimited JSON operations
on stdin/stdout.

Run without arguments to start serving.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve operations over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the browserd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("browserd %s\n", version)
	},
}

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List available operations",
	Run: func(cmd *cobra.Command, args []string) {
		reg := tools.NewRegistry()
		tools.RegisterAll(reg, browser.NewEngine(config.Default()))
		for _, desc := range reg.Describe() {
			fmt.Printf("%-24s %s\n", desc["name"], desc["description"])
		}
	},
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if debugHost != "" {
		cfg.Debug.Host = debugHost
	}
	if debugPort != 0 {
		cfg.Debug.Port = debugPort
	}

	if err := logging.Initialize(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()

	log := logging.Get(logging.CategorySupervisor)
	log.Infow("starting", "version", version, "endpoint", cfg.Debug.Endpoint())

	engine := browser.NewEngine(cfg)
	defer engine.Shutdown()

	if configPath != "" {
		stop, err := config.Watch(configPath, func(updated *config.Config) {
			log.Infow("configuration reloaded", "path", configPath)
			logging.SetLevel(updated.Logging.Level)
			engine.ApplyConfig(updated)
		})
		if err != nil {
			log.Warnw("config watch unavailable", "error", err)
		} else {
			defer stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := tools.NewRegistry()
	tools.RegisterAll(reg, engine)

	server := tools.NewServer(reg, os.Stdin, os.Stdout)
	if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&debugHost, "debug-host", "", "DevTools host (default localhost)")
	rootCmd.PersistentFlags().IntVar(&debugPort, "debug-port", 0, "DevTools port (default 9222)")

	rootCmd.AddCommand(serveCmd, versionCmd, opsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
