package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gleanlang/glean/internal/config"
	"github.com/gleanlang/glean/internal/home"
	"github.com/gleanlang/glean/internal/svcctx"
	"github.com/gleanlang/glean/version"
)

var (
	cfgFile   string
	homeDir   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "glean",
	Short: "Compile plain-language extraction programs and run them against a model",
	Long: `Glean compiles small declarative programs ("extract these fields from
this text", "classify this text into these categories") into a prompt +
JSON schema pair, runs them against a model provider, and post-processes
every answer deterministically: type coercion, schema validation, flag
rules and an optional drafting pass.

A program is a plain .ai file:

  DEFINE expense:
    merchant TEXT
    amount MONEY
    category ONE OF [travel, meals, equipment]

  FROM expenses.csv
  EXTRACT expense
  FLAG WHEN amount OVER 500
  OUTPUT expenses.json`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.glean/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "glean home directory (default: ~/.glean)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "", "log format: text or json (default: from config)",
	)

	// Build the shared services once, before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		cmd.SetContext(svcctx.WithServices(cmd.Context(), svc))
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// buildServices wires the home directory, config manager and logger every
// command shares. Flags override config file values.
func buildServices() (*svcctx.Services, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(resolveCfgFile(h))
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	format := cfg.LogFormat
	if logFormat != "" {
		format = logFormat
	}

	logger, err := buildLogger(level, format)
	if err != nil {
		return nil, err
	}

	if homeDir != "" && !h.Exists() {
		logger.Warn("home directory does not exist; 'glean config init' creates it", "path", h.Path())
	}

	return &svcctx.Services{Logger: logger, Config: mgr, Home: h}, nil
}

// resolveCfgFile picks the config file: an explicit --config wins, then an
// explicit --home directory's config.yaml, then the manager's own search
// path (./config.yaml, ~/.glean/config.yaml).
func resolveCfgFile(h *home.Dir) string {
	if cfgFile != "" {
		return cfgFile
	}
	if homeDir != "" && h.ConfigExists() {
		return h.ConfigPath()
	}
	return ""
}

// buildLogger constructs the process logger. Logs go to stderr so command
// output on stdout stays clean.
func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
