package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gleanlang/glean/internal/compile"
	"github.com/gleanlang/glean/internal/config"
	"github.com/gleanlang/glean/internal/lang"
	"github.com/gleanlang/glean/internal/output"
	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/runtime"
	"github.com/gleanlang/glean/internal/sources"
	"github.com/gleanlang/glean/internal/svcctx"
	"github.com/gleanlang/glean/internal/trace"
)

var (
	runMock        bool
	runBaseDir     string
	runConcurrency int
	runTraceFile   string
	runWatch       bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.ai>",
	Short: "Compile a program and run it end to end",
	Long: `Run parses and compiles a glean program, loads its source rows,
extracts one record per row and writes the output artifact.

The model provider comes from config (default: GitHub Models with the
token in GITHUB_TOKEN). --mock swaps in the offline heuristic extractor,
which needs no key and answers deterministically.

Examples:
  glean run expense.ai                  # Run against the configured model
  glean run expense.ai --mock           # Offline heuristics, no API key
  glean run expense.ai --concurrency 4  # Process four rows at a time
  glean run expense.ai --trace calls.jsonl
  glean run expense.ai --trace auto     # Trace into ~/.glean/trace/
  glean run expense.ai --watch          # Re-run on every save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runWatch {
			return watchAndRun(cmd.Context(), args[0])
		}
		return runProgram(cmd.Context(), args[0])
	},
}

func init() {
	runCmd.Flags().BoolVar(&runMock, "mock", false, "use the offline heuristic extractor (no API key)")
	runCmd.Flags().StringVar(&runBaseDir, "base-dir", "", "directory sources and prompts resolve against (default: the program's directory)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "rows processed in parallel (default: from config)")
	runCmd.Flags().StringVar(&runTraceFile, "trace", "", "write a JSONL trace of every model call to this file (auto: the home trace dir)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "re-run whenever the program file changes")

	rootCmd.AddCommand(runCmd)
}

// runProgram executes one parse-compile-load-extract-write cycle.
func runProgram(ctx context.Context, file string) error {
	logger := svcctx.LoggerFrom(ctx)
	cfg := svcctx.ConfigFrom(ctx).Get()

	prog, err := lang.ParseFile(file)
	if err != nil {
		return err
	}

	baseDir := runBaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(file)
	}

	plan, err := compile.Compile(prog, compile.WithBaseDir(baseDir))
	if err != nil {
		return err
	}
	if plan.Source == "" {
		return fmt.Errorf("%s has no FROM source", file)
	}

	client, err := buildClient(ctx, cfg, plan)
	if err != nil {
		return err
	}

	runID := uuid.New().String()

	var rec *trace.Recorder
	var tracePath string
	if runTraceFile != "" {
		tracePath = runTraceFile
		if tracePath == "auto" {
			h := svcctx.HomeFrom(ctx)
			if err := h.EnsureExists(); err != nil {
				return err
			}
			tracePath = h.TraceFilePath(runID)
		}
		rec, err = trace.NewRecorder(trace.RecorderConfig{Path: tracePath, Logger: logger})
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	rows, err := sources.Load(ctx, baseDir, plan.Source, plan.Settings.Headers, nil)
	if err != nil {
		return err
	}

	ext := runtime.NewExtractor(runtime.ExtractorConfig{
		Client:    client,
		Plan:      plan,
		Logger:    logger,
		Retries:   cfg.Retries,
		Timeout:   cfg.Timeout(),
		MaxTokens: cfg.MaxTokens,
		Trace:     rec,
		RunID:     runID,
	})

	concurrency := runConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency
	}
	runner := runtime.NewRunner(runtime.RunnerConfig{
		Extractor:   ext,
		Logger:      logger,
		Concurrency: concurrency,
	})

	records, summary, err := runner.Run(ctx, rows)
	if err != nil {
		return err
	}

	outPath := plan.Output
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(baseDir, outPath)
	}
	if err := output.Write(outPath, records); err != nil {
		return err
	}

	fmt.Println(summary)
	fmt.Printf("Wrote %d records to %s\n", len(records), outPath)
	if rec != nil {
		rec.Close()
		fmt.Printf("Trace written to %s\n", tracePath)
	}
	return nil
}

// buildClient picks the chat client for a run. --mock bypasses provider
// config entirely.
func buildClient(ctx context.Context, cfg *config.Config, plan *compile.Plan) (providers.LLMClient, error) {
	if runMock {
		return providers.NewOfflineClient(plan.Schema, plan.Schemas), nil
	}
	return cfg.NewLLMClient(ctx)
}

// watchAndRun re-executes the program whenever its file changes. Editors
// replace files on save, so the watch is on the directory with events
// filtered by name.
func watchAndRun(ctx context.Context, file string) error {
	logger := svcctx.LoggerFrom(ctx)

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if err := runProgram(ctx, file); err != nil {
		logger.Error("run failed", "error", err)
	}
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", file)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(abs) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// Editors fire bursts of events per save; let them settle.
			time.Sleep(100 * time.Millisecond)
			drainEvents(watcher)

			logger.Info("program changed, re-running", "file", file)
			if err := runProgram(ctx, file); err != nil {
				logger.Error("run failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

func drainEvents(w *fsnotify.Watcher) {
	for {
		select {
		case <-w.Events:
		default:
			return
		}
	}
}
