package runtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gleanlang/glean/internal/output"
	"github.com/gleanlang/glean/internal/record"
)

// DefaultConcurrency processes rows strictly in sequence.
const DefaultConcurrency = 1

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Extractor   *Extractor
	Logger      *slog.Logger
	Concurrency int // parallel rows (default 1)
}

// Runner processes batches of rows through an Extractor.
type Runner struct {
	extractor   *Extractor
	logger      *slog.Logger
	concurrency int
}

// NewRunner creates a Runner with defaults applied.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Runner{
		extractor:   cfg.Extractor,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run processes rows and returns one record per non-empty row, in input
// order, plus the run summary. Per-row failures become error records; Run
// itself only fails when the context is cancelled.
func (r *Runner) Run(ctx context.Context, rows []record.Record) ([]record.Record, output.Summary, error) {
	var texts []string
	for _, row := range rows {
		if text := RowText(row); text != "" {
			texts = append(texts, text)
		}
	}
	r.logger.Info("run started", "rows", len(rows), "inputs", len(texts), "concurrency", r.concurrency)

	results := make([]record.Record, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.logger.Debug("extract", "row", i+1, "total", len(texts), "input", snippet(text))
			results[i] = r.extractor.Process(gctx, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, output.Summary{}, err
	}

	summary := output.Summarize(results)
	r.logger.Info("run finished", "records", len(results), "summary", summary.String())
	return results, summary, nil
}

// RowText derives the model input for a row: a "text" column wins verbatim,
// otherwise the row's non-internal columns are serialized as JSON.
func RowText(row record.Record) string {
	if v, ok := row["text"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	fields := make(map[string]any, len(row))
	for k, v := range row {
		if record.IsMetadata(k) {
			continue
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		return ""
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}
