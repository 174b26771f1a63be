// Package runtime executes compiled plans: model calls with retries,
// response validation and coercion, the optional draft pass, and
// deterministic flag annotation.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/gleanlang/glean/internal/compile"
	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/record"
	"github.com/gleanlang/glean/internal/trace"
)

// Defaults for extraction options.
const (
	DefaultRetries   = 2
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTokens = 256
)

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	Client providers.LLMClient
	Plan   *compile.Plan
	Logger *slog.Logger

	Retries   int           // extra attempts after the first (default 2)
	Timeout   time.Duration // per chat call (default 30s)
	MaxTokens int           // response cap (default 256)

	Trace *trace.Recorder // optional call trace
	RunID string
}

// Extractor turns input text into validated records using one compiled plan.
// The plan is read-only after compilation, so one Extractor serves
// concurrent callers.
type Extractor struct {
	client providers.LLMClient
	plan   *compile.Plan
	logger *slog.Logger

	retries   int
	timeout   time.Duration
	maxTokens int

	trace *trace.Recorder
	runID string
}

// NewExtractor creates an Extractor with defaults applied.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Extractor{
		client:    cfg.Client,
		plan:      cfg.Plan,
		logger:    cfg.Logger,
		retries:   cfg.Retries,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		trace:     cfg.Trace,
		runID:     cfg.RunID,
	}
}

// Process runs one input text end to end: extraction with retries, the
// optional draft pass, flag evaluation and metadata annotation. Failures
// never escalate; an exhausted input yields the {_source, _error} record.
func (e *Extractor) Process(ctx context.Context, text string) record.Record {
	rec, err := e.ExtractOne(ctx, text)
	if err != nil {
		e.logger.Error("extraction failed", "input", snippet(text), "error", err)
		return record.Failed(text)
	}

	e.draftPass(ctx, rec)

	reasons := e.plan.Rules.Evaluate(rec)
	rec[record.KeyFlagged] = len(reasons) > 0
	rec[record.KeyFlagReasons] = reasons
	rec[record.KeySource] = text

	if len(reasons) > 0 {
		e.logger.Info("flagged", "reasons", reasons, "input", snippet(text))
	} else {
		e.logger.Debug("clean", "input", snippet(text))
	}
	return rec
}

// ExtractOne runs the retry protocol for one input text and returns the
// validated record. Transport failures back off 2^attempt seconds between
// attempts; malformed or invalid responses retry immediately.
func (e *Extractor) ExtractOne(ctx context.Context, text string) (record.Record, error) {
	attempt := 0
	rec, err := retry.DoWithData(func() (record.Record, error) {
		attempt++
		return e.attempt(ctx, text, attempt)
	}, e.retryOpts(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return rec, nil
}

// attempt is one chat call plus response validation.
func (e *Extractor) attempt(ctx context.Context, text string, n int) (record.Record, error) {
	content, err := e.chatOnce(ctx, e.plan.System, text, e.promptKind(), n)
	if err != nil {
		return nil, err
	}

	rec, err := providers.DecodeObject(content)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := e.validateRecord(rec); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	return rec, nil
}

// chatOnce performs a single chat call and classifies failures for the
// retry delay policy.
func (e *Extractor) chatOnce(ctx context.Context, system, user, kind string, attempt int) (string, error) {
	s := e.plan.Settings
	req := &providers.ChatRequest{
		System:      system,
		User:        user,
		Model:       s.Model,
		Temperature: s.Temperature,
		TopP:        s.TopP,
		Seed:        s.Seed,
		MaxTokens:   e.maxTokens,
		Timeout:     e.timeout,
	}

	res, err := e.client.Chat(ctx, req)
	e.trace.Record(res, trace.RecordOptions{
		RunID:      e.runID,
		Verb:       e.plan.Verb,
		PromptKind: kind,
		Attempts:   attempt,
	})

	if err != nil {
		errType := providers.ErrorTypeConnection
		if res != nil && res.ErrorType != "" {
			errType = res.ErrorType
		}
		return "", &TransportError{Kind: errType, Message: err.Error()}
	}
	if !res.Success {
		return "", &TransportError{Kind: res.ErrorType, Message: res.ErrorMessage}
	}
	return res.Content, nil
}

func (e *Extractor) promptKind() string {
	if e.plan.Verb == compile.VerbClassify {
		return "classify"
	}
	return "extract"
}

func (e *Extractor) retryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(e.retries) + 1),
		retry.DelayType(transportDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Debug("attempt failed", "attempt", n+1, "error", err)
		}),
	}
}

// transportDelay backs off only after transport failures; validation
// failures burn the attempt and retry immediately.
func transportDelay(n uint, err error, _ *retry.Config) time.Duration {
	var te *TransportError
	if errors.As(err, &te) {
		return backoff(n)
	}
	return 0
}

// snippet trims input text for log lines.
func snippet(text string) string {
	if len(text) > 55 {
		return text[:55] + "..."
	}
	return text
}
