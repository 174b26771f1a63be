// Package trace records model calls as JSON lines for traceability.
// Recording is fire-and-forget: a full buffer drops the call rather than
// blocking the pipeline.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gleanlang/glean/internal/providers"
)

// Call is one recorded model call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Run context
	RunID      string `json:"run_id,omitempty"`
	Verb       string `json:"verb,omitempty"`
	PromptKind string `json:"prompt_kind"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Response
	Response string `json:"response"`

	// Status
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// RecordOptions carries run context for a recorded call.
type RecordOptions struct {
	RunID      string
	Verb       string
	PromptKind string // extract, classify or draft
	Attempts   int    // 1-based attempt ordinal within the retry protocol
}

// FromChatResult builds a Call from one provider result.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		RunID:        opts.RunID,
		Verb:         opts.Verb,
		PromptKind:   opts.PromptKind,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		Response:     result.Content,
		Success:      result.Success,
		Attempts:     opts.Attempts,
	}

	if !result.Success {
		call.Error = result.ErrorMessage
	}

	return call
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Path      string         // JSONL file, created or truncated
	Writer    io.WriteCloser // used instead of Path when set
	QueueSize int            // buffered calls (default 256)
	Logger    *slog.Logger
}

// Recorder appends calls to a JSONL stream from a single writer goroutine.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	logger *slog.Logger
	w      io.WriteCloser

	queue    chan *Call
	wg       sync.WaitGroup
	stopOnce sync.Once
	closeErr error
	dropped  atomic.Int64
}

// NewRecorder opens the trace destination and starts the writer goroutine.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := cfg.Writer
	if w == nil {
		if cfg.Path == "" {
			return nil, errors.New("trace: no path or writer configured")
		}
		f, err := os.Create(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		w = f
	}

	r := &Recorder{
		logger: cfg.Logger,
		w:      w,
		queue:  make(chan *Call, cfg.QueueSize),
	}
	r.wg.Add(1)
	go r.writeLoop()
	return r, nil
}

// Record captures a provider result asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil {
		return
	}
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall queues an already-built call without blocking. Calls are
// dropped when the buffer is full or the recorder is closed.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}

	// recover handles send on closed channel
	defer func() {
		if recover() != nil {
			r.dropped.Add(1)
		}
	}()

	select {
	case r.queue <- call:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many calls were discarded.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close flushes queued calls and closes the destination. Safe to call more
// than once.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.stopOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
		r.closeErr = r.w.Close()
	})
	return r.closeErr
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()

	enc := json.NewEncoder(r.w)
	for call := range r.queue {
		if err := enc.Encode(call); err != nil {
			r.logger.Warn("trace write failed", "call_id", call.ID, "error", err)
		}
	}

	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn("trace calls dropped", "count", n)
	}
}
