// Package providers implements the LLM clients the extraction runtime calls
// through one small interface. The runtime owns retries and validation;
// clients only translate one request into one provider call and classify
// what went wrong.
package providers

import (
	"context"
	"time"
)

// Default endpoint: the GitHub Models inference API, OpenAI-compatible and
// reachable with a plain GitHub PAT.
const (
	DefaultBaseURL = "https://models.github.ai/inference"
	DefaultModel   = "openai/gpt-4.1-mini"
)

// Error kinds reported in ChatResult.ErrorType.
const (
	ErrorTypeTimeout    = "timeout"
	ErrorTypeRateLimit  = "rate_limit"
	ErrorTypeServer     = "server_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeBadRequest = "bad_request"
	ErrorTypeConnection = "connection"
)

// LLMClient is the interface for chat completion requests.
type LLMClient interface {
	// Chat sends one chat completion request. A non-nil error always comes
	// with a ChatResult describing the failure.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openai").
	Name() string
}

// ChatRequest is one model call. Nil pointer fields are omitted from the
// provider request so the model's own defaults apply.
type ChatRequest struct {
	System string
	User   string

	// Model selection (client default if empty)
	Model string

	// Generation parameters
	Temperature *float64
	TopP        *float64
	Seed        *int
	MaxTokens   int
	Timeout     time.Duration

	// Request tracking
	RequestID string
}

// ChatResult is the complete response from one model call.
type ChatResult struct {
	Content string

	// Token counts
	PromptTokens     int
	CompletionTokens int

	// Timing and provenance
	ExecutionTime time.Duration
	Provider      string
	Model         string
	RequestID     string

	// Success/error
	Success      bool
	StatusCode   int
	ErrorType    string
	ErrorMessage string
}

// fail fills the error fields and returns the result for chaining.
func (r *ChatResult) fail(errType, msg string) *ChatResult {
	r.Success = false
	r.ErrorType = errType
	r.ErrorMessage = msg
	return r
}
