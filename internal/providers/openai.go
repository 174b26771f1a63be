package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for the OpenAI-compatible chat client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string        // DefaultBaseURL (GitHub Models) if empty
	Model      string        // default model for requests that omit one
	Timeout    time.Duration // HTTP timeout, 30s if zero
	HTTPClient *http.Client  // optional (tests)
}

// OpenAIClient implements LLMClient against any OpenAI-compatible chat
// completions endpoint. SDK-level retries are disabled: the extraction
// runtime owns the retry protocol so attempts stay observable.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a chat client from cfg.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Chat sends one chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(int64(*req.Seed))
	}

	var opts []option.RequestOption
	if req.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(req.Timeout))
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Model:     model,
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		errType, status := classifyOpenAIError(err)
		result.fail(errType, err.Error())
		result.StatusCode = status
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		result.fail(ErrorTypeServer, "no choices in response")
		result.ExecutionTime = time.Since(start)
		return result, errors.New("no choices in response")
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func classifyOpenAIError(err error) (string, int) {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return ErrorTypeRateLimit, apierr.StatusCode
		case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
			return ErrorTypeAuth, apierr.StatusCode
		case apierr.StatusCode >= 500:
			return ErrorTypeServer, apierr.StatusCode
		case apierr.StatusCode >= 400:
			return ErrorTypeBadRequest, apierr.StatusCode
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout, 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout, 0
	}
	return ErrorTypeConnection, 0
}

var _ LLMClient = (*OpenAIClient)(nil)
