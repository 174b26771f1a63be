package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const GeminiName = "gemini"

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string // geminiDefaultModel if empty
}

// GeminiClient implements LLMClient on the Gemini API. The system prompt is
// folded into the user content; responses are requested as JSON directly.
type GeminiClient struct {
	model  string
	client *genai.Client
}

// NewGeminiClient creates a Gemini chat client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{model: cfg.Model, client: client}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Chat sends one generation request.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		cfg.TopP = &p
	}
	if req.Seed != nil {
		s := int32(*req.Seed)
		cfg.Seed = &s
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  GeminiName,
		Model:     model,
	}

	contents := genai.Text(req.System + "\n\n" + req.User)
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		result.fail(classifyGeminiError(err), err.Error())
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("generate content: %w", err)
	}

	result.Success = true
	result.Content = resp.Text()
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func classifyGeminiError(err error) string {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		switch {
		case apierr.Code == 429:
			return ErrorTypeRateLimit
		case apierr.Code == 401 || apierr.Code == 403:
			return ErrorTypeAuth
		case apierr.Code >= 500:
			return ErrorTypeServer
		case apierr.Code >= 400:
			return ErrorTypeBadRequest
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeConnection
}

var _ LLMClient = (*GeminiClient)(nil)
