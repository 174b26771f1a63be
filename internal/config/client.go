package config

import (
	"context"
	"fmt"

	"github.com/gleanlang/glean/internal/providers"
)

// NewLLMClient builds the chat client this config describes, with the token
// resolved from the environment.
func (c *Config) NewLLMClient(ctx context.Context) (providers.LLMClient, error) {
	switch c.Provider {
	case providers.GeminiName:
		return providers.NewGeminiClient(ctx, providers.GeminiConfig{
			APIKey: c.ResolveToken(),
			Model:  c.Model,
		})
	case "", providers.OpenAIName:
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  c.ResolveToken(),
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: c.Timeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
}
