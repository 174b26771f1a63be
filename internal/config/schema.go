package config

import (
	"time"

	"github.com/gleanlang/glean/internal/providers"
)

// Config holds glean configuration.
// Stored at: ~/.glean/config.yaml
type Config struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`               // "openai" or "gemini"
	Model          string `mapstructure:"model" yaml:"model"`                     // default model when a program sets none
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`               // OpenAI-compatible endpoint
	Token          string `mapstructure:"token" yaml:"token"`                     // API token (supports ${ENV_VAR} syntax)
	Retries        int    `mapstructure:"retries" yaml:"retries"`                 // retries after the first attempt
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per-request timeout
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	Concurrency    int    `mapstructure:"concurrency" yaml:"concurrency"` // rows extracted in parallel
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`     // debug|info|warn|error
	LogFormat      string `mapstructure:"log_format" yaml:"log_format"`   // text|json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       "openai",
		Model:          providers.DefaultModel,
		BaseURL:        providers.DefaultBaseURL,
		Token:          "${GITHUB_TOKEN}",
		Retries:        2,
		TimeoutSeconds: 30,
		MaxTokens:      256,
		Concurrency:    1,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveToken returns the API token with ${ENV_VAR} references expanded.
func (c *Config) ResolveToken() string {
	return ResolveEnvVars(c.Token)
}
