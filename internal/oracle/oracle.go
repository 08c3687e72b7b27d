// Package oracle abstracts the external reasoning capability. Callers hold
// only the Oracle interface; concrete providers are selected by name
// through the factory. Calls have unbounded upstream latency and can fail
// or return garbage, so every caller must bound them with a context and
// keep a fallback path.
package oracle

import (
	"context"
	"time"
)

// Oracle is the reasoning capability: a bounded prompt in, free text out.
type Oracle interface {
	// Name identifies the provider for logs.
	Name() string
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateWithSystem produces a completion with a separate system prompt.
	GenerateWithSystem(ctx context.Context, system, prompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider  string        `yaml:"provider"`   // ollama, openrouter, anthropic, static
	Model     string        `yaml:"model"`      // provider default when empty
	BaseURL   string        `yaml:"base_url"`   // provider default when empty
	APIKey    string        `yaml:"-"`          // from environment, never from file
	MaxTokens int           `yaml:"max_tokens"` // default 512
	Timeout   time.Duration `yaml:"-"`          // HTTP client timeout, default 2m
}

// DefaultMaxTokens keeps agent replies short; decisions are a two-line
// ACTION/REASONING format.
const DefaultMaxTokens = 512

// DefaultTimeout bounds a single HTTP request at the transport level.
// Per-call deadlines are still the caller's job via ctx.
const DefaultTimeout = 2 * time.Minute

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
