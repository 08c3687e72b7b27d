package oracle

import (
	"fmt"
	"strings"
)

// Supported lists the provider names the factory accepts.
var Supported = []string{"ollama", "openrouter", "anthropic", "static"}

// Default models per provider.
var defaultModels = map[string]string{
	"ollama":     "llama3.2",
	"openrouter": "nvidia/nemotron-nano-9b-v2:free",
	"anthropic":  "claude-3-5-haiku-latest",
}

// New builds an Oracle for the named provider. API keys come from the
// config (loaded from the environment by the caller); cloud providers fail
// fast when the key is missing.
func New(cfg Config) (Oracle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = defaultModels[provider]
	}

	switch provider {
	case "ollama":
		return newOllama(cfg), nil
	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter: OPENROUTER_API_KEY not set")
		}
		return newOpenRouter(cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY not set")
		}
		return newAnthropic(cfg), nil
	case "static":
		return NewStatic(""), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q (supported: %s)",
			cfg.Provider, strings.Join(Supported, ", "))
	}
}
