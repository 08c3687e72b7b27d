package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Ollama talks to a local Ollama server via /api/generate. No API key, no
// rate limits; the cheapest way to run agents offline.
type Ollama struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

func newOllama(cfg Config) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL:   baseURL,
		model:     cfg.Model,
		maxTokens: cfg.maxTokens(),
		client:    &http.Client{Timeout: cfg.timeout()},
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Generate produces a completion for the prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	return o.GenerateWithSystem(ctx, "", prompt)
}

// GenerateWithSystem produces a completion with a separate system prompt.
func (o *Ollama) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: map[string]any{"num_predict": o.maxTokens},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Response == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return result.Response, nil
}
