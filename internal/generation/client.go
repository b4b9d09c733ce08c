// Package generation sends suggestion prompts to an LLM provider and
// returns raw completion text.
//
// Three providers are supported over plain HTTP: Google Gemini, Anthropic,
// and OpenAI. Every client maps failures onto the same typed Error kinds,
// so callers reason about rate limits and credential problems without
// knowing which provider is behind the interface. Clients make exactly one
// attempt per call; pacing and recovery policy belong to the dispatch
// layer.
package generation

import (
	"fmt"
	"os"
	"time"

	"counsel/internal/types"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds provider selection and request parameters.
type Config struct {
	Provider    string // "gemini", "anthropic", or "openai"
	APIKey      string
	BaseURL     string // empty selects the provider's public endpoint
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns Gemini-backed defaults. Suggestion prompts are
// short and the answers shorter, so the token ceiling stays low.
func DefaultConfig(apiKey string) Config {
	return Config{
		Provider:    "gemini",
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		Timeout:     30 * time.Second,
		MaxTokens:   500,
		Temperature: 0.3,
	}
}

// NewClient constructs the configured provider client.
func NewClient(cfg Config) (types.GenerationClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation: provider %q requires an API key", cfg.Provider)
	}

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("generation: unknown provider %q (use 'gemini', 'anthropic', or 'openai')", cfg.Provider)
	}
}

// DetectProvider resolves a provider and key from the environment.
// Priority: GEMINI_API_KEY > ANTHROPIC_API_KEY > OPENAI_API_KEY.
func DetectProvider() (Config, error) {
	candidates := []struct {
		envVar   string
		provider string
	}{
		{"GEMINI_API_KEY", "gemini"},
		{"ANTHROPIC_API_KEY", "anthropic"},
		{"OPENAI_API_KEY", "openai"},
	}

	for _, c := range candidates {
		if key := os.Getenv(c.envVar); key != "" {
			cfg := DefaultConfig(key)
			cfg.Provider = c.provider
			cfg.Model = defaultModelFor(c.provider)
			return cfg, nil
		}
	}

	return Config{}, fmt.Errorf("generation: no API key found; set one of GEMINI_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY")
}

func defaultModelFor(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5-20250514"
	case "openai":
		return "gpt-4o-mini"
	default:
		return "gemini-2.5-flash"
	}
}

// userContent joins the rendered conversation window and the fragment into
// one user message. The join is mechanical so every provider sees identical
// prompt text for identical requests.
func userContent(req types.GenerationRequest) string {
	if req.History == "" {
		return req.Fragment
	}
	return req.History + "\n\n" + req.Fragment
}
