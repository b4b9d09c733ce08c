// Package config loads counsel configuration from YAML with environment
// overrides. The personas section is the external configuration store for
// the session layer: a session snapshots it at start, so edits made while a
// session is running apply to the next session only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"counsel/internal/types"
)

// Config holds all counsel configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM generation backend
	LLM LLMConfig `yaml:"llm"`

	// Embedding backend for retrieval and ingestion
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Retrieval thresholds and limits
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Dispatch timing
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Session behavior
	Session SessionConfig `yaml:"session"`

	// Knowledge store
	Store StoreConfig `yaml:"store"`

	// Document ingestion
	Ingest IngestConfig `yaml:"ingest"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Active persona roster for the next session (1-4 entries)
	Personas []types.Persona `yaml:"personas"`
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini, anthropic, openai
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
}

// RetrievalConfig configures persona-scoped search.
type RetrievalConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // chunks below are discarded
	TopK                int     `yaml:"top_k"`                // surviving chunks kept
	MaxContextChars     int     `yaml:"max_context_chars"`    // formatted context cap
}

// DispatchConfig configures the parallel dispatch coordinator.
type DispatchConfig struct {
	Cooldown       string `yaml:"cooldown"`        // per-persona minimum gap between successes
	Stagger        string `yaml:"stagger"`         // launch delay between successive personas
	NoticeInterval string `yaml:"notice_interval"` // user-visible rate-limit notice throttle
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	MaxHistoryTurns int    `yaml:"max_history_turns"` // history entries included in prompts
	SpeakerFilter   bool   `yaml:"speaker_filter"`    // skip dispatch for own speech
	Trigger         string `yaml:"trigger"`           // all or questions_only
}

// StoreConfig configures the chunk store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig configures document chunking. Sizes are in tokens
// (approximated at 4 characters per token).
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// LoggingConfig configures the category logging facade.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	Dir        string `yaml:"dir"`
	Categories string `yaml:"categories"` // comma-separated or "all"
}

// Trigger modes for SessionConfig.Trigger.
const (
	TriggerAll           = "all"
	TriggerQuestionsOnly = "questions_only"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "counsel",
		Version: "0.3.0",

		LLM: LLMConfig{
			// Provider left empty: resolved from the environment in
			// gemini > anthropic > openai order unless the file sets it.
			Model:       "gemini-2.5-flash",
			Timeout:     "30s",
			MaxTokens:   500,
			Temperature: 0.3,
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "nomic-embed-text",
			Model:          "gemini-embedding-001",
		},

		Retrieval: RetrievalConfig{
			SimilarityThreshold: 0.55,
			TopK:                3,
			MaxContextChars:     4000,
		},

		Dispatch: DispatchConfig{
			Cooldown:       "15s",
			Stagger:        "100ms",
			NoticeInterval: "30s",
		},

		Session: SessionConfig{
			MaxHistoryTurns: 10,
			SpeakerFilter:   false,
			Trigger:         TriggerAll,
		},

		Store: StoreConfig{
			Path: "counsel.db",
		},

		Ingest: IngestConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			MinChunkSize: 100,
		},

		Logging: LoggingConfig{
			Level:      "info",
			Dir:        ".counsel",
			Categories: "all",
		},
	}
}

// Load loads configuration from a YAML file, applying defaults for missing
// fields and environment overrides on top. A missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Generation
// keys are checked in the same priority order the provider factory uses
// (gemini > anthropic > openai); the first key found wins, and an
// explicitly configured provider is never flipped by a stray key.
func (c *Config) applyEnvOverrides() {
	if c.LLM.APIKey == "" {
		for _, cand := range []struct {
			env      string
			provider string
		}{
			{"GEMINI_API_KEY", "gemini"},
			{"ANTHROPIC_API_KEY", "anthropic"},
			{"OPENAI_API_KEY", "openai"},
		} {
			key := os.Getenv(cand.env)
			if key == "" {
				continue
			}
			if c.LLM.Provider != "" && c.LLM.Provider != cand.provider {
				continue
			}
			c.LLM.APIKey = key
			if c.LLM.Provider == "" {
				c.LLM.Provider = cand.provider
			}
			break
		}
	}

	// Embedding shares the Gemini key when none is set explicitly
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}

	if path := os.Getenv("COUNSEL_DB"); path != "" {
		c.Store.Path = path
	}
}

// Validate checks configuration invariants. Persona-set violations are
// reported as *types.ConfigurationError so callers can reject the request
// without tearing anything down.
func (c *Config) Validate() error {
	if len(c.Personas) < 1 || len(c.Personas) > types.MaxActivePersonas {
		return types.NewConfigurationError("personas",
			"active set must have 1-%d personas, got %d", types.MaxActivePersonas, len(c.Personas))
	}

	seen := make(map[string]bool, len(c.Personas))
	for _, p := range c.Personas {
		if p.ID == "" {
			return types.NewConfigurationError("personas", "persona %q has no id", p.Name)
		}
		if seen[p.ID] {
			return types.NewConfigurationError("personas", "duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
	}

	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return types.NewConfigurationError("retrieval.similarity_threshold",
			"must be in [0,1], got %v", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.TopK < 1 {
		return types.NewConfigurationError("retrieval.top_k", "must be >= 1, got %d", c.Retrieval.TopK)
	}

	if c.GetCooldown() < 0 || c.GetStagger() < 0 {
		return types.NewConfigurationError("dispatch", "durations must be non-negative")
	}

	switch c.Session.Trigger {
	case "", TriggerAll, TriggerQuestionsOnly:
	default:
		return types.NewConfigurationError("session.trigger",
			"must be %q or %q, got %q", TriggerAll, TriggerQuestionsOnly, c.Session.Trigger)
	}

	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCooldown returns the per-persona cooldown as a duration.
func (c *Config) GetCooldown() time.Duration {
	d, err := time.ParseDuration(c.Dispatch.Cooldown)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetStagger returns the launch stagger as a duration.
func (c *Config) GetStagger() time.Duration {
	d, err := time.ParseDuration(c.Dispatch.Stagger)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetNoticeInterval returns the rate-limit notice throttle as a duration.
func (c *Config) GetNoticeInterval() time.Duration {
	d, err := time.ParseDuration(c.Dispatch.NoticeInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
