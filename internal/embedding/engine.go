// Package embedding turns text into vectors for knowledge retrieval.
//
// Two providers are supported: a local Ollama server (default, no API key
// needed) and the Google GenAI API. Both produce 768-dimensional vectors,
// so a knowledge base indexed with one engine stays comparable as long as
// the same engine answers queries against it.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"counsel/internal/logging"
)

// =============================================================================
// ENGINE INTERFACE
// =============================================================================

// Engine embeds text into vectors for similarity search.
type Engine interface {
	// Embed converts a single text into its vector representation.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call. Engines without a
	// native batch API fall back to sequential requests.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the width of vectors this engine produces.
	Dimensions() int

	// Name identifies the engine for logging and diagnostics.
	Name() string
}

// QueryEmbedder is an optional interface for engines that distinguish
// search queries from stored documents. Asymmetric embedding models score
// noticeably better when the query side is marked as a query.
type QueryEmbedder interface {
	// EmbedQuery embeds text that will be matched against stored documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker is an optional interface for engines backed by a local
// service that may not be running.
type HealthChecker interface {
	// HealthCheck verifies the embedding service is reachable.
	HealthCheck(ctx context.Context) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds provider selection and per-provider settings.
type Config struct {
	Provider       string // "ollama" or "genai"
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string

	// TaskType tunes GenAI document embeddings. Ingested chunks use
	// RETRIEVAL_DOCUMENT; queries are marked RETRIEVAL_QUERY per call
	// through the QueryEmbedder interface.
	TaskType string
}

// DefaultConfig returns settings for a local Ollama instance.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "nomic-embed-text",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "RETRIEVAL_DOCUMENT",
	}
}

// NewEngine constructs the configured embedding engine.
func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "ollama", "":
		engine := NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
		logging.Embedding("engine ready: %s", engine.Name())
		return engine, nil

	case "genai", "gemini":
		if cfg.GenAIAPIKey == "" {
			return nil, fmt.Errorf("embedding: genai provider requires an API key")
		}
		engine, err := NewGenAIEngine(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
		if err != nil {
			return nil, err
		}
		logging.Embedding("engine ready: %s (task=%s)", engine.Name(), cfg.TaskType)
		return engine, nil

	default:
		return nil, fmt.Errorf("embedding: unknown provider %q (use 'ollama' or 'genai')", cfg.Provider)
	}
}

// =============================================================================
// SIMILARITY
// =============================================================================

// CosineSimilarity computes the cosine of the angle between two vectors.
// The result is in [-1, 1]. Zero-magnitude inputs yield 0 rather than an
// error so padding vectors never match anything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding: dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// SimilarityResult pairs a corpus index with its similarity to the query.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK ranks corpus vectors by similarity to the query and returns the
// best k, highest first. Corpus entries with mismatched dimensions are
// skipped rather than failing the whole search. Ties keep corpus order.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("embedding: empty query vector")
	}
	if k <= 0 || len(corpus) == 0 {
		return nil, nil
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	if skipped > 0 {
		logging.Get(logging.CategoryEmbedding).Warn("FindTopK: skipped %d corpus vectors with mismatched dimensions", skipped)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
