// Package retrieval finds supporting passages for a transcript fragment
// within one persona's document scope.
//
// The engine is stateless: every search embeds the query, ranks the chunks
// the scope filter lets through, and returns the survivors. Multiple
// personas search the same chunk store concurrently during a dispatch
// round; the store is read-only for that whole round, so no coordination
// is needed here.
package retrieval

import (
	"context"
	"fmt"

	"counsel/internal/embedding"
	"counsel/internal/logging"
	"counsel/internal/types"
)

// Passage is one retrieved chunk with its ranking score.
type Passage struct {
	DocumentID   string
	DocumentName string
	Text         string
	Similarity   float64
}

// Result is the outcome of one search. Matched is false when nothing in
// scope cleared the similarity threshold; that is a normal result, not an
// error.
type Result struct {
	Passages []Passage
	Matched  bool
}

// Error marks a retrieval failure, as opposed to a no-match result. The
// only failure source is the embedding step or the chunk source itself;
// callers degrade to generating without supporting context.
type Error struct {
	Stage string // "embed" or "load"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options bound the ranking step.
type Options struct {
	// SimilarityThreshold discards chunks scoring below it.
	SimilarityThreshold float64

	// TopK caps how many surviving chunks are returned.
	TopK int
}

// DefaultOptions returns the tuned production values.
func DefaultOptions() Options {
	return Options{SimilarityThreshold: 0.55, TopK: 3}
}

// Engine ranks scoped chunks against an embedded query.
type Engine struct {
	embedder embedding.Engine
	source   types.ChunkSource
	opts     Options
}

// NewEngine builds a retrieval engine over the given embedder and chunk
// source.
func NewEngine(embedder embedding.Engine, source types.ChunkSource, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	return &Engine{embedder: embedder, source: source, opts: opts}
}

// Search embeds the query and returns the top chunks within the allowed
// document scope. The scope filter is applied by the chunk source before
// any scoring, so the top-K selection can never surface an out-of-scope
// passage regardless of how well it would have scored.
func (e *Engine) Search(ctx context.Context, query string, allowedDocumentIDs []string) (Result, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Search")
	defer timer.Stop()

	if len(allowedDocumentIDs) == 0 {
		logging.RetrievalDebug("empty document scope, nothing to search")
		return Result{}, nil
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		return Result{}, &Error{Stage: "embed", Err: err}
	}

	chunks, err := e.source.ChunksByDocuments(ctx, allowedDocumentIDs)
	if err != nil {
		return Result{}, &Error{Stage: "load", Err: err}
	}
	if len(chunks) == 0 {
		return Result{}, nil
	}

	corpus := make([][]float32, len(chunks))
	for i, c := range chunks {
		corpus[i] = c.Embedding
	}

	ranked, err := embedding.FindTopK(queryVec, corpus, e.opts.TopK)
	if err != nil {
		return Result{}, &Error{Stage: "embed", Err: err}
	}

	var passages []Passage
	for _, r := range ranked {
		if r.Similarity < e.opts.SimilarityThreshold {
			continue
		}
		c := chunks[r.Index]
		passages = append(passages, Passage{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Text:         c.Text,
			Similarity:   r.Similarity,
		})
	}

	logging.Retrieval("query %q: %d chunks in scope, %d above threshold %.2f",
		truncate(query, 60), len(chunks), len(passages), e.opts.SimilarityThreshold)

	return Result{Passages: passages, Matched: len(passages) > 0}, nil
}

// embedQuery prefers the query-side embedding when the engine distinguishes
// queries from documents.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if qe, ok := e.embedder.(embedding.QueryEmbedder); ok {
		return qe.EmbedQuery(ctx, query)
	}
	return e.embedder.Embed(ctx, query)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
