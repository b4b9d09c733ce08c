package types

import (
	"context"
)

// GenerationRequest carries everything one generation call needs. The
// instruction block already has any retrieved context prepended by the
// caller; the client never composes persona material itself.
type GenerationRequest struct {
	Instructions string // composed instruction block (context + persona instructions)
	History      string // rendered recent conversation, may be empty
	Fragment     string // the transcript fragment that triggered this call
}

// GenerationClient defines the provider-agnostic text-generation boundary.
// Implementations hold provider-level concerns only (credentials, base URL,
// model); persona-specific data arrives exclusively through the request.
// Clients never retry internally — retry policy belongs to the caller.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Name() string
}

// ChunkSource is the read-only view of the knowledge store consumed by the
// retrieval engine. Implementations must be safe for concurrent readers; the
// store is never written during a dispatch round.
type ChunkSource interface {
	// ChunksByDocuments returns every chunk whose document ID is in
	// documentIDs. The scope filter is applied by the source, before any
	// scoring, so cross-scope chunks never reach the ranking step.
	ChunksByDocuments(ctx context.Context, documentIDs []string) ([]KnowledgeChunk, error)
}

// SuggestionGenerator produces one persona's outcome for one fragment. It
// never returns an error: every failure path is folded into the outcome so
// that one persona's failure stays invisible to dispatch control flow.
type SuggestionGenerator interface {
	Generate(ctx context.Context, fragment TranscriptFragment, persona Persona, history []HistoryEntry) SuggestionOutcome
}
