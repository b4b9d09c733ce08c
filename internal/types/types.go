// Package types provides shared type definitions used across counsel packages.
// This package exists to break import cycles between session, dispatch, and
// suggest. Types in this package should be foundational data structures with
// no complex dependencies.
package types

import (
	"strings"
	"time"
)

// =============================================================================
// PERSONA
// =============================================================================

// Persona is one independent expert configuration: its own instructions and a
// private document scope. A persona snapshot is immutable for the duration of
// a session; edits apply to the next session only.
type Persona struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	Color              string   `yaml:"color" json:"color"` // hex or terminal color for attribution badges
	Instructions       string   `yaml:"instructions" json:"instructions"`
	AllowedDocumentIDs []string `yaml:"documents" json:"documents"` // knowledge-store scope, opaque document IDs
}

// Allows reports whether the persona's document scope includes docID.
func (p Persona) Allows(docID string) bool {
	for _, id := range p.AllowedDocumentIDs {
		if id == docID {
			return true
		}
	}
	return false
}

// MaxActivePersonas bounds the simultaneously active persona set. The lower
// bound is 1: a session may never shrink its active set to zero.
const MaxActivePersonas = 4

// =============================================================================
// KNOWLEDGE
// =============================================================================

// KnowledgeChunk is one embedded passage of an ingested document. Chunks are
// immutable once stored; the store is read-only during a dispatch round.
type KnowledgeChunk struct {
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	Text         string
	Embedding    []float32
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// TranscriptFragment is one unit of transcribed speech delivered by the
// external speech-to-text subsystem. Only final fragments enter the
// suggestion pipeline; interim fragments are display-only.
type TranscriptFragment struct {
	Text          string    `json:"text"`
	SpeakerIsSelf bool      `json:"speaker_is_self"`
	IsFinal       bool      `json:"is_final"`
	Timestamp     time.Time `json:"timestamp"`
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

// SuggestionKind labels what a suggestion is for.
type SuggestionKind string

const (
	KindAnswer    SuggestionKind = "answer"    // direct reply to a question
	KindObjection SuggestionKind = "objection" // handler for pushback or concern
	KindInfo      SuggestionKind = "info"      // relevant background for a mentioned topic
)

// SuggestionOutcome is the result of one persona's generation attempt for one
// fragment. Empty Text with nil Err means the persona chose silence; empty
// Text with non-nil Err means the attempt failed. Both are invisible to the
// end user and only distinguishable for logging and metrics.
type SuggestionOutcome struct {
	PersonaID  string
	Text       string
	Kind       SuggestionKind
	Confidence float64
	Err        error
}

// Contributed reports whether the outcome carries displayable text.
func (o SuggestionOutcome) Contributed() bool {
	return o.Err == nil && strings.TrimSpace(o.Text) != ""
}

// Silent reports whether the persona deliberately declined to contribute.
func (o SuggestionOutcome) Silent() bool {
	return o.Err == nil && strings.TrimSpace(o.Text) == ""
}

// Contributor identifies one persona that produced a merged suggestion.
type Contributor struct {
	PersonaID string `json:"persona_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// DedupedSuggestion is the externally emitted unit: one suggestion text with
// every persona that produced it, byte-identical after trimming. Contributors
// always has at least one entry.
type DedupedSuggestion struct {
	Text         string         `json:"text"`
	Kind         SuggestionKind `json:"kind"`
	Contributors []Contributor  `json:"contributors"`
}

// =============================================================================
// CONVERSATION HISTORY
// =============================================================================

// HistoryEntryKind distinguishes transcript turns from emitted suggestions in
// the conversation log.
type HistoryEntryKind string

const (
	HistoryFragment   HistoryEntryKind = "fragment"
	HistorySuggestion HistoryEntryKind = "suggestion"
)

// HistoryEntry is one record in the append-only conversation history. The
// history holds both transcript fragments and the suggestions emitted for
// them, in arrival order.
type HistoryEntry struct {
	Kind          HistoryEntryKind
	Text          string
	SpeakerIsSelf bool     // fragments only
	Personas      []string // suggestion contributor names, suggestions only
	Timestamp     time.Time
}

// =============================================================================
// SESSION STATS
// =============================================================================

// SessionStats is a point-in-time snapshot of session activity counters,
// exposed at session end for the external summarization subsystem.
type SessionStats struct {
	FragmentsReceived   int            // every fragment seen, final or not
	FragmentsDispatched int            // final fragments handed to the coordinator
	SuggestionsEmitted  int            // merged suggestions forwarded outward
	RateLimitNotices    int            // user-visible rate-limit notices shown
	ByPersona           map[string]int // persona ID → contribution count
	SummaryLeader       string         // persona ID with the most contributions
}
