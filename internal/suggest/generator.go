// Package suggest produces one persona's suggestion for one transcript
// fragment: retrieve scoped context, compose the persona's instruction
// block, call the generation backend, and interpret the reply.
//
// Generate never returns an error. Every failure path folds into the
// returned outcome so that dispatch control flow cannot observe one
// persona's failure — a failed persona looks exactly like a silent one
// from the outside, and the difference survives only in logs and metrics.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"counsel/internal/logging"
	"counsel/internal/retrieval"
	"counsel/internal/types"
)

// SilenceMarker is the reserved sentinel a persona emits when it has
// nothing useful to add. Compared after trimming, since backends like to
// append newlines.
const SilenceMarker = "---"

// Searcher is the slice of the retrieval engine the generator needs.
type Searcher interface {
	Search(ctx context.Context, query string, allowedDocumentIDs []string) (retrieval.Result, error)
}

// Options tune prompt composition.
type Options struct {
	// MaxHistoryTurns bounds how many recent history entries are rendered
	// into the prompt.
	MaxHistoryTurns int

	// MaxContextChars caps the formatted retrieval context.
	MaxContextChars int
}

// DefaultOptions returns the production prompt bounds.
func DefaultOptions() Options {
	return Options{MaxHistoryTurns: 10, MaxContextChars: 4000}
}

// Generator composes and interprets one persona's generation call.
type Generator struct {
	searcher Searcher
	client   types.GenerationClient
	opts     Options
}

var _ types.SuggestionGenerator = (*Generator)(nil)

// NewGenerator wires a generator over the retrieval engine and generation
// client. Both are shared across personas; all persona-specific data
// arrives per call.
func NewGenerator(searcher Searcher, client types.GenerationClient, opts Options) *Generator {
	if opts.MaxHistoryTurns <= 0 {
		opts.MaxHistoryTurns = DefaultOptions().MaxHistoryTurns
	}
	return &Generator{searcher: searcher, client: client, opts: opts}
}

// Generate runs the full per-persona pipeline for one fragment.
func (g *Generator) Generate(ctx context.Context, fragment types.TranscriptFragment, persona types.Persona, history []types.HistoryEntry) (outcome types.SuggestionOutcome) {
	outcome.PersonaID = persona.ID

	// The settle-all barrier in dispatch depends on every launched attempt
	// producing an outcome, so a panic here must become a failed outcome
	// rather than unwinding through the coordinator.
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryGeneration).Error("[%s] panic in generate: %v", persona.Name, r)
			outcome = types.SuggestionOutcome{
				PersonaID: persona.ID,
				Err:       fmt.Errorf("suggest: panic: %v", r),
			}
		}
	}()

	contextBlock := g.retrieveContext(ctx, fragment.Text, persona)

	req := types.GenerationRequest{
		Instructions: BuildInstructions(persona, contextBlock),
		History:      RenderHistory(history, g.opts.MaxHistoryTurns),
		Fragment:     fragment.Text,
	}

	raw, err := g.client.Generate(ctx, req)
	if err != nil {
		logging.Generation("[%s] generation failed: %v", persona.Name, err)
		outcome.Err = err
		return outcome
	}

	text := strings.TrimSpace(raw)
	if text == SilenceMarker {
		logging.GenerationDebug("[%s] chose silence", persona.Name)
		return outcome
	}

	kind, text := classifyResponse(text, fragment.Text)
	outcome.Text = text
	outcome.Kind = kind
	outcome.Confidence = scoreConfidence(text)

	logging.Generation("[%s] suggestion (%s, confidence %.2f): %s",
		persona.Name, kind, outcome.Confidence, firstLine(text))
	return outcome
}

// retrieveContext searches the persona's scope and formats the survivors.
// A retrieval failure degrades to generating without supporting context;
// it never aborts the persona's turn.
func (g *Generator) retrieveContext(ctx context.Context, query string, persona types.Persona) string {
	res, err := g.searcher.Search(ctx, query, persona.AllowedDocumentIDs)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("[%s] retrieval failed, generating without context: %v", persona.Name, err)
		return ""
	}
	if !res.Matched {
		return ""
	}
	return retrieval.FormatContext(res.Passages, g.opts.MaxContextChars)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
