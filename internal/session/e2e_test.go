package session

import (
	"context"
	"strings"
	"testing"

	"counsel/internal/dispatch"
	"counsel/internal/retrieval"
	"counsel/internal/store"
	"counsel/internal/suggest"
	"counsel/internal/types"
)

// Full pipeline over real components: retrieval + generator + coordinator
// + session, with only the network edges (embedder, LLM) faked.

type e2eEmbedder struct{}

func (e2eEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	// Pricing-flavored text lands near the pricing chunk; everything else
	// is orthogonal to the whole store.
	if strings.Contains(strings.ToLower(text), "pricing") || strings.Contains(text, "$") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e e2eEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e2eEmbedder) Dimensions() int { return 3 }
func (e2eEmbedder) Name() string    { return "e2e" }

// e2eClient answers as whichever persona's instructions it was handed: the
// fundraising persona has supporting context and answers; the legal persona
// finds nothing relevant and stays silent.
type e2eClient struct{}

func (e2eClient) Generate(_ context.Context, req types.GenerationRequest) (string, error) {
	if strings.Contains(req.Instructions, "fundraising strategy") {
		return "[ANSWER] Plans start at $99 per month.", nil
	}
	return suggest.SilenceMarker, nil
}

func (e2eClient) Name() string { return "e2e" }

func TestEndToEndTwoPersonaScenario(t *testing.T) {
	src := store.NewMemoryStore()
	src.Add(types.KnowledgeChunk{
		DocumentID:   "doc-1",
		DocumentName: "pricing.md",
		Text:         "Plans start at $99 per month, billed annually.",
		Embedding:    []float32{1, 0, 0},
	})
	src.Add(types.KnowledgeChunk{
		DocumentID:   "doc-2",
		DocumentName: "legal.md",
		Text:         "Liability is capped at twelve months of fees.",
		Embedding:    []float32{0, 1, 0},
	})

	engine := retrieval.NewEngine(e2eEmbedder{}, src, retrieval.DefaultOptions())
	generator := suggest.NewGenerator(engine, e2eClient{}, suggest.DefaultOptions())
	coordinator := dispatch.NewCoordinator(generator, dispatch.Options{Stagger: 0})

	personas := []types.Persona{
		{ID: "fundraising", Name: "Fundraising", Color: "#7C3AED",
			Instructions: "You advise on fundraising strategy.", AllowedDocumentIDs: []string{"doc-1"}},
		{ID: "legal", Name: "Legal", Color: "#0EA5E9",
			Instructions: "You advise on legal exposure.", AllowedDocumentIDs: []string{"doc-2"}},
	}

	s, err := New(coordinator, Config{Personas: personas})
	if err != nil {
		t.Fatal(err)
	}
	defer s.End()

	got := s.HandleFragment(context.Background(), types.TranscriptFragment{
		Text: "What's our pricing?", IsFinal: true,
	})

	// Fundraising retrieves doc 1 and answers; Legal finds nothing above
	// threshold and returns the silence marker. Exactly one suggestion,
	// attributed only to Fundraising.
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	sug := got[0]
	if sug.Kind != types.KindAnswer {
		t.Errorf("Kind = %q, want answer", sug.Kind)
	}
	if !strings.Contains(sug.Text, "$99") {
		t.Errorf("Text = %q, want the priced answer", sug.Text)
	}
	if len(sug.Contributors) != 1 || sug.Contributors[0].PersonaID != "fundraising" {
		t.Errorf("Contributors = %+v, want only Fundraising", sug.Contributors)
	}
	if sug.Contributors[0].Color != "#7C3AED" {
		t.Errorf("contributor color lost: %+v", sug.Contributors[0])
	}

	stats := s.Stats()
	if stats.SummaryLeader != "fundraising" {
		t.Errorf("SummaryLeader = %q", stats.SummaryLeader)
	}
	if stats.ByPersona["legal"] != 0 {
		t.Errorf("silent persona counted: %v", stats.ByPersona)
	}
}
