package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"counsel/internal/generation"
	"counsel/internal/retrieval"
	"counsel/internal/types"
)

type mockSearcher struct {
	SearchFunc func(ctx context.Context, query string, allowed []string) (retrieval.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, allowed []string) (retrieval.Result, error) {
	if m.SearchFunc == nil {
		return retrieval.Result{}, nil
	}
	return m.SearchFunc(ctx, query, allowed)
}

type mockClient struct {
	GenerateFunc func(ctx context.Context, req types.GenerationRequest) (string, error)
	lastReq      types.GenerationRequest
	calls        int
}

func (m *mockClient) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	m.calls++
	m.lastReq = req
	return m.GenerateFunc(ctx, req)
}

func (m *mockClient) Name() string { return "mock" }

var testPersona = types.Persona{
	ID:                 "fundraising",
	Name:               "Fundraising",
	Color:              "#7C3AED",
	Instructions:       "You advise on fundraising strategy.",
	AllowedDocumentIDs: []string{"doc-1"},
}

func finalFragment(text string) types.TranscriptFragment {
	return types.TranscriptFragment{Text: text, IsFinal: true}
}

func TestGenerateHappyPath(t *testing.T) {
	searcher := &mockSearcher{
		SearchFunc: func(_ context.Context, _ string, allowed []string) (retrieval.Result, error) {
			if len(allowed) != 1 || allowed[0] != "doc-1" {
				t.Errorf("search scope = %v, want persona scope", allowed)
			}
			return retrieval.Result{
				Matched:  true,
				Passages: []retrieval.Passage{{DocumentName: "pricing.md", Text: "Plans start at $99."}},
			}, nil
		},
	}
	client := &mockClient{
		GenerateFunc: func(_ context.Context, _ types.GenerationRequest) (string, error) {
			return "[ANSWER] Plans start at $99 per month.", nil
		},
	}

	g := NewGenerator(searcher, client, DefaultOptions())
	out := g.Generate(context.Background(), finalFragment("What's our pricing?"), testPersona, nil)

	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.PersonaID != "fundraising" {
		t.Errorf("PersonaID = %q", out.PersonaID)
	}
	if out.Text != "Plans start at $99 per month." {
		t.Errorf("Text = %q, tag not stripped", out.Text)
	}
	if out.Kind != types.KindAnswer {
		t.Errorf("Kind = %q, want answer", out.Kind)
	}
	if out.Confidence <= 0 {
		t.Errorf("Confidence = %v, want > 0", out.Confidence)
	}

	// Retrieved context is prepended before the persona's own instructions.
	instr := client.lastReq.Instructions
	ctxIdx := strings.Index(instr, "pricing.md")
	persIdx := strings.Index(instr, testPersona.Instructions)
	if ctxIdx < 0 || persIdx < 0 || ctxIdx > persIdx {
		t.Errorf("context not prepended to instructions:\n%s", instr)
	}
}

func TestGenerateSilence(t *testing.T) {
	for _, reply := range []string{"---", "---\n", "  ---  \n"} {
		client := &mockClient{GenerateFunc: func(context.Context, types.GenerationRequest) (string, error) {
			return reply, nil
		}}
		g := NewGenerator(&mockSearcher{}, client, DefaultOptions())

		out := g.Generate(context.Background(), finalFragment("Anything else?"), testPersona, nil)
		if !out.Silent() {
			t.Errorf("reply %q: outcome not silent: %+v", reply, out)
		}
		if out.Err != nil {
			t.Errorf("reply %q: silence must not carry an error: %v", reply, out.Err)
		}
	}
}

func TestGenerateRetrievalFailureDegrades(t *testing.T) {
	searcher := &mockSearcher{
		SearchFunc: func(context.Context, string, []string) (retrieval.Result, error) {
			return retrieval.Result{}, &retrieval.Error{Stage: "embed", Err: errors.New("unreachable")}
		},
	}
	client := &mockClient{GenerateFunc: func(context.Context, types.GenerationRequest) (string, error) {
		return "[INFO] Something useful anyway.", nil
	}}

	g := NewGenerator(searcher, client, DefaultOptions())
	out := g.Generate(context.Background(), finalFragment("What's our pricing?"), testPersona, nil)

	if client.calls != 1 {
		t.Fatal("generation skipped after retrieval failure; should degrade to no-context")
	}
	if strings.Contains(client.lastReq.Instructions, "knowledge base") {
		t.Error("instructions carry a context block despite retrieval failure")
	}
	if out.Err != nil || out.Text == "" {
		t.Errorf("degraded outcome = %+v, want a normal suggestion", out)
	}
}

func TestGenerateGenerationFailureFoldsIntoOutcome(t *testing.T) {
	client := &mockClient{GenerateFunc: func(context.Context, types.GenerationRequest) (string, error) {
		return "", &generation.Error{Kind: generation.KindRateLimited, Provider: "mock"}
	}}

	g := NewGenerator(&mockSearcher{}, client, DefaultOptions())
	out := g.Generate(context.Background(), finalFragment("What's our pricing?"), testPersona, nil)

	if out.Err == nil {
		t.Fatal("expected the failure in the outcome")
	}
	if !generation.IsRateLimited(out.Err) {
		t.Errorf("error kind lost: %v", out.Err)
	}
	if out.Contributed() {
		t.Error("failed outcome must not count as a contribution")
	}
}

func TestGeneratePanicBecomesOutcome(t *testing.T) {
	client := &mockClient{GenerateFunc: func(context.Context, types.GenerationRequest) (string, error) {
		panic("provider bug")
	}}

	g := NewGenerator(&mockSearcher{}, client, DefaultOptions())
	out := g.Generate(context.Background(), finalFragment("What's our pricing?"), testPersona, nil)

	if out.Err == nil || !strings.Contains(out.Err.Error(), "panic") {
		t.Fatalf("panic not folded into outcome: %+v", out)
	}
	if out.PersonaID != testPersona.ID {
		t.Errorf("PersonaID lost in panic path: %q", out.PersonaID)
	}
}

func TestRenderHistoryWindowAndFormat(t *testing.T) {
	entries := []types.HistoryEntry{
		{Kind: types.HistoryFragment, Text: "old line", SpeakerIsSelf: true},
		{Kind: types.HistoryFragment, Text: "What does it cost?"},
		{Kind: types.HistorySuggestion, Text: "Plans start at $99.", Personas: []string{"Fundraising"}},
		{Kind: types.HistoryFragment, Text: "And annually?", SpeakerIsSelf: false},
	}

	got := RenderHistory(entries, 3)
	if strings.Contains(got, "old line") {
		t.Error("history window did not drop the oldest entry")
	}
	if !strings.Contains(got, "Them: What does it cost?") {
		t.Errorf("fragment line missing:\n%s", got)
	}
	if !strings.Contains(got, "[Fundraising] suggested: Plans start at $99.") {
		t.Errorf("suggestion line missing:\n%s", got)
	}

	if RenderHistory(nil, 10) != "" {
		t.Error("empty history should render empty")
	}

	self := RenderHistory([]types.HistoryEntry{{Kind: types.HistoryFragment, Text: "hi", SpeakerIsSelf: true}}, 10)
	if !strings.HasPrefix(self, "Me: ") {
		t.Errorf("self fragment rendered as %q", self)
	}
}
