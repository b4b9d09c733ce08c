package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"counsel/internal/generation"
	"counsel/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGenerator answers from a per-persona script and records launch times.
type fakeGenerator struct {
	mu       sync.Mutex
	replies  map[string]types.SuggestionOutcome
	launches map[string]time.Time
	delay    time.Duration
}

func newFakeGenerator(replies map[string]types.SuggestionOutcome) *fakeGenerator {
	return &fakeGenerator{replies: replies, launches: make(map[string]time.Time)}
}

func (f *fakeGenerator) Generate(_ context.Context, _ types.TranscriptFragment, persona types.Persona, _ []types.HistoryEntry) types.SuggestionOutcome {
	f.mu.Lock()
	f.launches[persona.ID] = time.Now()
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	out, ok := f.replies[persona.ID]
	if !ok {
		return types.SuggestionOutcome{PersonaID: persona.ID}
	}
	out.PersonaID = persona.ID
	return out
}

func twoPersonas() []types.Persona {
	return []types.Persona{
		{ID: "a", Name: "Fundraising", Color: "#7C3AED"},
		{ID: "b", Name: "Legal", Color: "#0EA5E9"},
	}
}

func TestDispatchPartialFailureIsolation(t *testing.T) {
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{
		"a": {Err: &generation.Error{Kind: generation.KindNetwork, Provider: "fake"}},
		"b": {Text: "Plans start at $99.", Kind: types.KindAnswer},
	})
	c := NewCoordinator(gen, Options{Cooldown: 15 * time.Second})

	got := c.Dispatch(context.Background(), types.TranscriptFragment{Text: "What's our pricing?", IsFinal: true}, twoPersonas(), nil)

	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want exactly 1", len(got))
	}
	if len(got[0].Contributors) != 1 || got[0].Contributors[0].PersonaID != "b" {
		t.Errorf("contributors = %+v, want only b", got[0].Contributors)
	}
}

func TestDispatchSinglePersonaEquivalence(t *testing.T) {
	reply := types.SuggestionOutcome{Text: "Plans start at $99.", Kind: types.KindAnswer, Confidence: 0.8}
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{"a": reply})
	c := NewCoordinator(gen, Options{Cooldown: 15 * time.Second, Stagger: 100 * time.Millisecond})

	fragment := types.TranscriptFragment{Text: "What's our pricing?", IsFinal: true}
	persona := types.Persona{ID: "a", Name: "Fundraising", Color: "#7C3AED"}

	start := time.Now()
	got := c.Dispatch(context.Background(), fragment, []types.Persona{persona}, nil)
	elapsed := time.Since(start)

	// Content identical to a direct single-call path: the one outcome's
	// text and kind, attributed to the one persona.
	direct := gen.Generate(context.Background(), fragment, persona, nil)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Text != direct.Text || got[0].Kind != direct.Kind {
		t.Errorf("dispatch output %+v differs from direct call %+v", got[0], direct)
	}
	if len(got[0].Contributors) != 1 || got[0].Contributors[0].Name != "Fundraising" {
		t.Errorf("contributors = %+v", got[0].Contributors)
	}

	// Index 0 gets zero stagger, so the single-persona path adds no
	// artificial latency.
	if elapsed >= 100*time.Millisecond {
		t.Errorf("single-persona dispatch took %v; stagger should not apply", elapsed)
	}
}

func TestDispatchStaggersLaunches(t *testing.T) {
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{
		"a": {Text: "one", Kind: types.KindInfo},
		"b": {Text: "two", Kind: types.KindInfo},
	})
	stagger := 30 * time.Millisecond
	c := NewCoordinator(gen, Options{Cooldown: 15 * time.Second, Stagger: stagger})

	c.Dispatch(context.Background(), types.TranscriptFragment{Text: "hello there friend", IsFinal: true}, twoPersonas(), nil)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	gap := gen.launches["b"].Sub(gen.launches["a"])
	if gap < stagger/2 {
		t.Errorf("launch gap %v, want about %v", gap, stagger)
	}
}

func TestDispatchRespectsCooldown(t *testing.T) {
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{
		"a": {Text: "one", Kind: types.KindInfo},
		"b": {Text: "two", Kind: types.KindInfo},
	})
	c := NewCoordinator(gen, Options{Cooldown: 15 * time.Second})

	base := time.Now()
	clock := base
	var clockMu sync.Mutex
	c.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}

	fragment := types.TranscriptFragment{Text: "first fragment here", IsFinal: true}
	if got := c.Dispatch(context.Background(), fragment, twoPersonas(), nil); len(got) != 2 {
		t.Fatalf("first dispatch emitted %d suggestions, want 2", len(got))
	}

	// Ten seconds later both personas are mid-cooldown: zero outcomes.
	clockMu.Lock()
	clock = base.Add(10 * time.Second)
	clockMu.Unlock()
	if got := c.Dispatch(context.Background(), fragment, twoPersonas(), nil); len(got) != 0 {
		t.Errorf("mid-cooldown dispatch emitted %d suggestions, want 0", len(got))
	}

	// Sixteen seconds after the successes, both are eligible again.
	clockMu.Lock()
	clock = base.Add(16 * time.Second)
	clockMu.Unlock()
	if got := c.Dispatch(context.Background(), fragment, twoPersonas(), nil); len(got) != 2 {
		t.Errorf("post-cooldown dispatch emitted %d suggestions, want 2", len(got))
	}
}

func TestDispatchOutputBoundedByEligible(t *testing.T) {
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{
		"a": {Text: "alpha", Kind: types.KindInfo},
		"b": {Text: "beta", Kind: types.KindInfo},
	})
	c := NewCoordinator(gen, Options{Cooldown: 15 * time.Second})

	got := c.Dispatch(context.Background(), types.TranscriptFragment{Text: "tell me everything now", IsFinal: true}, twoPersonas(), nil)
	if len(got) > 2 {
		t.Errorf("emitted %d suggestions for 2 eligible personas", len(got))
	}
}

func TestDispatchRateLimitNoticeThrottled(t *testing.T) {
	gen := newFakeGenerator(map[string]types.SuggestionOutcome{
		"a": {Err: &generation.Error{Kind: generation.KindRateLimited, Provider: "fake"}},
		"b": {Err: &generation.Error{Kind: generation.KindRateLimited, Provider: "fake"}},
	})

	var notices []string
	c := NewCoordinator(gen, Options{
		Cooldown:       time.Nanosecond, // keep personas eligible across dispatches
		NoticeInterval: time.Hour,
		OnNotice:       func(msg string) { notices = append(notices, msg) },
	})

	fragment := types.TranscriptFragment{Text: "are we rate limited", IsFinal: true}
	c.Dispatch(context.Background(), fragment, twoPersonas(), nil)
	c.Dispatch(context.Background(), fragment, twoPersonas(), nil)

	if len(notices) != 1 {
		t.Errorf("got %d notices, want exactly 1 within the interval", len(notices))
	}
}
