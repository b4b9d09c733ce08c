package suggest

import (
	"math"
	"testing"

	"counsel/internal/types"
)

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"What's our pricing?", true},
		{"How does the rollout work", true},
		{"Can you walk me through the onboarding", true},
		{"Tell me about the security model", true},
		{"I was wondering about the SLA terms", true},
		{"We shipped the feature yesterday.", false},
		{"Okay, sounds good.", false},
		{"Thanks, that helps a lot.", false},
		{"Why?", false}, // under the three-word minimum
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		if got := IsQuestion(tt.text); got != tt.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestClassifyResponseTags(t *testing.T) {
	tests := []struct {
		response string
		fragment string
		wantKind types.SuggestionKind
		wantText string
	}{
		{"[ANSWER] It costs $99.", "anything", types.KindAnswer, "It costs $99."},
		{"[OBJECTION] Frame it as cost per seat.", "anything", types.KindObjection, "Frame it as cost per seat."},
		{"[INFO] Their fiscal year ends in June.", "anything", types.KindInfo, "Their fiscal year ends in June."},
		// No tag: the fragment decides.
		{"It costs $99.", "What's our pricing?", types.KindAnswer, "It costs $99."},
		{"Offer the annual discount.", "That feels too expensive for us", types.KindObjection, "Offer the annual discount."},
		{"They raised a Series B last year.", "We met their CTO yesterday.", types.KindInfo, "They raised a Series B last year."},
	}

	for _, tt := range tests {
		kind, text := classifyResponse(tt.response, tt.fragment)
		if kind != tt.wantKind || text != tt.wantText {
			t.Errorf("classifyResponse(%q, %q) = (%q, %q), want (%q, %q)",
				tt.response, tt.fragment, kind, text, tt.wantKind, tt.wantText)
		}
	}
}

func TestScoreConfidence(t *testing.T) {
	// Scores accumulate float adjustments, so compare with an epsilon.
	closeTo := func(got, want float64) bool {
		return math.Abs(got-want) < 1e-9
	}

	base := scoreConfidence("Short plain answer.")
	if !closeTo(base, 0.7) {
		t.Errorf("base score = %v, want 0.7", base)
	}

	structured := scoreConfidence("- first point\n- second point")
	if !closeTo(structured, 0.8) {
		t.Errorf("structured score = %v, want 0.8", structured)
	}

	hedged := scoreConfidence("I'm not sure, but it might be fine.")
	if !closeTo(hedged, 0.5) {
		t.Errorf("hedged score = %v, want 0.5", hedged)
	}

	for _, text := range []string{"", "ok", "I don't know. Possibly. Unclear."} {
		s := scoreConfidence(text)
		if s < 0 || s > 1 {
			t.Errorf("score out of range for %q: %v", text, s)
		}
	}
}
