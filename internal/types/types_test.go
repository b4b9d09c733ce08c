package types

import (
	"errors"
	"testing"
)

func TestPersonaAllows(t *testing.T) {
	p := Persona{ID: "fundraising", AllowedDocumentIDs: []string{"doc-1", "doc-3"}}

	if !p.Allows("doc-1") {
		t.Error("expected doc-1 to be in scope")
	}
	if p.Allows("doc-5") {
		t.Error("doc-5 must not be in scope")
	}

	empty := Persona{ID: "bare"}
	if empty.Allows("doc-1") {
		t.Error("empty scope must allow nothing")
	}
}

func TestOutcomeStates(t *testing.T) {
	tests := []struct {
		name        string
		outcome     SuggestionOutcome
		contributed bool
		silent      bool
	}{
		{"populated", SuggestionOutcome{PersonaID: "a", Text: "Mention the Q3 numbers.", Kind: KindAnswer}, true, false},
		{"silence", SuggestionOutcome{PersonaID: "a"}, false, true},
		{"whitespace only", SuggestionOutcome{PersonaID: "a", Text: "  \n"}, false, true},
		{"failed", SuggestionOutcome{PersonaID: "a", Err: errors.New("backend down")}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Contributed(); got != tt.contributed {
				t.Errorf("Contributed() = %v, want %v", got, tt.contributed)
			}
			if got := tt.outcome.Silent(); got != tt.silent {
				t.Errorf("Silent() = %v, want %v", got, tt.silent)
			}
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("personas", "active set must have 1-%d personas, got %d", MaxActivePersonas, 5)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatal("expected errors.As to match *ConfigurationError")
	}
	if cfgErr.Field != "personas" {
		t.Errorf("Field = %q, want personas", cfgErr.Field)
	}
	want := "configuration error: personas: active set must have 1-4 personas, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
