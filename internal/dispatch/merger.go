package dispatch

import (
	"strings"

	"counsel/internal/types"
)

// Merge groups outcomes whose trimmed text is byte-identical and merges
// their attributions into one suggestion each. Matching is case-sensitive
// and exact; semantically similar but textually distinct suggestions stay
// separate. Single pass, O(n); the emitted text is the first-seen original
// (untrimmed), the kind is the first outcome's, and contributors keep
// arrival order.
func Merge(outcomes []types.SuggestionOutcome, personas map[string]types.Persona) []types.DedupedSuggestion {
	if len(outcomes) == 0 {
		return nil
	}

	index := make(map[string]int, len(outcomes))
	merged := make([]types.DedupedSuggestion, 0, len(outcomes))

	for _, o := range outcomes {
		if !o.Contributed() {
			continue
		}
		key := strings.TrimSpace(o.Text)

		p := personas[o.PersonaID]
		contributor := types.Contributor{PersonaID: o.PersonaID, Name: p.Name, Color: p.Color}

		if i, seen := index[key]; seen {
			merged[i].Contributors = append(merged[i].Contributors, contributor)
			continue
		}

		index[key] = len(merged)
		merged = append(merged, types.DedupedSuggestion{
			Text:         o.Text,
			Kind:         o.Kind,
			Contributors: []types.Contributor{contributor},
		})
	}

	if len(merged) == 0 {
		return nil
	}
	return merged
}
