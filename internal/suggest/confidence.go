package suggest

import "strings"

// uncertaintyMarkers drag a suggestion's confidence down when the model
// hedges.
var uncertaintyMarkers = []string{
	"i'm not sure", "i am not sure", "i don't know", "i do not know",
	"might be", "possibly", "unclear",
}

// scoreConfidence is a cheap heuristic carried on outcomes for logging and
// metrics. It plays no part in dedup or display. Base 0.7, bumped for
// structure and a speakable length, docked for hedging, clamped to [0,1].
func scoreConfidence(text string) float64 {
	score := 0.7

	if strings.Contains(text, "- ") || strings.Contains(text, "* ") || strings.Contains(text, "**") {
		score += 0.1
	}

	words := len(strings.Fields(text))
	if words >= 50 && words <= 300 {
		score += 0.1
	}

	lower := strings.ToLower(text)
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.2
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
