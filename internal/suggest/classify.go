package suggest

import (
	"regexp"
	"strings"

	"counsel/internal/types"
)

// Fragment and response classification. The model is asked to tag its own
// reply; when the tag is missing the fragment's shape decides the kind.

var (
	interrogativeLeadIn = regexp.MustCompile(`(?i)^(who|what|when|where|why|how|which|whose|can|could|would|should|will|shall|do|does|did|is|are|was|were|have|has|had|may|might)\b`)
	requestLeadIn       = regexp.MustCompile(`(?i)\b(tell me|explain|walk me through|describe|elaborate)\b`)
	wonderingPhrase     = regexp.MustCompile(`(?i)\b(wondering|curious)\b`)
	objectionTopic      = regexp.MustCompile(`(?i)\b(concern|worried|worry|pushback|hesitant|too expensive|too costly|not sure about|problem with|objection|risky|deal.?breaker)\b`)
)

// nonQuestionStarters open fragments that sound interrogative but are
// conversational filler.
var nonQuestionStarters = []string{
	"okay", "ok", "thanks", "thank you", "got it", "sounds good",
	"alright", "right", "sure", "yeah", "yes", "no problem",
}

// IsQuestion reports whether a fragment is asking for something. Used for
// the questions_only dispatch trigger and as the kind-classification
// fallback.
func IsQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}

	lower := strings.ToLower(t)
	for _, starter := range nonQuestionStarters {
		if lower == starter || strings.HasPrefix(lower, starter+",") || strings.HasPrefix(lower, starter+".") {
			return false
		}
	}

	// Too short to be a real question worth answering.
	if len(strings.Fields(t)) < 3 {
		return false
	}

	if strings.HasSuffix(t, "?") {
		return true
	}
	return interrogativeLeadIn.MatchString(t) || requestLeadIn.MatchString(t) || wonderingPhrase.MatchString(t)
}

// responseTags map the model's self-classification onto suggestion kinds.
var responseTags = []struct {
	tag  string
	kind types.SuggestionKind
}{
	{"[ANSWER]", types.KindAnswer},
	{"[OBJECTION]", types.KindObjection},
	{"[INFO]", types.KindInfo},
}

// classifyResponse determines the suggestion kind and strips a leading tag
// from the response text. With no tag present, the fragment decides: a
// question maps to answer, an objection topic to objection, anything else
// to info.
func classifyResponse(response, fragment string) (types.SuggestionKind, string) {
	for _, rt := range responseTags {
		if strings.HasPrefix(response, rt.tag) {
			return rt.kind, strings.TrimSpace(strings.TrimPrefix(response, rt.tag))
		}
	}

	switch {
	case IsQuestion(fragment):
		return types.KindAnswer, response
	case objectionTopic.MatchString(fragment):
		return types.KindObjection, response
	default:
		return types.KindInfo, response
	}
}
