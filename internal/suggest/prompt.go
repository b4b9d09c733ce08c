package suggest

import (
	"fmt"
	"strings"

	"counsel/internal/types"
)

// responseProtocol tells the model how to tag its reply and how to decline.
// It is appended after the persona's own instructions so persona style
// guidance reads first.
const responseProtocol = `Respond with one short, speakable suggestion the user can say next.
Open your reply with exactly one tag: [ANSWER] for a direct reply to a question, [OBJECTION] for handling pushback or a concern, or [INFO] for relevant background.
If you have nothing genuinely useful to add to this fragment, reply with exactly: ` + SilenceMarker

// BuildInstructions composes the single instruction block for one call:
// retrieved context (when any) prepended to the persona's instructions,
// followed by the response protocol.
func BuildInstructions(persona types.Persona, contextBlock string) string {
	var b strings.Builder

	if contextBlock != "" {
		b.WriteString("Supporting material from your knowledge base:\n\n")
		b.WriteString(contextBlock)
		b.WriteString("\n\n")
	}

	instructions := strings.TrimSpace(persona.Instructions)
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	b.WriteString(responseProtocol)
	return b.String()
}

// RenderHistory formats the most recent history entries for the prompt.
// Fragments render as Me:/Them: lines; prior suggestions render with their
// contributing persona names so the model avoids repeating a colleague.
func RenderHistory(entries []types.HistoryEntry, maxTurns int) string {
	if len(entries) == 0 {
		return ""
	}
	if maxTurns > 0 && len(entries) > maxTurns {
		entries = entries[len(entries)-maxTurns:]
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case types.HistoryFragment:
			speaker := "Them"
			if e.SpeakerIsSelf {
				speaker = "Me"
			}
			lines = append(lines, fmt.Sprintf("%s: %s", speaker, e.Text))
		case types.HistorySuggestion:
			who := strings.Join(e.Personas, ", ")
			if who == "" {
				who = "assistant"
			}
			lines = append(lines, fmt.Sprintf("[%s] suggested: %s", who, e.Text))
		}
	}
	return strings.Join(lines, "\n")
}
