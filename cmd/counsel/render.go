package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"counsel/internal/types"
)

var (
	kindStyles = map[types.SuggestionKind]lipgloss.Style{
		types.KindAnswer:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		types.KindObjection: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		types.KindInfo:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}

	noticeStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	statsStyle  = lipgloss.NewStyle().Faint(true)
)

// renderer formats suggestions for the terminal: a kind label, one colored
// badge per contributing persona, and the suggestion text as markdown.
type renderer struct {
	markdown *glamour.TermRenderer
}

func newRenderer() *renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fall back to plain text rendering.
		md = nil
	}
	return &renderer{markdown: md}
}

// badge renders one persona attribution in the persona's color.
func badge(c types.Contributor) string {
	style := lipgloss.NewStyle().Bold(true)
	if c.Color != "" {
		style = style.Foreground(lipgloss.Color(c.Color))
	}
	return style.Render("[" + c.Name + "]")
}

// Suggestion renders one merged suggestion.
func (r *renderer) Suggestion(sug types.DedupedSuggestion) string {
	var b strings.Builder

	kindStyle, ok := kindStyles[sug.Kind]
	if !ok {
		kindStyle = lipgloss.NewStyle().Bold(true)
	}
	b.WriteString(kindStyle.Render(strings.ToUpper(string(sug.Kind))))
	b.WriteString(" ")

	for i, c := range sug.Contributors {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(badge(c))
	}
	b.WriteString("\n")

	text := sug.Text
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}
	b.WriteString(text)
	return b.String()
}

// renderNotice formats the throttled rate-limit notice.
func renderNotice(msg string) string {
	return noticeStyle.Render("! " + msg)
}

// Stats renders the session-end summary with per-persona contribution
// counts and the summary leader.
func (r *renderer) Stats(stats types.SessionStats, personas []types.Persona) string {
	byID := make(map[string]types.Persona, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("session: %d fragments heard, %d dispatched, %d suggestions",
		stats.FragmentsReceived, stats.FragmentsDispatched, stats.SuggestionsEmitted))

	ids := make([]string, 0, len(stats.ByPersona))
	for id := range stats.ByPersona {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		name := id
		if p, ok := byID[id]; ok {
			name = p.Name
		}
		marker := ""
		if id == stats.SummaryLeader {
			marker = " (summary leader)"
		}
		lines = append(lines, fmt.Sprintf("  %s: %d%s", name, stats.ByPersona[id], marker))
	}
	if len(stats.ByPersona) == 0 {
		if p, ok := byID[stats.SummaryLeader]; ok {
			lines = append(lines, fmt.Sprintf("  summary leader: %s", p.Name))
		}
	}
	if stats.RateLimitNotices > 0 {
		lines = append(lines, fmt.Sprintf("  rate-limit notices: %d", stats.RateLimitNotices))
	}

	return statsStyle.Render(strings.Join(lines, "\n"))
}
