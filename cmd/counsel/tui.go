package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"counsel/internal/session"
	"counsel/internal/types"
)

// Live view: fragments and suggestions scroll in a viewport while the
// transcript stream is consumed in the background.

type fragmentMsg types.TranscriptFragment
type suggestionMsg types.DedupedSuggestion
type noticeMsg string
type streamDoneMsg struct{ err error }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	fragmentStyle = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type liveModel struct {
	view     viewport.Model
	renderer *renderer
	pipeline *pipeline
	events   <-chan tea.Msg

	lines    []string
	ready    bool
	finished bool
	err      error
}

func newLiveModel(p *pipeline, events <-chan tea.Msg) liveModel {
	return liveModel{
		renderer: newRenderer(),
		pipeline: p,
		events:   events,
	}
}

func (m liveModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return streamDoneMsg{}
		}
		return msg
	}
}

func (m liveModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.pipeline.session.End()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 3
		}
		m.refresh()
		return m, nil

	case fragmentMsg:
		f := types.TranscriptFragment(msg)
		speaker := "them"
		if f.SpeakerIsSelf {
			speaker = "me"
		}
		m.lines = append(m.lines, fragmentStyle.Render(fmt.Sprintf("%s> %s", speaker, f.Text)))
		m.refresh()
		return m, m.waitForEvent()

	case suggestionMsg:
		m.lines = append(m.lines, m.renderer.Suggestion(types.DedupedSuggestion(msg)), "")
		m.refresh()
		return m, m.waitForEvent()

	case noticeMsg:
		m.pipeline.session.NoteRateLimit()
		m.lines = append(m.lines, renderNotice(string(msg)))
		m.refresh()
		return m, m.waitForEvent()

	case streamDoneMsg:
		m.finished = true
		m.err = msg.err
		stats := m.pipeline.session.End()
		m.lines = append(m.lines, "", m.renderer.Stats(stats, m.pipeline.session.ActivePersonas()))
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *liveModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(strings.Join(m.lines, "\n"))
	m.view.GotoBottom()
}

func (m liveModel) View() string {
	if !m.ready {
		return "starting..."
	}
	status := "listening"
	if m.finished {
		status = "transcript ended"
	}
	header := titleStyle.Render("counsel") + " " + helpStyle.Render("("+status+", q to quit)")
	return header + "\n" + m.view.View() + "\n" + helpStyle.Render("↑/↓ scroll")
}

// runLiveView consumes the transcript in a goroutine and feeds the
// bubbletea program through one event channel.
func runLiveView(ctx context.Context, p *pipeline, input io.Reader) error {
	events := make(chan tea.Msg, 16)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil || !p.session.IsActive() {
				return
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			fragment := session.ParseFragment(line)
			events <- fragmentMsg(fragment)
			for _, sug := range p.session.HandleFragment(ctx, fragment) {
				events <- suggestionMsg(sug)
			}
		}
		events <- streamDoneMsg{err: scanner.Err()}
	}()
	go func() {
		for {
			select {
			case msg := <-p.notices:
				events <- noticeMsg(msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	program := tea.NewProgram(newLiveModel(p, events), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
