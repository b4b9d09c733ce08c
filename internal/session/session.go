// Package session owns the state of one live conversation: the persona
// snapshot, the append-only conversation history, and the activity
// counters exposed at session end.
//
// The external transcript stream delivers fragments one at a time, so
// HandleFragment never runs concurrently with itself; the lock exists for
// the control surface (End, ClearHistory, Status) which may be called from
// another goroutine while a dispatch is in flight.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"counsel/internal/logging"
	"counsel/internal/suggest"
	"counsel/internal/types"
)

// Dispatcher is the slice of the dispatch coordinator a session drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, fragment types.TranscriptFragment, personas []types.Persona, history []types.HistoryEntry) []types.DedupedSuggestion
	Reset()
}

// Config holds per-session behavior switches.
type Config struct {
	// Personas is the active set for this session, snapshotted at start.
	// Must hold between 1 and types.MaxActivePersonas entries.
	Personas []types.Persona

	// SpeakerFilter appends the user's own speech to history without
	// dispatching it, so suggestions react only to the counterpart.
	SpeakerFilter bool

	// QuestionsOnly dispatches only fragments that read as questions.
	QuestionsOnly bool
}

// Session is the process-lifetime state for one conversation.
type Session struct {
	id        string
	startedAt time.Time

	mu       sync.Mutex
	active   bool
	personas []types.Persona
	history  []types.HistoryEntry

	dispatcher    Dispatcher
	speakerFilter bool
	questionsOnly bool

	fragmentsReceived   int
	fragmentsDispatched int
	suggestionsEmitted  int
	rateLimitNotices    int
	byPersona           map[string]int
}

// New starts a session over a snapshot of the given personas. The active
// set must hold 1 to 4 personas; anything else is a ConfigurationError and
// no session is created.
func New(dispatcher Dispatcher, cfg Config) (*Session, error) {
	if len(cfg.Personas) < 1 || len(cfg.Personas) > types.MaxActivePersonas {
		return nil, types.NewConfigurationError("personas",
			"active set must have 1-%d personas, got %d", types.MaxActivePersonas, len(cfg.Personas))
	}

	// Deep-copy the snapshot so config edits during the session cannot
	// reach in. They apply to the next session.
	personas := make([]types.Persona, len(cfg.Personas))
	for i, p := range cfg.Personas {
		p.AllowedDocumentIDs = append([]string(nil), p.AllowedDocumentIDs...)
		personas[i] = p
	}

	s := &Session{
		id:            uuid.NewString(),
		startedAt:     time.Now(),
		active:        true,
		personas:      personas,
		dispatcher:    dispatcher,
		speakerFilter: cfg.SpeakerFilter,
		questionsOnly: cfg.QuestionsOnly,
		byPersona:     make(map[string]int),
	}

	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.Name
	}
	logging.Session("session %s started with personas: %s", s.id, strings.Join(names, ", "))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IsActive reports whether the session is still forwarding output.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActivePersonas returns a copy of the persona snapshot.
func (s *Session) ActivePersonas() []types.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Persona(nil), s.personas...)
}

// History returns a copy of the conversation log.
func (s *Session) History() []types.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.HistoryEntry(nil), s.history...)
}

// HandleFragment feeds one transcript fragment through the pipeline and
// returns the merged suggestions it produced. Interim fragments and
// fragments filtered by session mode return nothing. Results that settle
// after End are discarded without cancelling the in-flight calls that
// produced them.
func (s *Session) HandleFragment(ctx context.Context, fragment types.TranscriptFragment) []types.DedupedSuggestion {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.fragmentsReceived++
	rl := logging.WithRequestID(logging.CategorySession,
		fmt.Sprintf("%.8s/frag-%d", s.id, s.fragmentsReceived))

	if !fragment.IsFinal {
		s.mu.Unlock()
		rl.Debug("interim fragment skipped")
		return nil
	}

	// Snapshot the history before appending the fragment: the generators
	// receive the conversation so far, and the fragment itself travels
	// separately in the request.
	historySnapshot := append([]types.HistoryEntry(nil), s.history...)
	s.history = append(s.history, types.HistoryEntry{
		Kind:          types.HistoryFragment,
		Text:          fragment.Text,
		SpeakerIsSelf: fragment.SpeakerIsSelf,
		Timestamp:     fragment.Timestamp,
	})

	if s.speakerFilter && fragment.SpeakerIsSelf {
		s.mu.Unlock()
		rl.Debug("own speech appended to history, not dispatched")
		return nil
	}
	if s.questionsOnly && !suggest.IsQuestion(fragment.Text) {
		s.mu.Unlock()
		rl.Debug("non-question fragment skipped in questions-only mode")
		return nil
	}

	s.fragmentsDispatched++
	personas := s.personas
	s.mu.Unlock()

	merged := s.dispatcher.Dispatch(ctx, fragment, personas, historySnapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		// Session ended while the calls were outstanding; the results are
		// awaited to completion but never forwarded.
		rl.Info("session inactive; dropping %d late suggestions", len(merged))
		return nil
	}

	for _, sug := range merged {
		names := make([]string, len(sug.Contributors))
		for i, c := range sug.Contributors {
			names[i] = c.Name
			s.byPersona[c.PersonaID]++
		}
		s.history = append(s.history, types.HistoryEntry{
			Kind:      types.HistorySuggestion,
			Text:      sug.Text,
			Personas:  names,
			Timestamp: time.Now(),
		})
		s.suggestionsEmitted++
	}
	return merged
}

// NoteRateLimit counts a user-visible rate-limit notice. Wired into the
// coordinator's notice callback by the caller.
func (s *Session) NoteRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitNotices++
}

// ClearHistory wipes the conversation log mid-session. Cooldowns and
// counters are untouched.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	logging.Session("session %s history cleared", s.id)
}

// Stats returns a point-in-time snapshot of the session counters.
func (s *Session) Stats() types.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() types.SessionStats {
	by := make(map[string]int, len(s.byPersona))
	for id, n := range s.byPersona {
		by[id] = n
	}
	return types.SessionStats{
		FragmentsReceived:   s.fragmentsReceived,
		FragmentsDispatched: s.fragmentsDispatched,
		SuggestionsEmitted:  s.suggestionsEmitted,
		RateLimitNotices:    s.rateLimitNotices,
		ByPersona:           by,
		SummaryLeader:       s.summaryLeaderLocked(),
	}
}

// summaryLeaderLocked picks the persona with the most contributions for the
// external summarization subsystem. Ties go to the earliest persona in the
// active-set order; with no contributions at all, the first persona leads.
func (s *Session) summaryLeaderLocked() string {
	leader := s.personas[0].ID
	best := s.byPersona[leader]
	for _, p := range s.personas[1:] {
		if s.byPersona[p.ID] > best {
			leader = p.ID
			best = s.byPersona[p.ID]
		}
	}
	return leader
}

// End tears the session down: the output gate closes, dispatch state is
// cleared, and the final stats are returned. Calling End twice is safe.
func (s *Session) End() types.SessionStats {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	stats := s.statsLocked()
	s.mu.Unlock()

	if wasActive {
		s.dispatcher.Reset()
		logging.Session("session %s ended after %v: %d fragments, %d suggestions, leader %s",
			s.id, time.Since(s.startedAt).Round(time.Second),
			stats.FragmentsReceived, stats.SuggestionsEmitted, stats.SummaryLeader)
	}
	return stats
}

// Status renders a one-line summary for the control surface.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := "active"
	if !s.active {
		state = "ended"
	}
	return fmt.Sprintf("session %s (%s): %d personas, %d history entries, %d suggestions",
		s.id, state, len(s.personas), len(s.history), s.suggestionsEmitted)
}
