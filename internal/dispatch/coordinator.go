package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"counsel/internal/generation"
	"counsel/internal/logging"
	"counsel/internal/types"
)

// Options configure a Coordinator.
type Options struct {
	// Cooldown is the per-persona minimum gap between two successful
	// contributions.
	Cooldown time.Duration

	// Stagger is the launch delay between successive personas, so a
	// fragment never presents a simultaneous burst to a shared
	// rate-limited backend. Persona i launches after i×Stagger.
	Stagger time.Duration

	// NoticeInterval throttles the user-visible aggregate rate-limit
	// notice.
	NoticeInterval time.Duration

	// OnNotice receives the throttled rate-limit notice text. Nil disables
	// notices.
	OnNotice func(message string)
}

// DefaultOptions returns the production dispatch timing.
func DefaultOptions() Options {
	return Options{
		Cooldown:       15 * time.Second,
		Stagger:        100 * time.Millisecond,
		NoticeInterval: 30 * time.Second,
	}
}

// Coordinator launches one suggestion attempt per eligible persona for each
// fragment and joins them at a settle-all barrier. No outcome is merged or
// emitted before every launched attempt for the fragment has resolved, and
// no single persona's failure can reach the caller as an error.
type Coordinator struct {
	generator types.SuggestionGenerator
	tracker   *CooldownTracker
	notices   *NoticeThrottle
	stagger   time.Duration
	onNotice  func(string)

	now func() time.Time // injectable clock for tests
}

// NewCoordinator builds a coordinator around a suggestion generator.
func NewCoordinator(generator types.SuggestionGenerator, opts Options) *Coordinator {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultOptions().Cooldown
	}
	if opts.NoticeInterval <= 0 {
		opts.NoticeInterval = DefaultOptions().NoticeInterval
	}
	return &Coordinator{
		generator: generator,
		tracker:   NewCooldownTracker(opts.Cooldown),
		notices:   NewNoticeThrottle(opts.NoticeInterval),
		stagger:   opts.Stagger,
		onNotice:  opts.OnNotice,
		now:       time.Now,
	}
}

// Tracker exposes the cooldown tracker for session-boundary resets.
func (c *Coordinator) Tracker() *CooldownTracker { return c.tracker }

// Reset clears per-session dispatch state.
func (c *Coordinator) Reset() {
	c.tracker.Reset()
	c.notices.Reset()
}

// Dispatch fans the fragment out to every eligible persona and returns the
// merged, attributed suggestions. An empty return is the common case: every
// persona was mid-cooldown, silent, or failed.
func (c *Coordinator) Dispatch(ctx context.Context, fragment types.TranscriptFragment, personas []types.Persona, history []types.HistoryEntry) []types.DedupedSuggestion {
	timer := logging.StartTimer(logging.CategoryDispatch, "Dispatch")
	defer timer.Stop()

	eligible, epoch := c.tracker.FilterEligible(personas, c.now())
	if len(eligible) == 0 {
		logging.DispatchDebug("no eligible personas for fragment %q", firstWords(fragment.Text))
		return nil
	}
	logging.Dispatch("fragment %q: %d of %d personas eligible",
		firstWords(fragment.Text), len(eligible), len(personas))

	// One slot per launch; outcomes land at their launch index so merge
	// order is deterministic regardless of completion order.
	outcomes := make([]types.SuggestionOutcome, len(eligible))

	var g errgroup.Group
	for i, persona := range eligible {
		i, persona := i, persona
		delay := time.Duration(i) * c.stagger
		g.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					// Launch anyway; the generator folds the dead context
					// into an error-tagged outcome.
				}
			}

			outcome := c.generator.Generate(ctx, fragment, persona, history)
			outcome.PersonaID = persona.ID
			c.tracker.Complete(outcome, c.now(), epoch)
			outcomes[i] = outcome
			return nil
		})
	}

	// The single synchronization barrier: every attempt settles before
	// anything is merged or emitted. Group funcs always return nil, so
	// this never early-exits.
	_ = g.Wait()

	c.reportRateLimits(outcomes)

	merged := Merge(outcomes, personaIndex(eligible))
	logging.Dispatch("fragment %q: %d outcomes -> %d suggestions",
		firstWords(fragment.Text), len(outcomes), len(merged))
	return merged
}

// reportRateLimits surfaces provider throttling as one throttled notice.
// Individual persona failures never reach the user.
func (c *Coordinator) reportRateLimits(outcomes []types.SuggestionOutcome) {
	limited := 0
	for _, o := range outcomes {
		if o.Err != nil && generation.IsRateLimited(o.Err) {
			limited++
		}
	}
	if limited == 0 || c.onNotice == nil {
		return
	}
	if c.notices.Allow(c.now()) {
		c.onNotice("Suggestions are being rate limited by the provider; some personas may stay quiet for a bit.")
	} else {
		logging.DispatchDebug("rate-limit notice suppressed (%d personas limited)", limited)
	}
}

func personaIndex(personas []types.Persona) map[string]types.Persona {
	m := make(map[string]types.Persona, len(personas))
	for _, p := range personas {
		m[p.ID] = p
	}
	return m
}

func firstWords(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
