// Package dispatch fans one finalized transcript fragment out to every
// eligible persona, waits for all attempts to settle, and merges the
// surviving suggestions into attributed output.
package dispatch

import (
	"sync"
	"time"

	"counsel/internal/logging"
	"counsel/internal/types"
)

// CooldownTracker guards each persona against overlapping or too-frequent
// generation. Every persona gets the identical cooldown; there is no
// preferential treatment. Both maps are scoped to one session and cleared
// entirely at session end.
type CooldownTracker struct {
	mu          sync.Mutex
	cooldown    time.Duration
	epoch       uint64
	lastSuccess map[string]time.Time
	generating  map[string]bool
}

// NewCooldownTracker builds a tracker with the given per-persona cooldown.
func NewCooldownTracker(cooldown time.Duration) *CooldownTracker {
	return &CooldownTracker{
		cooldown:    cooldown,
		lastSuccess: make(map[string]time.Time),
		generating:  make(map[string]bool),
	}
}

// Eligible reports whether the persona may generate at time t: it has no
// attempt in flight and its cooldown has elapsed. A persona skipped here
// simply produces no outcome for this fragment; that is the common case,
// not an error.
func (c *CooldownTracker) Eligible(personaID string, t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eligibleLocked(personaID, t)
}

func (c *CooldownTracker) eligibleLocked(personaID string, t time.Time) bool {
	if c.generating[personaID] {
		return false
	}
	last, ok := c.lastSuccess[personaID]
	return !ok || t.Sub(last) >= c.cooldown
}

// FilterEligible returns the personas eligible at time t, preserving the
// active-set order, and marks each one as in flight in the same critical
// section so two overlapping fragments can never dispatch the same persona
// twice. The returned epoch must be passed back to Complete.
func (c *CooldownTracker) FilterEligible(personas []types.Persona, t time.Time) ([]types.Persona, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var eligible []types.Persona
	for _, p := range personas {
		if c.eligibleLocked(p.ID, t) {
			c.generating[p.ID] = true
			eligible = append(eligible, p)
		}
	}
	return eligible, c.epoch
}

// Complete records that a persona's attempt settled. The cooldown clock
// restarts only on a real contribution; silence and failure leave the
// persona free to try again on the next fragment. An attempt launched
// before a Reset carries a stale epoch and is discarded, so a session-end
// Reset racing an in-flight attempt can never repopulate the cleared maps.
func (c *CooldownTracker) Complete(outcome types.SuggestionOutcome, t time.Time, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		logging.DispatchDebug("discarding stale completion for %s", outcome.PersonaID)
		return
	}
	delete(c.generating, outcome.PersonaID)
	if outcome.Contributed() {
		c.lastSuccess[outcome.PersonaID] = t
	}
}

// InFlight reports whether the persona currently has an attempt running.
func (c *CooldownTracker) InFlight(personaID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating[personaID]
}

// Reset clears all cooldown and in-flight state and invalidates every
// outstanding epoch. Called at session end so the next session starts with
// a clean slate.
func (c *CooldownTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lastSuccess = make(map[string]time.Time)
	c.generating = make(map[string]bool)
	logging.DispatchDebug("cooldown tracker reset")
}
