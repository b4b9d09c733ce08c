package dispatch

import (
	"sync"
	"time"
)

// NoticeThrottle rate-limits the user-visible aggregate rate-limit notice
// so repeated provider throttling does not turn into alert fatigue. At most
// one notice passes per interval.
type NoticeThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewNoticeThrottle builds a throttle with the given minimum gap.
func NewNoticeThrottle(interval time.Duration) *NoticeThrottle {
	return &NoticeThrottle{interval: interval}
}

// Allow reports whether a notice may be shown at time t, consuming the slot
// when it may.
func (n *NoticeThrottle) Allow(t time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.last.IsZero() && t.Sub(n.last) < n.interval {
		return false
	}
	n.last = t
	return true
}

// Reset clears the throttle for a new session.
func (n *NoticeThrottle) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = time.Time{}
}
