package webhook

import (
	"sync"
	"time"
)

// maxTrackedSenders caps the number of tracked sender ids to prevent
// memory exhaustion from rotating sender ids.
const maxTrackedSenders = 4096

const rateWindow = time.Minute

type rateEntry struct {
	windowStart time.Time
	count       int
}

// SenderRateLimiter bounds events dispatched per sender id within a
// sliding window. Deliveries over the limit are still acknowledged;
// only dispatch is skipped. Safe for concurrent use.
type SenderRateLimiter struct {
	maxPerWindow int

	mu      sync.Mutex
	entries map[string]*rateEntry
}

// NewSenderRateLimiter creates a limiter allowing maxPerWindow events
// per sender per minute. maxPerWindow <= 0 disables limiting.
func NewSenderRateLimiter(maxPerWindow int) *SenderRateLimiter {
	return &SenderRateLimiter{
		maxPerWindow: maxPerWindow,
		entries:      make(map[string]*rateEntry),
	}
}

// Enabled reports whether the limiter imposes any limit.
func (r *SenderRateLimiter) Enabled() bool { return r != nil && r.maxPerWindow > 0 }

// Allow returns true if the sender is within limits. Prunes stale
// entries and enforces a hard cap on tracked senders.
func (r *SenderRateLimiter) Allow(senderID string) bool {
	if !r.Enabled() {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if len(r.entries) >= maxTrackedSenders {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= rateWindow {
				delete(r.entries, k)
			}
		}
		// Hard eviction if still at cap.
		for len(r.entries) >= maxTrackedSenders {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[senderID]
	if !ok || now.Sub(e.windowStart) >= rateWindow {
		r.entries[senderID] = &rateEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxPerWindow
}
