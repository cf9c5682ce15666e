package webhook

import (
	"fmt"
	"testing"
)

// TestSenderRateLimiter_Window verifies the per-sender counting and that
// distinct senders do not share a budget.
func TestSenderRateLimiter_Window(t *testing.T) {
	r := NewSenderRateLimiter(2)

	if !r.Allow("a") || !r.Allow("a") {
		t.Fatal("first two events should pass")
	}
	if r.Allow("a") {
		t.Error("third event within window should be limited")
	}
	if !r.Allow("b") {
		t.Error("different sender should have its own budget")
	}
}

// TestSenderRateLimiter_Disabled verifies a non-positive limit allows
// everything.
func TestSenderRateLimiter_Disabled(t *testing.T) {
	r := NewSenderRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !r.Allow("a") {
			t.Fatal("disabled limiter rejected an event")
		}
	}
	if r.Enabled() {
		t.Error("Enabled() = true for zero limit")
	}
}

// TestSenderRateLimiter_CapEviction verifies the tracked-sender cap is
// enforced so rotating sender ids cannot exhaust memory.
func TestSenderRateLimiter_CapEviction(t *testing.T) {
	r := NewSenderRateLimiter(1)
	for i := 0; i < maxTrackedSenders+100; i++ {
		r.Allow(fmt.Sprintf("s-%d", i))
	}
	r.mu.Lock()
	n := len(r.entries)
	r.mu.Unlock()
	if n > maxTrackedSenders {
		t.Errorf("tracked senders = %d, want <= %d", n, maxTrackedSenders)
	}
}
