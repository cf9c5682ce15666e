// Package sweep evicts stale thread-control entries on a cron schedule,
// bounding the ownership store. TTL is measured since last touch.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/pagerelay/internal/thread"
)

// Sweeper periodically removes ownership entries older than the TTL.
type Sweeper struct {
	store    thread.ControlStore
	schedule string
	ttl      time.Duration
	gron     *gronx.Gronx
}

// New creates a sweeper. Returns an error for an invalid cron schedule.
// A non-positive ttl disables sweeping entirely.
func New(store thread.ControlStore, schedule string, ttl time.Duration) (*Sweeper, error) {
	g := gronx.New()
	if ttl > 0 && !g.IsValid(schedule) {
		return nil, fmt.Errorf("invalid sweep schedule %q", schedule)
	}
	return &Sweeper{store: store, schedule: schedule, ttl: ttl, gron: g}, nil
}

// Run ticks once a minute and sweeps when the schedule is due. Blocks
// until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 {
		slog.Info("thread eviction disabled")
		<-ctx.Done()
		return
	}

	slog.Info("thread eviction sweeper started", "schedule", s.schedule, "ttl", s.ttl)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.gron.IsDue(s.schedule, now)
			if err != nil {
				slog.Warn("sweep schedule evaluation failed", "error", err)
				continue
			}
			if due {
				s.Sweep(now)
			}
		}
	}
}

// Sweep evicts entries untouched for longer than the TTL, relative to now.
func (s *Sweeper) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	evicted := s.store.EvictBefore(cutoff)
	if evicted > 0 {
		slog.Info("evicted stale thread control entries",
			"evicted", evicted, "cutoff", cutoff)
	}
	return evicted
}
