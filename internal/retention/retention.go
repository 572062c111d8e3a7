// Package retention deletes journal days older than the configured window
// on a cron schedule, and drops the same days from the in-memory history.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/journal"
)

const (
	DefaultDays     = 10
	DefaultSchedule = "@daily"
)

// Cutoff returns the first day that is kept when retaining days days before
// now: everything strictly before it is expired.
func Cutoff(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format(history.DayLayout)
}

// Pruner removes expired days from a journal.
type Pruner struct {
	j     journal.Journal
	store *history.Store
	days  atomic.Int64
	now   func() time.Time

	removed atomic.Uint64
}

// NewPruner returns a Pruner keeping days days of history. store may be nil.
func NewPruner(j journal.Journal, store *history.Store, days int) *Pruner {
	p := &Pruner{j: j, store: store, now: time.Now}
	p.SetDays(days)
	return p
}

// SetDays changes the retention window. Non-positive values select the default.
func (p *Pruner) SetDays(days int) {
	if days <= 0 {
		days = DefaultDays
	}
	p.days.Store(int64(days))
}

// Days returns the retention window.
func (p *Pruner) Days() int { return int(p.days.Load()) }

// Removed returns how many days have been pruned since start.
func (p *Pruner) Removed() uint64 { return p.removed.Load() }

// Cutoff returns the oldest day the next Prune would keep.
func (p *Pruner) Cutoff() string { return Cutoff(p.now(), p.Days()) }

// Prune deletes expired days and returns how many were removed from the
// journal. Expired entries also leave the store; entries the journal has not
// written yet stay where they are.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.Cutoff()
	n, err := p.j.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff, err)
	}
	var dropped int
	if p.store != nil {
		dropped = p.store.DropBefore(cutoff)
	}
	if n > 0 || dropped > 0 {
		p.removed.Add(uint64(n))
		slog.Info("expired history pruned", "days_removed", n, "entries_dropped", dropped, "cutoff", cutoff)
	}
	return n, nil
}

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	c *cron.Cron
	p *Pruner
}

// NewScheduler parses schedule (standard 5-field cron or a descriptor such as
// "@daily") and returns a Scheduler for p.
func NewScheduler(schedule string, p *Pruner) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := p.Prune(context.Background()); err != nil {
			slog.Error("scheduled prune failed", "err", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("prune schedule %q: %w", schedule, err)
	}
	return &Scheduler{c: c, p: p}, nil
}

// Run prunes once immediately, then on schedule until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.p.Prune(ctx); err != nil {
		slog.Error("startup prune failed", "err", err)
	}
	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()
	return nil
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}
