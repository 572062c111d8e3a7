// Package detector watches the system clipboard and feeds each distinct new
// text into the history.
//
// A pass is started by a backend change signal or by a poll tick. At most one
// pass runs at a time; a signal that arrives while a pass is in flight is
// dropped, since the next signal or tick will read the newest clipboard state
// anyway. A pass that finds the clipboard locked by another process backs off
// and retries a bounded number of times.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

const (
	DefaultAttempts     = 3
	DefaultRetryDelay   = 50 * time.Millisecond
	DefaultPollInterval = 200 * time.Millisecond
)

// Source is the part of clip.Backend the detector reads from.
type Source interface {
	ReadText() (string, error)
	Watch() <-chan struct{}
}

// Config tunes a Detector. Zero values select the defaults above; a negative
// PollInterval disables the poll path.
type Config struct {
	Attempts     int
	RetryDelay   time.Duration
	PollInterval time.Duration
}

// Stats are cumulative counters, safe to read at any time.
type Stats struct {
	Passes      atomic.Uint64
	Dropped     atomic.Uint64
	Captures    atomic.Uint64
	Duplicates  atomic.Uint64
	LockRetries atomic.Uint64
	Failures    atomic.Uint64
}

// Detector moves clipboard changes into a history.Store.
type Detector struct {
	src   Source
	store *history.Store
	hub   *hub.Hub
	cfg   Config

	busy  atomic.Bool
	wg    sync.WaitGroup
	stats Stats
}

// New returns a Detector reading src and writing store. Each capture is
// announced on h as a hub.KindChanged event.
func New(src Source, store *history.Store, h *hub.Hub, cfg Config) *Detector {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Detector{src: src, store: store, hub: h, cfg: cfg}
}

// Stats returns the detector's counters.
func (d *Detector) Stats() *Stats { return &d.stats }

// Run processes change signals and poll ticks until ctx is done, then waits
// for any in-flight pass to finish.
func (d *Detector) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if d.cfg.PollInterval > 0 {
		t := time.NewTicker(d.cfg.PollInterval)
		defer t.Stop()
		tick = t.C
	}
	watch := d.src.Watch()

	slog.Info("clipboard detector started",
		"poll_interval", d.cfg.PollInterval,
		"attempts", d.cfg.Attempts,
	)

	// Pick up whatever is on the clipboard at startup.
	d.Signal(ctx)

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return nil
		case <-watch:
			d.Signal(ctx)
		case <-tick:
			d.Signal(ctx)
		}
	}
}

// Signal starts a pass in the background unless one is already running.
// It never blocks and reports whether a pass was started.
func (d *Detector) Signal(ctx context.Context) bool {
	if !d.busy.CompareAndSwap(false, true) {
		d.stats.Dropped.Add(1)
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.busy.Store(false)
		d.process(ctx)
	}()
	return true
}

// Wait blocks until no pass is in flight.
func (d *Detector) Wait() { d.wg.Wait() }

func (d *Detector) process(ctx context.Context) {
	d.stats.Passes.Add(1)

	text, err := d.read(ctx)
	switch {
	case err == nil:
	case errors.Is(err, clip.ErrNoText):
		return
	case ctx.Err() != nil:
		return
	default:
		d.stats.Failures.Add(1)
		slog.Warn("clipboard read failed, skipping", "err", err)
		return
	}

	e, res := d.store.Capture(text)
	switch res {
	case history.SameAsLast:
		d.stats.Duplicates.Add(1)
		return
	case history.Ignored:
		return
	}
	d.stats.Captures.Add(1)

	ev := hub.Event{Kind: hub.KindChanged, Source: "clipboard", Entry: &e}
	hub.LogEvent("clipboard captured", ev)
	d.hub.Publish(ev)
}

// read returns the clipboard text, retrying while the clipboard is locked.
// The delay between attempts waits on a timer so cancellation is honoured.
func (d *Detector) read(ctx context.Context) (string, error) {
	for attempt := 1; ; attempt++ {
		text, err := d.src.ReadText()
		if !errors.Is(err, clip.ErrLocked) {
			return text, err
		}
		if attempt >= d.cfg.Attempts {
			return "", fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		d.stats.LockRetries.Add(1)
		slog.Debug("clipboard locked, retrying", "attempt", attempt, "delay", d.cfg.RetryDelay)

		t := time.NewTimer(d.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}
