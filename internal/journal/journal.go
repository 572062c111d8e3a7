// Package journal persists the clipboard history across restarts, bucketed by
// calendar day so that old days can be dropped by the retention policy.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

// Driver names accepted by Open.
const (
	DriverFiles  = "files"
	DriverSQLite = "sqlite"
)

// Journal is a durable log of captured entries.
type Journal interface {
	// Load returns every stored entry, most recent first.
	Load(ctx context.Context) ([]history.Entry, error)
	// ByDay returns the entries stored for day (DayLayout), most recent first.
	// An unknown day yields no entries and no error.
	ByDay(ctx context.Context, day string) ([]history.Entry, error)
	// Append stores one entry.
	Append(ctx context.Context, e history.Entry) error
	// Prune removes every entry whose day sorts before cutoff (DayLayout)
	// and returns the number of days removed.
	Prune(ctx context.Context, cutoff string) (int, error)
	// Days returns the stored days, newest first.
	Days(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the journal for driver rooted at dir.
func Open(driver, dir string) (Journal, error) {
	switch driver {
	case "", DriverFiles:
		return OpenFiles(dir)
	case DriverSQLite:
		return OpenSQLite(filepath.Join(dir, "clipstash.db"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Writer is a hub.Peer that appends every changed event to a Journal.
// Appends happen on Run's goroutine, in publish order.
type Writer struct {
	j      Journal
	ch     chan history.Entry
	failed atomic.Uint64
	since  time.Time
}

// NewWriter returns a Writer for j.
func NewWriter(j Journal) *Writer {
	return &Writer{j: j, ch: make(chan history.Entry, 256), since: time.Now()}
}

func (w *Writer) ID() string { return "journal" }

func (w *Writer) Info() hub.PeerInfo {
	return hub.PeerInfo{
		ID:          w.ID(),
		Source:      "journal",
		Addr:        "local",
		Kinds:       []hub.Kind{hub.KindChanged},
		ConnectedAt: w.since,
	}
}

// Send implements hub.Peer.
func (w *Writer) Send(ev hub.Event) {
	if ev.Kind != hub.KindChanged || ev.Entry == nil {
		return
	}
	select {
	case w.ch <- *ev.Entry:
	default:
		w.failed.Add(1)
		slog.Warn("journal queue full, dropping entry", "id", ev.Entry.ID)
	}
}

// Failed returns how many entries could not be persisted.
func (w *Writer) Failed() uint64 { return w.failed.Load() }

// Run appends queued entries until ctx is done, then drains what is left.
// Failures are logged; the in-memory history stays authoritative.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-w.ch:
					w.append(context.WithoutCancel(ctx), e)
				default:
					return nil
				}
			}
		case e := <-w.ch:
			w.append(ctx, e)
		}
	}
}

func (w *Writer) append(ctx context.Context, e history.Entry) {
	if err := w.j.Append(ctx, e); err != nil {
		w.failed.Add(1)
		slog.Error("journal append failed", "id", e.ID, "err", err)
	}
}
