// Package history holds the bounded, most-recent-first clipboard history.
//
// The store is safe for one writer and many concurrent readers. It performs
// no I/O and never notifies anyone: callers that mutate it publish their own
// change events.
package history

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSize bounds the history when no size is configured.
const DefaultMaxSize = 100

// Dedup selects how repeated texts are collapsed on insert.
type Dedup string

const (
	// DedupAdjacent ignores a repeat of the head and removes a repeat of the
	// second entry before re-inserting it at the head.
	DedupAdjacent Dedup = "adjacent"
	// DedupGlobal additionally removes every older occurrence of the text.
	DedupGlobal Dedup = "global"
)

// ParseDedup converts a config value to a Dedup policy.
func ParseDedup(s string) (Dedup, error) {
	switch Dedup(strings.ToLower(s)) {
	case "", DedupAdjacent:
		return DedupAdjacent, nil
	case DedupGlobal:
		return DedupGlobal, nil
	default:
		return "", fmt.Errorf("unknown dedup policy %q", s)
	}
}

// CaptureResult describes what Capture did with a clipboard value.
type CaptureResult int

const (
	// Captured means a new entry is now at the head.
	Captured CaptureResult = iota
	// SameAsLast means the value equals the last captured value.
	SameAsLast
	// Ignored means the value was blank or already the head entry.
	Ignored
)

func (r CaptureResult) String() string {
	switch r {
	case Captured:
		return "captured"
	case SameAsLast:
		return "same_as_last"
	default:
		return "ignored"
	}
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	MaxSize int
	Dedup   Dedup

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Store is the clipboard history.
type Store struct {
	mu      sync.RWMutex
	entries []Entry // most recent first
	maxSize int
	dedup   Dedup
	last    string // last value seen by Capture or Remember

	now   func() time.Time
	newID func() string
}

// New returns an empty Store.
func New(opts Options) *Store {
	s := &Store{
		maxSize: opts.MaxSize,
		dedup:   opts.Dedup,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxSize
	}
	if s.dedup == "" {
		s.dedup = DedupAdjacent
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Add inserts text at the head of the history. Blank text and a repeat of the
// current head are ignored; the boolean reports whether an entry was inserted.
func (s *Store) Add(text string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(text) {
		return Entry{}, false
	}
	e := Entry{ID: s.newID(), Text: text, CapturedAt: s.now()}
	s.insertLocked(e)
	return e, true
}

// Capture adds text unless it equals the last captured value. The comparison
// and the insert happen under one lock so that concurrent capture paths cannot
// both observe a stale last value and insert twice.
func (s *Store) Capture(text string) (Entry, CaptureResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == s.last {
		return Entry{}, SameAsLast
	}
	if strings.TrimSpace(text) == "" {
		return Entry{}, Ignored
	}
	s.last = text
	if !s.acceptLocked(text) {
		return Entry{}, Ignored
	}
	e := Entry{ID: s.newID(), Text: text, CapturedAt: s.now()}
	s.insertLocked(e)
	return e, Captured
}

// Remember records text as the last captured value without inserting it.
// The re-copy path calls this before writing to the system clipboard.
func (s *Store) Remember(text string) {
	s.mu.Lock()
	s.last = text
	s.mu.Unlock()
}

// Forget undoes a Remember(text) whose clipboard write failed, putting prev
// back. It does nothing if another value has been seen since.
func (s *Store) Forget(text, prev string) {
	s.mu.Lock()
	if s.last == text {
		s.last = prev
	}
	s.mu.Unlock()
}

// LastCaptured returns the last value seen by Capture or Remember.
func (s *Store) LastCaptured() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Restore replaces the history with entries (most recent first), applying
// the same dedup and size rules as Add. Used once at startup.
func (s *Store) Restore(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !s.acceptLocked(e.Text) {
			continue
		}
		if e.ID == "" {
			e.ID = s.newID()
		}
		s.insertLocked(e)
	}
	if len(s.entries) > 0 {
		s.last = s.entries[0].Text
	}
}

// DropBefore removes every entry captured on a day that sorts before cutoff
// (DayLayout) and returns how many were removed. The last captured value is
// kept, so an expired text still on the clipboard is not captured again.
func (s *Store) DropBefore(cutoff string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.Day() < cutoff })
	return n - len(s.entries)
}

// Backfill appends older entries (most recent first) below the current tail
// until the store is full. Entries not older than the tail, already present
// or blank are skipped; under DedupGlobal so is any text already held. The
// head and the last captured value are never touched.
func (s *Store) Backfill(older []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added int
	for _, e := range older {
		if len(s.entries) >= s.maxSize {
			break
		}
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		if n := len(s.entries); n > 0 {
			tail := s.entries[n-1]
			if !e.CapturedAt.Before(tail.CapturedAt) || tail.Text == e.Text {
				continue
			}
		}
		if slices.ContainsFunc(s.entries, func(x Entry) bool {
			return x.ID == e.ID || (s.dedup == DedupGlobal && x.Text == e.Text)
		}) {
			continue
		}
		if e.ID == "" {
			e.ID = s.newID()
		}
		s.entries = append(s.entries, e)
		added++
	}
	return added
}

// acceptLocked applies the blank and dedup rules for text, removing older
// duplicates as a side effect. It reports whether text should be inserted.
func (s *Store) acceptLocked(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if len(s.entries) > 0 {
		if s.entries[0].Text == text {
			return false
		}
		if len(s.entries) > 1 && s.entries[1].Text == text {
			s.entries = slices.Delete(s.entries, 1, 2)
		}
	}
	if s.dedup == DedupGlobal {
		s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.Text == text })
	}
	return true
}

func (s *Store) insertLocked(e Entry) {
	s.entries = slices.Insert(s.entries, 0, e)
	s.truncateLocked()
}

func (s *Store) truncateLocked() {
	if len(s.entries) > s.maxSize {
		clear(s.entries[s.maxSize:])
		s.entries = s.entries[:s.maxSize]
	}
}

// List returns a snapshot of the history, most recent first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Search returns, in history order, every entry containing query ignoring
// case, with the span of the first occurrence. An empty query matches every
// entry with a zero-length highlight at offset 0.
func (s *Store) Search(query string) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Search(s.entries, query)
}

// Days returns the distinct days present in the history, newest first.
func (s *Store) Days() []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		seen[e.Day()] = struct{}{}
	}
	s.mu.RUnlock()

	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}

// ByDay returns the entries captured on day (DayLayout), most recent first.
func (s *Store) ByDay(day string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Day() == day {
			out = append(out, e)
		}
	}
	return out
}

// MaxSize returns the current size bound.
func (s *Store) MaxSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// SetMaxSize changes the size bound, dropping the oldest entries if the
// history is now too long. Non-positive values are ignored.
func (s *Store) SetMaxSize(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.maxSize = n
	s.truncateLocked()
	s.mu.Unlock()
}
