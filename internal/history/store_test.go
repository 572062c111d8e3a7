package history

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store with deterministic ids and a fixed clock.
func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	var n int
	if opts.NewID == nil {
		opts.NewID = func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local) }
	}
	return New(opts)
}

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		dedup   Dedup
		adds    []string
		want    []string
	}{
		{name: "most recent first", adds: []string{"a", "b", "c"}, want: []string{"c", "b", "a"}},
		{name: "repeat of head ignored", adds: []string{"foo", "foo"}, want: []string{"foo"}},
		{name: "second entry promoted", adds: []string{"foo", "bar", "foo"}, want: []string{"foo", "bar"}},
		{name: "older duplicate kept under adjacent", adds: []string{"a", "b", "c", "a"}, want: []string{"a", "c", "b", "a"}},
		{name: "older duplicate removed under global", dedup: DedupGlobal, adds: []string{"a", "b", "c", "a"}, want: []string{"a", "c", "b"}},
		{name: "bounded", maxSize: 2, adds: []string{"a", "b", "c"}, want: []string{"c", "b"}},
		{name: "blank rejected", adds: []string{"", "  ", "\n\t", "x"}, want: []string{"x"}},
		{name: "whitespace preserved", adds: []string{"  padded  "}, want: []string{"  padded  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, Options{MaxSize: tt.maxSize, Dedup: tt.dedup})
			for _, a := range tt.adds {
				s.Add(a)
			}
			assert.Equal(t, tt.want, texts(s.List()))
		})
	}
}

func TestAddReportsInsert(t *testing.T) {
	s := newTestStore(t, Options{})

	e, ok := s.Add("hello")
	require.True(t, ok)
	assert.Equal(t, "id-1", e.ID)
	assert.Equal(t, "hello", e.Text)
	assert.Equal(t, "2026-10-19", e.Day())

	_, ok = s.Add("hello")
	assert.False(t, ok)

	_, ok = s.Add("   ")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestCapture(t *testing.T) {
	s := newTestStore(t, Options{})

	_, res := s.Capture("one")
	assert.Equal(t, Captured, res)

	_, res = s.Capture("one")
	assert.Equal(t, SameAsLast, res)

	_, res = s.Capture("")
	assert.Equal(t, Ignored, res)

	// The head changed underneath (API add), but the clipboard still holds "one".
	s.Add("two")
	_, res = s.Capture("one")
	assert.Equal(t, SameAsLast, res)

	_, res = s.Capture("three")
	assert.Equal(t, Captured, res)
	assert.Equal(t, []string{"three", "two", "one"}, texts(s.List()))
	assert.Equal(t, "three", s.LastCaptured())
}

func TestRemember(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Add("old")
	s.Add("new")

	s.Remember("old")
	_, res := s.Capture("old")
	assert.Equal(t, SameAsLast, res)
	assert.Equal(t, []string{"new", "old"}, texts(s.List()))
}

func TestForget(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Capture("current")

	s.Remember("pending")
	s.Forget("pending", "current")
	assert.Equal(t, "current", s.LastCaptured())
	_, res := s.Capture("pending")
	assert.Equal(t, Captured, res)

	s.Remember("again")
	s.Capture("newer")
	s.Forget("again", "pending")
	assert.Equal(t, "newer", s.LastCaptured(), "a newer value wins over the undo")
}

func TestDropBefore(t *testing.T) {
	s := newTestStore(t, Options{})
	today := time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)
	s.Restore([]Entry{
		{ID: "t", Text: "today", CapturedAt: today},
		{ID: "y", Text: "yesterday", CapturedAt: today.AddDate(0, 0, -1)},
		{ID: "o", Text: "old", CapturedAt: today.AddDate(0, 0, -5)},
	})
	s.Capture("fresh")
	s.Remember("old")

	assert.Equal(t, 1, s.DropBefore("2026-10-18"))
	assert.Equal(t, []string{"fresh", "today", "yesterday"}, texts(s.List()))
	assert.Equal(t, "old", s.LastCaptured())
	assert.Zero(t, s.DropBefore("2026-10-18"))
}

func TestBackfill(t *testing.T) {
	s := newTestStore(t, Options{MaxSize: 4})
	s.Capture("live")
	s.Remember("on clipboard")

	earlier := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)
	added := s.Backfill([]Entry{
		{ID: "id-1", Text: "live", CapturedAt: earlier.Add(time.Hour)},
		{ID: "later", Text: "later", CapturedAt: time.Date(2026, 10, 20, 0, 0, 0, 0, time.Local)},
		{ID: "b", Text: "b", CapturedAt: earlier.Add(2 * time.Minute)},
		{ID: "blank", Text: "  ", CapturedAt: earlier.Add(time.Minute)},
		{ID: "a", Text: "a", CapturedAt: earlier},
		{ID: "z", Text: "z", CapturedAt: earlier.Add(-time.Minute)},
		{ID: "y", Text: "y", CapturedAt: earlier.Add(-2 * time.Minute)},
	})

	assert.Equal(t, 3, added)
	assert.Equal(t, []string{"live", "b", "a", "z"}, texts(s.List()))
	assert.Equal(t, "on clipboard", s.LastCaptured())
}

func TestRestore(t *testing.T) {
	s := newTestStore(t, Options{MaxSize: 3})
	day := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

	s.Restore([]Entry{
		{ID: "e", Text: "e", CapturedAt: day.Add(4 * time.Minute)},
		{ID: "d", Text: "d", CapturedAt: day.Add(3 * time.Minute)},
		{Text: "c", CapturedAt: day.Add(2 * time.Minute)},
		{ID: "blank", Text: " ", CapturedAt: day.Add(time.Minute)},
		{ID: "a", Text: "a", CapturedAt: day},
	})

	got := s.List()
	assert.Equal(t, []string{"e", "d", "c"}, texts(got))
	assert.Equal(t, "e", got[0].ID)
	assert.NotEmpty(t, got[2].ID)
	assert.Equal(t, "e", s.LastCaptured())
}

func TestGet(t *testing.T) {
	s := newTestStore(t, Options{})
	e, _ := s.Add("x")

	got, ok := s.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t, Options{})
	for _, v := range []string{"Hello World", "say hello", "goodbye", "HELLO hello"} {
		s.Add(v)
	}

	res := s.Search("hello")
	require.Len(t, res, 3)
	assert.Equal(t, "HELLO hello", res[0].Entry.Text)
	assert.Equal(t, 0, res[0].HighlightStart)
	assert.Equal(t, 5, res[0].HighlightEnd)
	assert.Equal(t, "say hello", res[1].Entry.Text)
	assert.Equal(t, "hello", res[1].Highlight())
	assert.Equal(t, "Hello", res[2].Highlight())

	assert.Empty(t, s.Search("absent"))
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Add("a")
	s.Add("b")

	res := s.Search("")
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, 0, r.HighlightStart)
		assert.Equal(t, 0, r.HighlightEnd)
	}
	assert.Equal(t, "b", res[0].Entry.Text)
}

func TestSearchMultibyte(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Add("Ünïcode CAFÉ menu")

	res := s.Search("café")
	require.Len(t, res, 1)
	assert.Equal(t, "CAFÉ", res[0].Highlight())

	// 'İ' lowercases to a shorter encoding; the span must still land on the
	// original bytes.
	s.Add("xİy")
	res = s.Search("y")
	require.Len(t, res, 1)
	assert.Equal(t, "y", res[0].Highlight())
}

func TestDays(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.Local)
	s := newTestStore(t, Options{Now: func() time.Time { return now }})

	s.Add("a")
	now = now.AddDate(0, 0, 1)
	s.Add("b")
	s.Add("c")
	now = now.AddDate(0, 0, 1)
	s.Add("d")

	assert.Equal(t, []string{"2026-10-19", "2026-10-18", "2026-10-17"}, s.Days())
	assert.Equal(t, []string{"c", "b"}, texts(s.ByDay("2026-10-18")))
	assert.Empty(t, s.ByDay("2026-01-01"))
}

func TestSetMaxSize(t *testing.T) {
	s := newTestStore(t, Options{MaxSize: 5})
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		s.Add(v)
	}

	s.SetMaxSize(2)
	assert.Equal(t, 2, s.MaxSize())
	assert.Equal(t, []string{"e", "d"}, texts(s.List()))

	s.SetMaxSize(0)
	assert.Equal(t, 2, s.MaxSize())
}

func TestParseDedup(t *testing.T) {
	d, err := ParseDedup("")
	require.NoError(t, err)
	assert.Equal(t, DedupAdjacent, d)

	d, err = ParseDedup("GLOBAL")
	require.NoError(t, err)
	assert.Equal(t, DedupGlobal, d)

	_, err = ParseDedup("fuzzy")
	assert.Error(t, err)
}

func TestConcurrentReaders(t *testing.T) {
	s := New(Options{MaxSize: 50})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 500 {
			s.Capture(fmt.Sprintf("clip %d", i))
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				for _, r := range s.Search("clip") {
					_ = strings.ToLower(r.Highlight())
				}
				assert.LessOrEqual(t, len(s.List()), 50)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
