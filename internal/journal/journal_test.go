package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

func entryAt(id, text string, at time.Time) history.Entry {
	return history.Entry{ID: id, Text: text, CapturedAt: at}
}

// journals returns one instance of every driver, each in its own temp dir.
func journals(t *testing.T) map[string]Journal {
	t.Helper()
	out := make(map[string]Journal)
	for _, driver := range []string{DriverFiles, DriverSQLite} {
		j, err := Open(driver, t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		out[driver] = j
	}
	return out
}

func TestAppendLoad(t *testing.T) {
	ctx := context.Background()
	d1 := time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)
	d2 := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, j.Append(ctx, entryAt("1", "first", d1)))
			require.NoError(t, j.Append(ctx, entryAt("2", "multi\nline", d1.Add(time.Minute))))
			require.NoError(t, j.Append(ctx, entryAt("3", "next day", d2)))

			got, err := j.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "3", got[0].ID)
			assert.Equal(t, "multi\nline", got[1].Text)
			assert.Equal(t, "1", got[2].ID)
			assert.True(t, got[2].CapturedAt.Equal(d1))

			days, err := j.Days(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"2026-10-18", "2026-10-17"}, days)
		})
	}
}

func TestByDay(t *testing.T) {
	ctx := context.Background()
	d1 := time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)
	d2 := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, j.Append(ctx, entryAt("1", "morning", d1)))
			require.NoError(t, j.Append(ctx, entryAt("2", "noon", d1.Add(3*time.Hour))))
			require.NoError(t, j.Append(ctx, entryAt("3", "other day", d2)))

			got, err := j.ByDay(ctx, "2026-10-17")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "2", got[0].ID)
			assert.Equal(t, "1", got[1].ID)

			got, err = j.ByDay(ctx, "2026-01-01")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 10, 12, 0, 0, 0, time.Local)

	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			for i := range 5 {
				at := base.AddDate(0, 0, i)
				require.NoError(t, j.Append(ctx, entryAt(at.Format("0102"), "clip", at)))
			}

			n, err := j.Prune(ctx, "2026-10-12")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			days, err := j.Days(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"2026-10-14", "2026-10-13", "2026-10-12"}, days)

			n, err = j.Prune(ctx, "2026-10-12")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestFilesSkipsJunk(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenFiles(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.jsonl"), []byte("{}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-10-18.txt"), []byte("legacy\n"), 0o600))
	good := `{"id":"a","text":"kept","captured_at":"2026-10-19T10:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-10-19.jsonl"), []byte("not json\n\n"+good+"\n"), 0o600))

	got, err := j.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Text)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}

func TestWriterAppendsChangedEvents(t *testing.T) {
	j, err := OpenFiles(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(j)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	e := entryAt("x", "persist me", time.Now())
	w.Send(hub.Event{Kind: hub.KindActivate})
	w.Send(hub.Event{Kind: hub.KindChanged, Entry: &e})

	go func() { done <- w.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	got, err := j.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persist me", got[0].Text)
	assert.Zero(t, w.Failed())
	assert.Equal(t, []hub.Kind{hub.KindChanged}, w.Info().Kinds)
}
