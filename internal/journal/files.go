package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"go.klb.dev/clipstash/internal/history"
)

const fileExt = ".jsonl"

// Files stores one file per day, named YYYY-MM-DD.jsonl, holding one JSON
// encoded entry per line in capture order. Text is JSON-quoted so multi-line
// clips stay on one line.
type Files struct {
	dir string
	mu  sync.Mutex
}

// OpenFiles returns a Files journal, creating dir if needed.
func OpenFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

func (f *Files) path(day string) string {
	return filepath.Join(f.dir, day+fileExt)
}

func (f *Files) Append(_ context.Context, e history.Entry) error {
	line, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := os.OpenFile(f.path(e.Day()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open day file: %w", err)
	}
	if _, err := fh.Write(line); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write day file: %w", err)
	}
	return fh.Close()
}

func (f *Files) Load(ctx context.Context) ([]history.Entry, error) {
	days, err := f.Days(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []history.Entry
	for _, day := range days {
		entries, err := f.readDay(day)
		if err != nil {
			// One unreadable day should not lose the rest of the history.
			slog.Warn("skipping unreadable day file", "day", day, "err", err)
			continue
		}
		slices.Reverse(entries)
		out = append(out, entries...)
	}
	slices.SortStableFunc(out, func(a, b history.Entry) int {
		return b.CapturedAt.Compare(a.CapturedAt)
	})
	return out, nil
}

func (f *Files) ByDay(_ context.Context, day string) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readDay(day)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read day %s: %w", day, err)
	}
	slices.Reverse(entries)
	return entries, nil
}

func (f *Files) readDay(day string) ([]history.Entry, error) {
	fh, err := os.Open(f.path(day))
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var out []history.Entry
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e history.Entry
		if err := sonic.Unmarshal(line, &e); err != nil {
			slog.Warn("skipping malformed journal line", "day", day, "line", n, "err", err)
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func (f *Files) Days(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	des, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var days []string
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		day := strings.TrimSuffix(name, fileExt)
		if _, err := time.Parse(history.DayLayout, day); err != nil {
			continue
		}
		days = append(days, day)
	}
	slices.Sort(days)
	slices.Reverse(days)
	return days, nil
}

func (f *Files) Prune(ctx context.Context, cutoff string) (int, error) {
	days, err := f.Days(ctx)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int
	for _, day := range days {
		if day >= cutoff {
			continue
		}
		if err := os.Remove(f.path(day)); err != nil {
			slog.Warn("remove day file failed", "day", day, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (f *Files) Close() error { return nil }
