package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/detector"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

func scrape(t *testing.T, src Sources) string {
	t.Helper()
	srv := httptest.NewServer(Handler(NewRegistry(src)))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestExportsSources(t *testing.T) {
	var stats detector.Stats
	stats.Captures.Add(3)
	stats.Dropped.Add(1)

	store := history.New(history.Options{MaxSize: 5})
	store.Add("a")
	store.Add("b")

	out := scrape(t, Sources{
		Detector:      &stats,
		Store:         store,
		Hub:           hub.New(),
		JournalFailed: func() uint64 { return 7 },
		PrunedDays:    func() uint64 { return 2 },
	})

	for _, want := range []string{
		"clipstash_captures_total 3",
		"clipstash_detector_dropped_signals_total 1",
		"clipstash_history_entries 2",
		"clipstash_history_max_entries 5",
		"clipstash_hub_peers 0",
		"clipstash_journal_write_failures_total 7",
		"clipstash_retention_pruned_days_total 2",
		"go_goroutines",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSkipsMissingSources(t *testing.T) {
	out := scrape(t, Sources{})
	assert.NotContains(t, out, "clipstash_")
	assert.Contains(t, out, "go_goroutines")
}
