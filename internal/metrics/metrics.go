// Package metrics exposes daemon counters in the Prometheus text format.
// Every value is read from its owner at scrape time; nothing here is updated
// on the hot path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.klb.dev/clipstash/internal/detector"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

const namespace = "clipstash"

// Sources are the components whose state is exported. Nil fields are skipped.
type Sources struct {
	Detector      *detector.Stats
	Store         *history.Store
	Hub           *hub.Hub
	JournalFailed func() uint64
	PrunedDays    func() uint64
}

// NewRegistry returns a registry with the Go and process collectors plus one
// collector per available source.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if d := src.Detector; d != nil {
		reg.MustRegister(
			counter("detector_passes_total", "Detection passes started.", d.Passes.Load),
			counter("detector_dropped_signals_total", "Change signals ignored because a pass was already running.", d.Dropped.Load),
			counter("captures_total", "Clipboard values added to the history.", d.Captures.Load),
			counter("duplicates_total", "Clipboard values equal to the last captured one.", d.Duplicates.Load),
			counter("clipboard_lock_retries_total", "Reads retried because the clipboard was held by another process.", d.LockRetries.Load),
			counter("clipboard_read_failures_total", "Detection passes that gave up reading the clipboard.", d.Failures.Load),
		)
	}
	if s := src.Store; s != nil {
		reg.MustRegister(
			gauge("history_entries", "Entries currently held in memory.", func() float64 { return float64(s.Len()) }),
			gauge("history_max_entries", "Configured history bound.", func() float64 { return float64(s.MaxSize()) }),
		)
	}
	if h := src.Hub; h != nil {
		reg.MustRegister(gauge("hub_peers", "Registered event subscribers.", func() float64 { return float64(len(h.Peers())) }))
	}
	if f := src.JournalFailed; f != nil {
		reg.MustRegister(counter("journal_write_failures_total", "Entries that could not be persisted.", f))
	}
	if f := src.PrunedDays; f != nil {
		reg.MustRegister(counter("retention_pruned_days_total", "Days removed by retention pruning.", f))
	}
	return reg
}

// Handler serves reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func counter(name, help string, f func() uint64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(
		prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
		func() float64 { return float64(f()) },
	)
}

func gauge(name, help string, f func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, f)
}
