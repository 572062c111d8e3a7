package hub

import (
	"context"
	"log/slog"
)

const previewLen = 120

// LogEvent logs an event at INFO (kind, source, entry id) and, for entries,
// a text preview at DEBUG.
func LogEvent(msg string, ev Event) {
	if ev.Entry == nil {
		slog.Info(msg, "kind", ev.Kind, "source", ev.Source)
		return
	}
	slog.Info(msg, "kind", ev.Kind, "source", ev.Source, "id", ev.Entry.ID, "size_bytes", len(ev.Entry.Text))

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("clipboard text", "id", ev.Entry.ID, "preview", Preview(ev.Entry.Text))
}

// Preview shortens text for logs and listings.
func Preview(text string) string {
	r := []rune(text)
	if len(r) > previewLen {
		return string(r[:previewLen]) + "…"
	}
	return text
}
