package api

import (
	"time"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

// CopyRequest asks the daemon to put text on the system clipboard. The
// clipboard detector then records it like any other copy.
type CopyRequest struct {
	Text string `json:"text"`
}

type CopyResponse struct{}

// RecopyRequest puts a stored entry back on the clipboard, selected by ID or
// by 1-based position in the history. With NoRecord the detector is told the
// value is already known, so the entry is not promoted to the head.
type RecopyRequest struct {
	ID       string `json:"id,omitempty"`
	Index    int    `json:"index,omitempty"`
	NoRecord bool   `json:"no_record,omitempty"`
}

type RecopyResponse struct {
	Entry history.Entry `json:"entry"`
}

// ListRequest filters the unfiltered listing by day (DayLayout) and caps its
// length; zero values mean no filter and no cap.
type ListRequest struct {
	Day   string `json:"day,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type ListResponse struct {
	Entries []history.Entry `json:"entries"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchResponse struct {
	Results []history.SearchResult `json:"results"`
}

type DaysRequest struct{}

type DaysResponse struct {
	Days []string `json:"days"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Version     string         `json:"version"`
	Backend     string         `json:"backend"`
	Storage     string         `json:"storage"`
	Entries     int            `json:"entries"`
	MaxSize     int            `json:"max_size"`
	StartedAt   time.Time      `json:"started_at"`
	LastCapture *time.Time     `json:"last_capture,omitempty"`
	Peers       []hub.PeerInfo `json:"peers"`
}

// ActivateRequest asks a presentation layer to show itself.
type ActivateRequest struct {
	Source string `json:"source,omitempty"`
}

type ActivateResponse struct {
	// Watchers is how many subscribers received the request.
	Watchers int `json:"watchers"`
}

type PruneRequest struct{}

type PruneResponse struct {
	// Removed is the number of expired days deleted.
	Removed int `json:"removed"`
	// Cutoff is the oldest day kept.
	Cutoff string `json:"cutoff"`
}

// WatchRequest subscribes to hub events. Empty Kinds means every kind.
type WatchRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}
