// Package hub fans out history notifications to subscribers.
// It is transport-agnostic: subscribers register, receive events through
// their non-blocking Send, and anyone holding the hub may publish.
package hub

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.klb.dev/clipstash/internal/history"
)

// Kind identifies what an event announces.
type Kind string

const (
	// KindChanged follows every successful insert into the history.
	KindChanged Kind = "changed"
	// KindActivate asks the presentation layer to show itself.
	KindActivate Kind = "activate"
)

// Event is a notification delivered to a peer.
type Event struct {
	Kind   Kind           `json:"kind"`
	Source string         `json:"source,omitempty"`
	Entry  *history.Entry `json:"entry,omitempty"`
	At     time.Time      `json:"at"`
}

// PeerInfo carries metadata about a subscriber, reported by Status.
// An empty Kinds slice means the peer receives every kind.
type PeerInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Addr        string    `json:"addr"`
	Kinds       []Kind    `json:"kinds,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Peer is anything that can receive events from the hub.
type Peer interface {
	ID() string
	Info() PeerInfo
	// Send delivers an event to the peer. Must be non-blocking.
	Send(Event)
}

// Hub routes events to all registered peers.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	latest map[Kind]Event
	now    func() time.Time
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		latest: make(map[Kind]Event),
		now:    time.Now,
	}
}

// Register adds a peer. A peer registered twice under the same ID replaces
// the earlier registration.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	total := len(h.peers)
	h.mu.Unlock()

	info := p.Info()
	slog.Info("peer registered",
		"peer", p.ID(),
		"source", info.Source,
		"kinds", info.Kinds,
		"total", total,
	)
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID())
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("peer unregistered",
		"peer", p.ID(),
		"source", p.Info().Source,
		"total", total,
	)
}

// Publish stamps ev, records it as the latest of its kind, and delivers it
// to every peer that accepts the kind.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	h.mu.Lock()
	h.latest[ev.Kind] = ev
	targets := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		if Accepts(p.Info().Kinds, ev.Kind) {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.Send(ev)
	}
}

// Latest returns the most recent event of kind, if any was published.
func (h *Hub) Latest(kind Kind) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.latest[kind]
	return ev, ok
}

// Peers returns a snapshot of all current peer metadata, ordered by ID.
func (h *Hub) Peers() []PeerInfo {
	h.mu.RLock()
	out := make([]PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p.Info())
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b PeerInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Accepts reports whether a peer subscribed to kinds receives k. An empty
// list subscribes to every kind.
func Accepts(kinds []Kind, k Kind) bool {
	return len(kinds) == 0 || slices.Contains(kinds, k)
}

// ParseKinds converts strings to kinds. Unknown names are an error.
func ParseKinds(ss []string) ([]Kind, error) {
	var out []Kind
	for _, s := range ss {
		switch k := Kind(s); k {
		case KindChanged, KindActivate:
			out = append(out, k)
		default:
			return nil, fmt.Errorf("unknown event kind %q (want %s or %s)", s, KindChanged, KindActivate)
		}
	}
	return out, nil
}
