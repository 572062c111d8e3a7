// Package api serves the clipboard history to presentation layers and CLI
// tools: a gRPC HistoryService (JSON codec) on the IPC socket and optional TCP
// listener, and an HTTP/JSON gateway on the same TCP port.
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

const sourceHeader = "x-clipstash-source"

// Writer is the clipboard write path used by Copy and Recopy.
type Writer interface {
	Name() string
	WriteText(text string) error
}

// Archive is the persisted history. journal.Journal satisfies it.
type Archive interface {
	Load(ctx context.Context) ([]history.Entry, error)
	ByDay(ctx context.Context, day string) ([]history.Entry, error)
	Days(ctx context.Context) ([]string, error)
}

// Options configures a Service.
type Options struct {
	Store   *history.Store
	Hub     *hub.Hub
	Writer  Writer
	Token   string // empty = no auth
	Version string
	Storage string
	// Archive backs day listings, search and Days with everything on disk.
	// When nil only the in-memory history is served.
	Archive Archive
	// Prune removes expired days and returns the count and the cutoff day.
	// When nil the Prune RPC reports Unimplemented.
	Prune func(context.Context) (int, string, error)
}

// Service implements HistoryServer.
type Service struct {
	opts    Options
	started time.Time
	watchN  atomic.Uint64
}

// New returns a Service.
func New(opts Options) *Service {
	return &Service{opts: opts, started: time.Now()}
}

// Copy implements HistoryService.Copy.
func (s *Service) Copy(ctx context.Context, req *CopyRequest) (*CopyResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, status.Error(codes.InvalidArgument, "empty text")
	}
	if err := s.opts.Writer.WriteText(req.Text); err != nil {
		return nil, status.Errorf(codes.Unavailable, "clipboard write: %v", err)
	}
	slog.Debug("clipboard written", "source", sourceFromCtx(ctx), "size_bytes", len(req.Text))
	return &CopyResponse{}, nil
}

// Recopy implements HistoryService.Recopy.
func (s *Service) Recopy(ctx context.Context, req *RecopyRequest) (*RecopyResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	e, err := s.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	// Remember has to precede the write so the detector never sees the
	// value as new; a failed write takes it back.
	prev := s.opts.Store.LastCaptured()
	if req.NoRecord {
		s.opts.Store.Remember(e.Text)
	}
	if err := s.opts.Writer.WriteText(e.Text); err != nil {
		if req.NoRecord {
			s.opts.Store.Forget(e.Text, prev)
		}
		return nil, status.Errorf(codes.Unavailable, "clipboard write: %v", err)
	}
	slog.Info("entry re-copied", "id", e.ID, "source", sourceFromCtx(ctx), "no_record", req.NoRecord)
	return &RecopyResponse{Entry: e}, nil
}

func (s *Service) lookup(ctx context.Context, req *RecopyRequest) (history.Entry, error) {
	switch {
	case req.ID != "":
		if e, ok := s.opts.Store.Get(req.ID); ok {
			return e, nil
		}
		if s.opts.Archive != nil {
			all, err := s.opts.Archive.Load(ctx)
			if err != nil {
				return history.Entry{}, status.Errorf(codes.Internal, "load history: %v", err)
			}
			if i := slices.IndexFunc(all, func(e history.Entry) bool { return e.ID == req.ID }); i >= 0 {
				return all[i], nil
			}
		}
		return history.Entry{}, status.Errorf(codes.NotFound, "no entry %q", req.ID)
	case req.Index > 0:
		entries := s.opts.Store.List()
		if req.Index > len(entries) {
			return history.Entry{}, status.Errorf(codes.NotFound, "no entry at position %d (history has %d)", req.Index, len(entries))
		}
		return entries[req.Index-1], nil
	default:
		return history.Entry{}, status.Error(codes.InvalidArgument, "id or index required")
	}
}

// List implements HistoryService.List.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	var entries []history.Entry
	if req.Day != "" {
		if _, err := time.Parse(history.DayLayout, req.Day); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "day %q: want YYYY-MM-DD", req.Day)
		}
		entries = s.opts.Store.ByDay(req.Day)
		if s.opts.Archive != nil {
			disk, err := s.opts.Archive.ByDay(ctx, req.Day)
			if err != nil {
				return nil, status.Errorf(codes.Internal, "load day %s: %v", req.Day, err)
			}
			entries = merge(entries, disk)
		}
	} else {
		entries = s.opts.Store.List()
	}
	return &ListResponse{Entries: capped(entries, req.Limit)}, nil
}

// Search implements HistoryService.Search.
func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.opts.Archive == nil {
		return &SearchResponse{Results: capped(s.opts.Store.Search(req.Query), req.Limit)}, nil
	}
	disk, err := s.opts.Archive.Load(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "load history: %v", err)
	}
	results := history.Search(merge(s.opts.Store.List(), disk), req.Query)
	return &SearchResponse{Results: capped(results, req.Limit)}, nil
}

// Days implements HistoryService.Days.
func (s *Service) Days(ctx context.Context, _ *DaysRequest) (*DaysResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	days := s.opts.Store.Days()
	if s.opts.Archive != nil {
		disk, err := s.opts.Archive.Days(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "list days: %v", err)
		}
		days = append(days, disk...)
		slices.Sort(days)
		days = slices.Compact(days)
		slices.Reverse(days)
	}
	return &DaysResponse{Days: days}, nil
}

// Status implements HistoryService.Status.
func (s *Service) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	resp := &StatusResponse{
		Version:   s.opts.Version,
		Backend:   s.opts.Writer.Name(),
		Storage:   s.opts.Storage,
		Entries:   s.opts.Store.Len(),
		MaxSize:   s.opts.Store.MaxSize(),
		StartedAt: s.started,
		Peers:     s.opts.Hub.Peers(),
	}
	if ev, ok := s.opts.Hub.Latest(hub.KindChanged); ok {
		at := ev.At
		resp.LastCapture = &at
	}
	return resp, nil
}

// Activate implements HistoryService.Activate.
func (s *Service) Activate(ctx context.Context, req *ActivateRequest) (*ActivateResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	src := req.Source
	if src == "" {
		src = sourceFromCtx(ctx)
	}
	var n int
	for _, p := range s.opts.Hub.Peers() {
		if hub.Accepts(p.Kinds, hub.KindActivate) {
			n++
		}
	}
	ev := hub.Event{Kind: hub.KindActivate, Source: src}
	hub.LogEvent("activation requested", ev)
	s.opts.Hub.Publish(ev)
	return &ActivateResponse{Watchers: n}, nil
}

// Prune implements HistoryService.Prune.
func (s *Service) Prune(ctx context.Context, _ *PruneRequest) (*PruneResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.opts.Prune == nil {
		return nil, status.Error(codes.Unimplemented, "no journal configured")
	}
	n, cutoff, err := s.opts.Prune(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "prune: %v", err)
	}
	return &PruneResponse{Removed: n, Cutoff: cutoff}, nil
}

// Watch implements HistoryService.Watch.
func (s *Service) Watch(req *WatchRequest, stream WatchServer) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}

	kinds, err := hub.ParseKinds(req.Kinds)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	wp := &watchPeer{
		id:          addrFromCtx(ctx) + "/watch/" + strconv.FormatUint(s.watchN.Add(1), 10),
		source:      sourceFromCtx(ctx),
		addr:        addrFromCtx(ctx),
		kinds:       kinds,
		ch:          make(chan hub.Event, 16),
		connectedAt: time.Now(),
	}
	s.opts.Hub.Register(wp)
	defer s.opts.Hub.Unregister(wp)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-wp.ch:
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

// auth validates the bearer token in ctx metadata. Skipped when no token is
// set and for callers on the owner-restricted IPC socket.
func (s *Service) auth(ctx context.Context) error {
	if s.opts.Token == "" || isLocal(ctx) {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok := strings.TrimPrefix(vals[0], "Bearer ")
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.opts.Token)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func isLocal(ctx context.Context) bool {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return false
	}
	switch p.Addr.Network() {
	case "unix", "pipe":
		return true
	}
	return false
}

func sourceFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(sourceHeader); len(vals) > 0 {
			return vals[0]
		}
	}
	return addrFromCtx(ctx)
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if a := p.Addr.String(); a != "" {
			return a
		}
		return p.Addr.Network()
	}
	return "local"
}

func capped[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	if s == nil {
		return []T{}
	}
	return s
}

// merge returns the in-memory entries plus the persisted ones not held in
// memory, most recent first. Entries still queued for the journal only
// exist in mem.
func merge(mem, disk []history.Entry) []history.Entry {
	seen := make(map[string]struct{}, len(mem))
	out := make([]history.Entry, 0, len(mem)+len(disk))
	for _, e := range mem {
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range disk {
		if _, ok := seen[e.ID]; !ok {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b history.Entry) int {
		return b.CapturedAt.Compare(a.CapturedAt)
	})
	return out
}

// ── watchPeer ──────────────────────────────────────────────────────────────

// watchPeer is a transient hub.Peer backed by a Watch stream.
type watchPeer struct {
	id          string
	source      string
	addr        string
	kinds       []hub.Kind
	ch          chan hub.Event
	connectedAt time.Time
	lastSeen    atomic.Int64
}

func (p *watchPeer) ID() string { return p.id }

func (p *watchPeer) Info() hub.PeerInfo {
	info := hub.PeerInfo{
		ID:          p.id,
		Source:      p.source,
		Addr:        p.addr,
		Kinds:       p.kinds,
		ConnectedAt: p.connectedAt,
	}
	if ls := p.lastSeen.Load(); ls > 0 {
		info.LastSeen = time.Unix(0, ls)
	}
	return info
}

func (p *watchPeer) Send(ev hub.Event) {
	p.lastSeen.Store(time.Now().UnixNano())
	select {
	case p.ch <- ev:
	default:
		slog.Warn("watch peer channel full, dropping", "peer", p.id)
	}
}
