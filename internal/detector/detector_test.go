package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
)

type readResult struct {
	text string
	err  error
}

// fakeSource replays scripted ReadText results; after the script runs out it
// keeps returning the last one. If gate is set every read waits on it.
type fakeSource struct {
	mu     sync.Mutex
	script []readResult
	reads  int
	gate   chan struct{}
	watch  chan struct{}
}

func newFakeSource(script ...readResult) *fakeSource {
	return &fakeSource{script: script, watch: make(chan struct{}, 1)}
}

func (f *fakeSource) ReadText() (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.reads, len(f.script)-1)
	f.reads++
	r := f.script[i]
	return r.text, r.err
}

func (f *fakeSource) Watch() <-chan struct{} { return f.watch }

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type eventPeer struct {
	ch chan hub.Event
}

func (p *eventPeer) ID() string         { return "test" }
func (p *eventPeer) Info() hub.PeerInfo { return hub.PeerInfo{ID: "test"} }
func (p *eventPeer) Send(ev hub.Event)  { p.ch <- ev }

func setup(t *testing.T, src *fakeSource) (*Detector, *history.Store, *eventPeer) {
	t.Helper()
	store := history.New(history.Options{})
	h := hub.New()
	peer := &eventPeer{ch: make(chan hub.Event, 16)}
	h.Register(peer)
	d := New(src, store, h, Config{RetryDelay: time.Millisecond, PollInterval: -1})
	return d, store, peer
}

func TestCaptureNewText(t *testing.T) {
	src := newFakeSource(readResult{text: "hello"})
	d, store, peer := setup(t, src)

	require.True(t, d.Signal(context.Background()))
	d.Wait()

	require.Equal(t, 1, store.Len())
	assert.Equal(t, "hello", store.List()[0].Text)
	assert.EqualValues(t, 1, d.Stats().Captures.Load())

	select {
	case ev := <-peer.ch:
		assert.Equal(t, hub.KindChanged, ev.Kind)
		assert.Equal(t, "hello", ev.Entry.Text)
	default:
		t.Fatal("expected a changed event")
	}
}

func TestRetryWhileLocked(t *testing.T) {
	src := newFakeSource(
		readResult{err: clip.ErrLocked},
		readResult{err: clip.ErrLocked},
		readResult{text: "hello"},
	)
	d, store, _ := setup(t, src)

	d.Signal(context.Background())
	d.Wait()

	assert.Equal(t, 3, src.readCount())
	require.Equal(t, 1, store.Len())
	assert.Equal(t, "hello", store.List()[0].Text)
	assert.EqualValues(t, 2, d.Stats().LockRetries.Load())
	assert.Zero(t, d.Stats().Failures.Load())
}

func TestGiveUpWhenLockPersists(t *testing.T) {
	src := newFakeSource(readResult{err: clip.ErrLocked})
	d, store, _ := setup(t, src)

	d.Signal(context.Background())
	d.Wait()

	assert.Equal(t, DefaultAttempts, src.readCount())
	assert.Zero(t, store.Len())
	assert.EqualValues(t, 1, d.Stats().Failures.Load())
}

func TestOtherErrorNotRetried(t *testing.T) {
	src := newFakeSource(readResult{err: errors.New("boom")}, readResult{text: "late"})
	d, store, _ := setup(t, src)

	d.Signal(context.Background())
	d.Wait()

	assert.Equal(t, 1, src.readCount())
	assert.Zero(t, store.Len())
	assert.EqualValues(t, 1, d.Stats().Failures.Load())
}

func TestNoTextIsNoop(t *testing.T) {
	src := newFakeSource(readResult{err: clip.ErrNoText})
	d, store, peer := setup(t, src)

	d.Signal(context.Background())
	d.Wait()

	assert.Zero(t, store.Len())
	assert.Zero(t, d.Stats().Failures.Load())
	assert.Empty(t, peer.ch)
}

func TestSameTextNotAddedTwice(t *testing.T) {
	src := newFakeSource(readResult{text: "same"})
	d, store, peer := setup(t, src)

	for range 3 {
		d.Signal(context.Background())
		d.Wait()
	}

	assert.Equal(t, 1, store.Len())
	assert.EqualValues(t, 1, d.Stats().Captures.Load())
	assert.EqualValues(t, 2, d.Stats().Duplicates.Load())
	assert.Len(t, peer.ch, 1)
}

func TestSignalDroppedWhileProcessing(t *testing.T) {
	src := newFakeSource(readResult{text: "slow"})
	src.gate = make(chan struct{})
	d, store, _ := setup(t, src)

	require.True(t, d.Signal(context.Background()))
	assert.False(t, d.Signal(context.Background()))
	assert.False(t, d.Signal(context.Background()))

	close(src.gate)
	d.Wait()

	assert.Equal(t, 1, src.readCount())
	assert.Equal(t, 1, store.Len())
	assert.EqualValues(t, 2, d.Stats().Dropped.Load())

	// The guard is released once the pass completes.
	assert.True(t, d.Signal(context.Background()))
	d.Wait()
}

func TestCancelDuringBackoff(t *testing.T) {
	src := newFakeSource(readResult{err: clip.ErrLocked})
	store := history.New(history.Options{})
	d := New(src, store, hub.New(), Config{RetryDelay: time.Hour, PollInterval: -1})

	ctx, cancel := context.WithCancel(context.Background())
	d.Signal(ctx)
	cancel()
	d.Wait()

	assert.Equal(t, 1, src.readCount())
	assert.Zero(t, d.Stats().Failures.Load())
}

func TestRunReactsToWatchAndPoll(t *testing.T) {
	src := newFakeSource(readResult{text: "first"})
	store := history.New(history.Options{})
	h := hub.New()
	peer := &eventPeer{ch: make(chan hub.Event, 16)}
	h.Register(peer)
	d := New(src, store, h, Config{RetryDelay: time.Millisecond, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case ev := <-peer.ch:
		assert.Equal(t, "first", ev.Entry.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no capture at startup")
	}

	src.mu.Lock()
	src.script = []readResult{{text: "second"}}
	src.reads = 0
	src.mu.Unlock()
	src.watch <- struct{}{}

	select {
	case ev := <-peer.ch:
		assert.Equal(t, "second", ev.Entry.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no capture after change")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"second", "first"}, []string{store.List()[0].Text, store.List()[1].Text})
}
