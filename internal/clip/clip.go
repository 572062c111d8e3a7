// Package clip reads and writes text on the system clipboard and reports
// when it changes.
//
//	clip_native.go    shared text I/O over golang.design/x/clipboard
//	clip_darwin.go    NSPasteboard changeCount sampling (cgo)
//	clip_windows.go   AddClipboardFormatListener plus open-clipboard lock probe
//	clip_linux.go     clipboard.Watch on X11
//	clip_headless.go  in-memory Headless, used without a display and in tests
package clip

import "errors"

var (
	// ErrNoText is returned by ReadText when the clipboard holds no text flavor.
	ErrNoText = errors.New("clipboard has no text")

	// ErrLocked is returned by ReadText when another process currently owns the
	// clipboard. The condition is transient; callers may retry.
	ErrLocked = errors.New("clipboard locked")
)

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ReadText returns the current text on the clipboard. It returns ErrNoText
	// if the clipboard is empty or holds only non-text content, and ErrLocked
	// if the clipboard is momentarily unavailable.
	ReadText() (string, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// may have changed. Signals coalesce and the channel is never closed, so
	// the caller must call ReadText to learn what changed.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// notify performs a non-blocking send on a 1-buffered watch channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
