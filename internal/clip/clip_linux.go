//go:build linux

package clip

import (
	"context"
	"log/slog"

	"golang.design/x/clipboard"
)

// New returns the X11 clipboard backend, or Headless when no display is
// reachable. Init runs here and not in init() so that client-only commands
// never touch the display.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewHeadless()
	}
	n := newNative("X11 clipboard")

	ctx, cancel := context.WithCancel(context.Background())
	changes := clipboard.Watch(ctx, clipboard.FmtText)
	go func() {
		<-n.done
		cancel()
	}()
	go func() {
		for range changes {
			notify(n.watchCh)
		}
	}()
	return n
}
