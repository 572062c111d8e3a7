//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger clipstash_change_count() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

// changeCountInterval is how often the pasteboard change counter is sampled.
// Reading the counter does not copy the contents.
const changeCountInterval = 100 * time.Millisecond

// New returns the NSPasteboard backend.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewHeadless()
	}
	n := newNative("macOS NSPasteboard")
	last := C.clipstash_change_count()
	go n.every(changeCountInterval, func() bool {
		cc := C.clipstash_change_count()
		if cc == last {
			return false
		}
		last = cc
		return true
	})
	return n
}
