//go:build windows

package clip

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
//
// static LRESULT CALLBACK clipstash_wnd_proc(HWND hwnd, UINT msg, WPARAM wp, LPARAM lp) {
//     if (msg == WM_CLIPBOARDUPDATE) {
//         PostMessage(hwnd, WM_APP + 1, 0, 0);
//         return 0;
//     }
//     return DefWindowProc(hwnd, msg, wp, lp);
// }
//
// static HWND clipstash_listen() {
//     WNDCLASS wc = {0};
//     wc.lpfnWndProc   = clipstash_wnd_proc;
//     wc.hInstance     = GetModuleHandle(NULL);
//     wc.lpszClassName = "ClipstashListener";
//     RegisterClass(&wc);
//     HWND hwnd = CreateWindowEx(0, "ClipstashListener", NULL, 0,
//         0, 0, 0, 0, HWND_MESSAGE, NULL, GetModuleHandle(NULL), NULL);
//     if (hwnd != NULL) {
//         AddClipboardFormatListener(hwnd);
//     }
//     return hwnd;
// }
//
// // Drains the listener queue; returns 1 if any update was seen.
// static int clipstash_drain(HWND hwnd) {
//     MSG msg;
//     int changed = 0;
//     while (PeekMessage(&msg, hwnd, 0, 0, PM_REMOVE)) {
//         if (msg.message == WM_APP + 1) { changed = 1; }
//         TranslateMessage(&msg);
//         DispatchMessage(&msg);
//     }
//     return changed;
// }
//
// static int clipstash_busy() {
//     return GetOpenClipboardWindow() != NULL;
// }
import "C"

import (
	"log/slog"
	"runtime"
	"time"

	"golang.design/x/clipboard"
)

const drainInterval = 50 * time.Millisecond

// New returns the Win32 backend. Change notifications come from
// AddClipboardFormatListener; ReadText reports ErrLocked while another
// process has the clipboard open.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewHeadless()
	}
	n := newNative("Windows clipboard")
	n.busy = func() bool { return C.clipstash_busy() != 0 }

	ready := make(chan C.HWND)
	go func() {
		// The message queue belongs to the thread that created the window.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		hwnd := C.clipstash_listen()
		ready <- hwnd
		if hwnd == nil {
			return
		}
		n.every(drainInterval, func() bool { return C.clipstash_drain(hwnd) != 0 })
	}()
	if <-ready == nil {
		slog.Warn("clipboard listener unavailable, relying on polling")
	}
	return n
}
