// Package ipc provides the local socket used by CLI tools (list, search,
// copy, show, status) to reach a running clipstash daemon.
//
// The channel is plain gRPC over a Unix domain socket (a named pipe on
// Windows), serving the same HistoryService as the optional TCP listener.
// Callers on this socket are trusted: it is only reachable by the owner.
package ipc

import (
	"context"
	"net"
	"os"
	"time"
)

// probeTimeout bounds the IsRunning dial.
const probeTimeout = 500 * time.Millisecond

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/clipstash.sock, else $TMPDIR/clipstash.sock
//   - macOS:   $TMPDIR/clipstash.sock
//   - Windows: \\.\pipe\clipstash
//
// $CLIPSTASH_SOCKET overrides the path. On Windows it must name a pipe.
func SocketPath() string {
	if s := os.Getenv("CLIPSTASH_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a dial-and-close; no data is exchanged.
func IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	c, err := DialContext(ctx)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the IPC socket path, removing any stale
// socket file left by a crashed run.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if err := prepare(path); err != nil {
		return nil, err
	}
	return listenIPC(path)
}

// Dial connects to the IPC socket.
func Dial() (net.Conn, error) {
	return DialContext(context.Background())
}

// DialContext connects to the IPC socket, giving up when ctx is done.
func DialContext(ctx context.Context) (net.Conn, error) {
	return dialIPC(ctx, SocketPath())
}
