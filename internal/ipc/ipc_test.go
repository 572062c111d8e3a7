//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("CLIPSTASH_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())
}

func TestSocketPathXDG(t *testing.T) {
	t.Setenv("CLIPSTASH_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/clipstash.sock", SocketPath())
}

func TestListenDialIsRunning(t *testing.T) {
	// Unix socket paths are length-limited; keep the name short.
	path := filepath.Join(t.TempDir(), "c.sock")
	t.Setenv("CLIPSTASH_SOCKET", path)

	assert.False(t, IsRunning())

	ln, err := Listen()
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	assert.True(t, IsRunning())
	require.NoError(t, ln.Close())
}

func TestListenSocketIsOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.sock")
	t.Setenv("CLIPSTASH_SOCKET", path)

	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	t.Setenv("CLIPSTASH_SOCKET", path)

	old, err := net.Listen("unix", path)
	require.NoError(t, err)
	old.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, old.Close())
	_, err = os.Lstat(path)
	require.NoError(t, err, "stale socket file should remain after close")

	ln, err := Listen()
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestListenRefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.sock")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	t.Setenv("CLIPSTASH_SOCKET", path)

	_, err := Listen()
	assert.ErrorContains(t, err, "not a socket")
}
