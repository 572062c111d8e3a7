package tlsconf

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicKey(t *testing.T) {
	a, err := New("secret")
	require.NoError(t, err)
	b, err := New("secret")
	require.NoError(t, err)
	c, err := New("other")
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestEmptyPassphraseUsesDefault(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	b, err := New(DefaultPassphrase)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

// handshake runs one TLS handshake between server and client configs.
func handshake(t *testing.T, server, client *tls.Config) error {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", server)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = c.(*tls.Conn).Handshake()
		_ = c.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	tc := tls.Client(conn, client)
	defer tc.Close()
	return tc.Handshake()
}

func TestPinnedHandshake(t *testing.T) {
	server, err := New("secret")
	require.NoError(t, err)
	same, err := New("secret")
	require.NoError(t, err)
	wrong, err := New("guess")
	require.NoError(t, err)

	assert.NoError(t, handshake(t, server.Server, same.Client))
	assert.Error(t, handshake(t, server.Server, wrong.Client))
}
