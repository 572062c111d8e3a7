// Package tlsconf derives the daemon's TLS identity from the shared token.
//
// The ECDSA P-256 key is derived with HKDF, so the daemon and its clients
// compute the same key from the same token. The certificate wrapping it is
// throwaway: clients skip chain verification and instead pin the server's
// public key against the one they derived themselves. A wrong token yields a
// different key and the handshake fails.
//
//	HKDF-SHA256(ikm=token, salt="clipstash-tls-v1", info="p256")
//	→ 64 bytes → reduced into [1, N-1] → private scalar
package tlsconf

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// DefaultPassphrase is used when no token is configured.
const DefaultPassphrase = "clipstash"

const serverName = "clipstash"

// Credentials is the TLS material for one token.
type Credentials struct {
	// Server configures the daemon's TCP listener. ALPN offers h2 for gRPC and
	// http/1.1 for the HTTP gateway, which share the port through cmux.
	Server *tls.Config
	// Client verifies the daemon by public key; use it for HTTP clients.
	Client *tls.Config

	spki []byte
}

// New derives Credentials from passphrase (DefaultPassphrase if empty).
func New(passphrase string) (*Credentials, error) {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	key, err := deriveKey(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal public key: %w", err)
	}
	der, err := selfSigned(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: certificate: %w", err)
	}

	return &Credentials{
		Server: &tls.Config{
			Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS13,
		},
		Client: &tls.Config{
			InsecureSkipVerify:    true, //nolint:gosec // the peer key is pinned below
			ServerName:            serverName,
			MinVersion:            tls.VersionTLS13,
			VerifyPeerCertificate: pinned(spki),
		},
		spki: spki,
	}, nil
}

// GRPC returns transport credentials for gRPC clients of the daemon.
func (c *Credentials) GRPC() credentials.TransportCredentials {
	return credentials.NewTLS(c.Client.Clone())
}

// Fingerprint is the hex SHA-256 of the pinned public key.
func (c *Credentials) Fingerprint() string {
	sum := sha256.Sum256(c.spki)
	return hex.EncodeToString(sum[:])
}

// pinned accepts a peer only if its leaf certificate carries want.
func pinned(want []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(raw [][]byte, _ [][]*x509.Certificate) error {
		if len(raw) == 0 {
			return errors.New("tlsconf: no peer certificate")
		}
		cert, err := x509.ParseCertificate(raw[0])
		if err != nil {
			return fmt.Errorf("tlsconf: parse peer certificate: %w", err)
		}
		got, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
		if err != nil {
			return fmt.Errorf("tlsconf: marshal peer key: %w", err)
		}
		if !bytes.Equal(got, want) {
			return errors.New("tlsconf: peer key does not match token")
		}
		return nil
	}
}

func deriveKey(passphrase string) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, []byte(passphrase), []byte("clipstash-tls-v1"), []byte("p256"))
	seed := make([]byte, 64)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}

	curve := elliptic.P256()
	nMinus1 := new(big.Int).Sub(curve.Params().N, big.NewInt(1))
	d := new(big.Int).SetBytes(seed)
	d.Mod(d, nMinus1).Add(d, big.NewInt(1))

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}

// selfSigned wraps key in a long-lived certificate; only the key matters.
func selfSigned(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 120))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(50, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
}
