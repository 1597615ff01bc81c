// SPDX-License-Identifier: GPL-3.0-or-later

package banner

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewGrabFunc defaults MaxBytes and ReadTimeout and leaves TLS disabled.
func TestNewGrabFunc(t *testing.T) {
	g := NewGrabFunc(prort.NewConfig())

	require.NotNil(t, g)
	assert.Equal(t, DefaultMaxBytes, g.MaxBytes)
	assert.Equal(t, DefaultReadTimeout, g.ReadTimeout)
	assert.Nil(t, g.TLS)
}

// Call reads up to MaxBytes and reports no truncation for a short banner.
func TestGrabFuncShortBanner(t *testing.T) {
	g := NewGrabFunc(prort.NewConfig())
	g.MaxBytes = 64

	payload := []byte("SSH-2.0-OpenSSH_8.2p1\r\n")
	offset := 0
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		if offset >= len(payload) {
			return 0, net.ErrClosed
		}
		n := copy(b, payload[offset:])
		offset += n
		return n, nil
	}

	result, err := g.Call(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, payload, result.Data)
	assert.False(t, result.Truncated)
	assert.Nil(t, result.Cert)
}

// Call truncates a banner longer than MaxBytes and reports Truncated.
func TestGrabFuncTruncatesLongBanner(t *testing.T) {
	g := NewGrabFunc(prort.NewConfig())
	g.MaxBytes = 8

	payload := []byte("0123456789ABCDEF")
	offset := 0
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		n := copy(b, payload[offset:])
		offset += n
		return n, nil
	}

	result, err := g.Call(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, payload[:8], result.Data)
	assert.True(t, result.Truncated)
}

// Call sets a read deadline derived from ReadTimeout.
func TestGrabFuncSetsReadDeadline(t *testing.T) {
	g := NewGrabFunc(prort.NewConfig())
	g.MaxBytes = 4
	g.ReadTimeout = 5 * time.Second

	var gotDeadline time.Time
	conn := newMinimalConn()
	conn.SetReadDeadFunc = func(t time.Time) error {
		gotDeadline = t
		return nil
	}
	conn.ReadFunc = func(b []byte) (int, error) {
		return copy(b, "ABCD"), nil
	}

	before := time.Now()
	_, err := g.Call(context.Background(), conn)
	require.NoError(t, err)
	assert.True(t, gotDeadline.After(before))
}

// Call performs the TLS handshake first and summarizes the peer cert when
// TLS is configured.
func TestGrabFuncWithTLSExtractsCert(t *testing.T) {
	cfg := prort.NewConfig()
	der := mustSelfSignedCertDER(t, "banner-test.example")

	mockTLSConn := &funcTLSConn{
		funcConn: newMinimalConn(),
		ConnectionStateFunc: func() tls.ConnectionState {
			cert, err := x509.ParseCertificate(der)
			require.NoError(t, err)
			return tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
		},
		HandshakeContextFunc: func(ctx context.Context) error { return nil },
	}

	tlsFn := NewTLSHandshakeFunc(cfg, &tls.Config{ServerName: "banner-test.example"})
	tlsFn.Engine = newMockTLSEngine(mockTLSConn)

	g := NewGrabFunc(cfg)
	g.TLS = tlsFn
	g.MaxBytes = 16

	result, err := g.Call(context.Background(), newMinimalConn())
	require.NoError(t, err)
	require.NotNil(t, result.Cert)
	assert.Equal(t, "CN=banner-test.example", result.Cert.Subject)
	assert.Equal(t, "ECDSA", result.Cert.PublicKeyAlgorithm)
}

// mustSelfSignedCertDER builds a minimal self-signed ECDSA certificate for
// tests that need a parseable [*x509.Certificate].
func mustSelfSignedCertDER(t *testing.T, commonName string) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{commonName},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der
}
