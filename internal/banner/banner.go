//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: httpbody.go's lazily-logged body wrapper and tls.go's
// certificate extraction, composed into the bounded banner read and TLS
// certificate summary described for the banner grabber (§4.12, C12): "for
// a CONNECTED slot: perform a bounded read (default 4 KB, 5 s deadline)...
// non-UTF-8 bytes are preserved verbatim for matching."
//

package banner

import (
	"context"
	"crypto/x509"
	"io"
	"net"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
)

// DefaultMaxBytes is the default cap on a grabbed banner (§4.12).
const DefaultMaxBytes = 4096

// DefaultReadTimeout is the default deadline for a banner read (§4.12).
const DefaultReadTimeout = 5 * time.Second

// Result is what a banner grab produces for one open, CONNECTED port.
type Result struct {
	// Data is the banner, truncated at MaxBytes. Bytes that are not valid
	// UTF-8 are kept as-is; matching against the probe database (C11) works
	// on the raw bytes, not a decoded string.
	Data []byte

	// Truncated reports whether Data was cut short by MaxBytes.
	Truncated bool

	// Cert is the peer certificate summary, set only when a TLS handshake
	// preceded the read (via [GrabFunc.TLS]).
	Cert *CertSummary
}

// CertSummary holds the peer certificate fields the probe engine and
// output writers care about (§4.12): subject, issuer, validity window,
// SANs, key algorithm & size, signature algorithm.
type CertSummary struct {
	Subject             string
	Issuer              string
	NotBefore           time.Time
	NotAfter            time.Time
	DNSNames            []string
	PublicKeyAlgorithm  string
	PublicKeyBits       int
	SignatureAlgorithm  string
}

// summarizeCert builds a [CertSummary] from the leaf certificate's raw DER
// bytes, returning nil if cert is empty or cannot be parsed.
func summarizeCert(der []byte) *CertSummary {
	if len(der) == 0 {
		return nil
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	bits := 0
	switch pub := cert.PublicKey.(type) {
	case interface{ Size() int }:
		bits = pub.Size() * 8
	}
	return &CertSummary{
		Subject:             cert.Subject.String(),
		Issuer:              cert.Issuer.String(),
		NotBefore:           cert.NotBefore,
		NotAfter:            cert.NotAfter,
		DNSNames:            cert.DNSNames,
		PublicKeyAlgorithm:  cert.PublicKeyAlgorithm.String(),
		PublicKeyBits:       bits,
		SignatureAlgorithm:  cert.SignatureAlgorithm.String(),
	}
}

// GrabFunc performs a bounded banner read on an open, CONNECTED port, with
// optional TLS cert extraction ahead of it (§4.12).
//
// All fields are safe to modify after construction but before first use.
type GrabFunc struct {
	// MaxBytes caps the number of bytes read. <= 0 uses [DefaultMaxBytes].
	MaxBytes int

	// ReadTimeout bounds how long the read may block. <= 0 uses
	// [DefaultReadTimeout].
	ReadTimeout time.Duration

	// TLS, when non-nil, is used to perform a TLS handshake before reading
	// the banner, and its peer certificate is summarized into the result.
	TLS *TLSHandshakeFunc

	ErrClassifier prort.ErrClassifier
	Logger        prort.SLogger
	TimeNow       func() time.Time
}

// NewGrabFunc returns a [*GrabFunc] reading at most [DefaultMaxBytes] with
// [DefaultReadTimeout], performing no TLS handshake. Set TLS explicitly to
// enable certificate extraction on canonical TLS ports (§4.12: 443, 465,
// 636, 993, 995, ...).
func NewGrabFunc(cfg *prort.Config) *GrabFunc {
	return &GrabFunc{
		MaxBytes:      DefaultMaxBytes,
		ReadTimeout:   DefaultReadTimeout,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        cfg.Logger,
		TimeNow:       cfg.TimeNow,
	}
}

var _ prort.Func[net.Conn, Result] = &GrabFunc{}

// Call grabs a banner from conn, optionally preceded by a TLS handshake.
func (g *GrabFunc) Call(ctx context.Context, conn net.Conn) (Result, error) {
	maxBytes := g.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	timeout := g.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	var cert *CertSummary
	reader := conn
	var wrapped io.ReadCloser

	if g.TLS != nil {
		tconn, err := g.TLS.Call(ctx, conn)
		if err != nil {
			return Result{}, err
		}
		state := tconn.ConnectionState()
		if len(state.PeerCertificates) > 0 {
			cert = summarizeCert(state.PeerCertificates[0].Raw)
		}
		wrapped = httpBodyWrap(readCloserFromConn(tconn), g.ErrClassifier,
			safeLocalAddr(conn), g.Logger, connNetwork(conn), safeRemoteAddr(conn), g.TimeNow)
	} else {
		wrapped = httpBodyWrap(readCloserFromConn(reader), g.ErrClassifier,
			safeLocalAddr(conn), g.Logger, connNetwork(conn), safeRemoteAddr(conn), g.TimeNow)
	}
	defer wrapped.Close()

	deadline := g.TimeNow().Add(timeout)
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(io.LimitReader(wrapped, int64(maxBytes)), buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		if n == 0 {
			return Result{Cert: cert}, err
		}
	}

	truncated := n == maxBytes
	return Result{Data: buf[:n], Truncated: truncated, Cert: cert}, nil
}

// readCloserFromConn adapts a net.Conn into an io.ReadCloser that does not
// close the underlying connection (the caller owns its lifecycle).
func readCloserFromConn(conn net.Conn) io.ReadCloser {
	return noCloseReader{conn}
}

type noCloseReader struct {
	io.Reader
}

func (noCloseReader) Close() error { return nil }

func safeLocalAddr(conn net.Conn) string {
	if a := conn.LocalAddr(); a != nil {
		return a.String()
	}
	return ""
}

func safeRemoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func connNetwork(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.Network()
	}
	return ""
}
