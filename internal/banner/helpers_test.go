// SPDX-License-Identifier: GPL-3.0-or-later

package banner

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
)

// funcConn is a minimal net.Conn test double: every method defaults to a
// no-op/zero-value unless the corresponding Func field is set; Read
// defaults to (0, io.EOF) so a bounded read on an unconfigured conn ends.
type funcConn struct {
	ReadFunc         func(b []byte) (int, error)
	WriteFunc        func(b []byte) (int, error)
	CloseFunc        func() error
	LocalAddrFunc    func() net.Addr
	RemoteAddrFunc   func() net.Addr
	SetDeadlineFunc  func(time.Time) error
	SetReadDeadFunc  func(time.Time) error
	SetWriteDeaFunc  func(time.Time) error
}

func newMinimalConn() *funcConn { return &funcConn{} }

func (c *funcConn) Read(b []byte) (int, error) {
	if c.ReadFunc != nil {
		return c.ReadFunc(b)
	}
	return 0, io.EOF
}

func (c *funcConn) Write(b []byte) (int, error) {
	if c.WriteFunc != nil {
		return c.WriteFunc(b)
	}
	return len(b), nil
}

func (c *funcConn) Close() error {
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}

func (c *funcConn) LocalAddr() net.Addr {
	if c.LocalAddrFunc != nil {
		return c.LocalAddrFunc()
	}
	return nil
}

func (c *funcConn) RemoteAddr() net.Addr {
	if c.RemoteAddrFunc != nil {
		return c.RemoteAddrFunc()
	}
	return nil
}

func (c *funcConn) SetDeadline(t time.Time) error {
	if c.SetDeadlineFunc != nil {
		return c.SetDeadlineFunc(t)
	}
	return nil
}

func (c *funcConn) SetReadDeadline(t time.Time) error {
	if c.SetReadDeadFunc != nil {
		return c.SetReadDeadFunc(t)
	}
	return nil
}

func (c *funcConn) SetWriteDeadline(t time.Time) error {
	if c.SetWriteDeaFunc != nil {
		return c.SetWriteDeaFunc(t)
	}
	return nil
}

// funcTLSConn is a test double for [TLSConn].
type funcTLSConn struct {
	*funcConn
	ConnectionStateFunc  func() tls.ConnectionState
	HandshakeContextFunc func(ctx context.Context) error
}

func (c *funcTLSConn) ConnectionState() tls.ConnectionState {
	if c.ConnectionStateFunc != nil {
		return c.ConnectionStateFunc()
	}
	return tls.ConnectionState{}
}

func (c *funcTLSConn) HandshakeContext(ctx context.Context) error {
	if c.HandshakeContextFunc != nil {
		return c.HandshakeContextFunc(ctx)
	}
	return nil
}

// funcTLSEngine is a test double for [TLSEngine].
type funcTLSEngine struct {
	ClientFunc func(conn net.Conn, config *tls.Config) TLSConn
	NameFunc   func() string
	ParrotFunc func() string
}

func (e *funcTLSEngine) Client(conn net.Conn, config *tls.Config) TLSConn {
	return e.ClientFunc(conn, config)
}

func (e *funcTLSEngine) Name() string {
	if e.NameFunc != nil {
		return e.NameFunc()
	}
	return "mock"
}

func (e *funcTLSEngine) Parrot() string {
	if e.ParrotFunc != nil {
		return e.ParrotFunc()
	}
	return ""
}

func newMockTLSEngine(conn TLSConn) *funcTLSEngine {
	return &funcTLSEngine{
		ClientFunc: func(net.Conn, *tls.Config) TLSConn { return conn },
	}
}

// capturedRecord is one structured log call captured by [capturingLogger].
// Callers in this package always pass [slog.Attr] values as args, so Attrs
// lets tests inspect a specific attribute the same way a real slog.Record
// would.
type capturedRecord struct {
	Level   string
	Message string
	Args    []any
}

func (r capturedRecord) Attrs(fn func(attr slog.Attr) bool) {
	for _, a := range r.Args {
		if attr, ok := a.(slog.Attr); ok {
			if !fn(attr) {
				return
			}
		}
	}
}

type capturingLogger struct {
	records *[]capturedRecord
}

func newCapturingLogger() (prort.SLogger, *[]capturedRecord) {
	records := &[]capturedRecord{}
	return &capturingLogger{records: records}, records
}

func (l *capturingLogger) Debug(msg string, args ...any) {
	*l.records = append(*l.records, capturedRecord{Level: "debug", Message: msg, Args: args})
}

func (l *capturingLogger) Info(msg string, args ...any) {
	*l.records = append(*l.records, capturedRecord{Level: "info", Message: msg, Args: args})
}

func (l *capturingLogger) Warn(msg string, args ...any) {
	*l.records = append(*l.records, capturedRecord{Level: "warn", Message: msg, Args: args})
}
