// SPDX-License-Identifier: GPL-3.0-or-later

package connpool

import (
	"context"
	"net"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
)

// funcDialer is a [Dialer] backed by a plain function, letting tests
// avoid opening real sockets.
type funcDialer struct {
	DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)
}

func (d *funcDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.DialContextFunc(ctx, network, address)
}

// funcConn is a [net.Conn] whose methods delegate to per-instance
// function fields, defaulting to inert no-ops when unset.
type funcConn struct {
	ReadFunc         func([]byte) (int, error)
	WriteFunc        func([]byte) (int, error)
	CloseFunc        func() error
	LocalAddrFunc    func() net.Addr
	RemoteAddrFunc   func() net.Addr
	SetDeadlineFunc  func(time.Time) error
	SetReadDeadFunc  func(time.Time) error
	SetWriteDeaFunc  func(time.Time) error
}

func newMinimalConn() *funcConn {
	return &funcConn{}
}

func (c *funcConn) Read(b []byte) (int, error) {
	if c.ReadFunc != nil {
		return c.ReadFunc(b)
	}
	return 0, nil
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
	return &net.TCPAddr{}
}

func (c *funcConn) RemoteAddr() net.Addr {
	if c.RemoteAddrFunc != nil {
		return c.RemoteAddrFunc()
	}
	return &net.TCPAddr{}
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

// capturingLogger records every log call for assertions.
type capturingLogger struct {
	records *[]capturedRecord
}

type capturedRecord struct {
	Level   string
	Message string
	Args    []any
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
