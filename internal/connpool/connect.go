//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: root connect.go (ooni/probe-cli, rbmk-project/rbmk
// dialer lineage), generalized to the Connect scan type (§4.5: "the
// OS TCP stack performs the three-way handshake").
//

package connpool

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/doublegate/ProRT-IP-sub016"
)

// Dialer abstracts [*net.Dialer]'s DialContext behavior so tests can
// substitute a fake without opening real sockets.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectFunc returns a new [*ConnectFunc] dialing with dialer. A
// nil dialer defaults to &net.Dialer{}.
func NewConnectFunc(cfg *prort.Config, dialer Dialer, network string) *ConnectFunc {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &ConnectFunc{
		Dialer:        dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        cfg.Logger,
		Network:       network,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc performs the Connect scan's probe: a full OS-mediated
// TCP (or UDP) dial to a single [netip.AddrPort]. A successful dial
// reports state Open; ECONNREFUSED reports Closed; a timeout reports
// Filtered (§4.5).
//
// All fields are safe to modify after construction but before first
// use. Fields must not be mutated concurrently with calls to Call.
type ConnectFunc struct {
	// Dialer is the underlying dialer. Set by [NewConnectFunc].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier prort.ErrClassifier

	// Logger is the [prort.SLogger] to use.
	Logger prort.SLogger

	// Network is the network to use (either "tcp" or "udp").
	Network string

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ prort.Func[netip.AddrPort, net.Conn] = &ConnectFunc{}

// Call dials address, returning either a valid [net.Conn] or an
// error, never both.
func (op *ConnectFunc) Call(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(op.Network, address.String(), t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, op.Network, address.String())
	op.logConnectDone(op.Network, address.String(), t0, deadline, conn, err)
	return conn, err
}

func (op *ConnectFunc) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (op *ConnectFunc) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
