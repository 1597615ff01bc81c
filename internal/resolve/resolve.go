//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: connect.go's Config-driven, SLogger-observed Func shape.
//

// Package resolve implements the hostname lookup the target expander
// performs before enumerating a [target.KindHostname] expression
// (§4.1).
package resolve

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
)

// LookupAddrer abstracts [*net.Resolver]'s LookupNetIP behavior so the
// resolver can be unit tested with a fake implementation.
type LookupAddrer interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolver resolves hostnames to addresses, implementing
// [target.Resolver].
//
// All fields are safe to modify after construction but before first
// use. Fields must not be mutated concurrently with calls to
// [Resolver.LookupAddrs].
type Resolver struct {
	// Lookup is the underlying resolver. Set by [New] to [*net.Resolver].
	Lookup LookupAddrer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier prort.ErrClassifier

	// Logger is the [prort.SLogger] to use.
	Logger prort.SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// New returns a [*Resolver] with the default [*net.Resolver] and the
// plumbing from cfg.
func New(cfg *prort.Config) *Resolver {
	return &Resolver{
		Lookup:        &net.Resolver{},
		ErrClassifier: cfg.ErrClassifier,
		Logger:        cfg.Logger,
		TimeNow:       cfg.TimeNow,
	}
}

// LookupAddrs resolves hostname to its IPv4 and IPv6 addresses,
// implementing [target.Resolver]. A hostname with no records returns a
// non-nil error; the caller (the target expander) treats this as
// [target.ErrUnresolvable] and skips the target without aborting the
// scan (§4.1).
func (r *Resolver) LookupAddrs(ctx context.Context, hostname string) ([]netip.Addr, error) {
	t0 := r.TimeNow()
	r.Logger.Info("resolveStart",
		slog.String("hostname", hostname),
		slog.Time("t", t0),
	)

	addrs, err := r.Lookup.LookupNetIP(ctx, "ip", hostname)

	r.Logger.Info("resolveDone",
		slog.String("hostname", hostname),
		slog.Int("addrCount", len(addrs)),
		slog.Any("err", err),
		slog.String("errClass", r.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", r.TimeNow()),
	)

	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, net.UnknownNetworkError("no addresses for " + hostname)
	}
	return addrs, nil
}
