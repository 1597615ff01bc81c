// SPDX-License-Identifier: GPL-3.0-or-later

package target

import (
	"bufio"
	"context"
	"fmt"
	"net/netip"
	"os"
	"strings"
)

// Kind classifies a target expression's syntax.
type Kind int

// Target expression kinds (§3).
const (
	KindAddress Kind = iota
	KindCIDR
	KindRange
	KindHostname
	KindFile
)

// Resolver abstracts hostname-to-address resolution so the expander can
// be unit tested without a real DNS lookup. [internal/resolve.Resolver]
// satisfies this interface.
type Resolver interface {
	LookupAddrs(ctx context.Context, hostname string) ([]netip.Addr, error)
}

// Target is one address expression: a single address, a CIDR block, an
// inclusive range, a hostname, or a reference to a file of further
// expressions (§3). The original textual form is retained for
// reporting; expansion is immutable once performed.
type Target struct {
	Raw  string
	Kind Kind

	addr     netip.Addr
	prefix   netip.Prefix
	rangeLo  netip.Addr
	rangeHi  netip.Addr
	hostname string
}

// Parse classifies expr into a [Target] without performing any I/O
// (hostname resolution and file reads happen in [Target.Expand]).
//
// Fails with [ErrInvalidExpression] when expr's syntax is malformed.
func Parse(expr string) (Target, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Target{}, fmt.Errorf("%w: empty target expression", ErrInvalidExpression)
	}

	if strings.HasPrefix(expr, "file:") {
		return Target{Raw: expr, Kind: KindFile, hostname: strings.TrimPrefix(expr, "file:")}, nil
	}

	if idx := strings.Index(expr, "-"); idx > 0 && looksLikeRange(expr, idx) {
		lo, hi, err := parseAddrRange(expr, idx)
		if err != nil {
			return Target{}, err
		}
		return Target{Raw: expr, Kind: KindRange, rangeLo: lo, rangeHi: hi}, nil
	}

	if strings.Contains(expr, "/") {
		p, err := netip.ParsePrefix(expr)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
		}
		return Target{Raw: expr, Kind: KindCIDR, prefix: p}, nil
	}

	if addr, err := netip.ParseAddr(expr); err == nil {
		return Target{Raw: expr, Kind: KindAddress, addr: addr}, nil
	}

	return Target{Raw: expr, Kind: KindHostname, hostname: expr}, nil
}

// looksLikeRange reports whether the '-' at idx separates two address
// literals ("10.0.0.1-10.0.0.254") rather than being part of an IPv6
// literal's compressed-zero notation elsewhere in the string.
func looksLikeRange(expr string, idx int) bool {
	if _, err := netip.ParseAddr(expr[:idx]); err != nil {
		return false
	}
	_, err := netip.ParseAddr(expr[idx+1:])
	return err == nil
}

func parseAddrRange(expr string, idx int) (lo, hi netip.Addr, err error) {
	lo, err = netip.ParseAddr(expr[:idx])
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	hi, err = netip.ParseAddr(expr[idx+1:])
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return lo, hi, nil
}

// Expand resolves t into zero or more addressSource entries together
// with the hostname (if any) attributed to each. Resolution failures
// for a hostname target surface as [ErrUnresolvable] without aborting
// the caller's loop over other targets (§4.1).
func (t Target) Expand(ctx context.Context, resolver Resolver) ([]expandedSource, error) {
	switch t.Kind {
	case KindAddress:
		return []expandedSource{{source: singleAddress{addr: t.addr}, origExpr: t.Raw}}, nil

	case KindCIDR:
		return []expandedSource{{source: newAddressRangeFromPrefix(t.prefix), origExpr: t.Raw}}, nil

	case KindRange:
		r, err := newAddressRangeFromBounds(t.rangeLo, t.rangeHi)
		if err != nil {
			return nil, err
		}
		return []expandedSource{{source: r, origExpr: t.Raw}}, nil

	case KindHostname:
		addrs, err := resolver.LookupAddrs(ctx, t.hostname)
		if err != nil || len(addrs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvable, t.hostname)
		}
		return []expandedSource{{source: addressList{addrs: addrs}, origExpr: t.Raw, hostname: t.hostname}}, nil

	case KindFile:
		return expandFile(ctx, t.hostname, resolver)

	default:
		return nil, fmt.Errorf("%w: unknown target kind", ErrInvalidExpression)
	}
}

// expandedSource pairs an addressSource with the reporting metadata
// from the [Target] it came from.
type expandedSource struct {
	source   addressSource
	origExpr string
	hostname string
}

// expandFile reads path line by line, skipping blank lines and '#'
// comments, parsing and expanding each remaining line as its own
// target expression. A malformed or unresolvable line is skipped
// rather than aborting the whole file (§4.1: "other targets proceed");
// the skipped line is not reported as an error anywhere.
func expandFile(ctx context.Context, path string, resolver Resolver) ([]expandedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open target file %s: %v", ErrInvalidExpression, path, err)
	}
	defer f.Close()

	var out []expandedSource
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sub, err := Parse(line)
		if err != nil {
			continue
		}
		expanded, err := sub.Expand(ctx, resolver)
		if err != nil {
			continue
		}
		out = append(out, expanded...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading target file %s: %v", ErrInvalidExpression, path, err)
	}
	return out, nil
}
