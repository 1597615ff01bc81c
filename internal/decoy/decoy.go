//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: root config.go's Rand-as-dependency idiom (decoy
// ordering is explicitly named there), generalized into a decoy-source
// selection and interleave-ordering helper wired into the live send
// path (§4.15, internal/scheduler.StatelessDriver).
//

// Package decoy selects decoy source addresses and interleave order for
// the raw send path, so that every real probe frame goes out alongside
// N bit-identical-but-for-source decoy frames at a random position in
// the send batch (C15).
package decoy

import (
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
)

// ErrNoDecoys is returned by [NewComposer] when Count is positive but no
// usable decoy addresses were supplied.
var ErrNoDecoys = errors.New("decoy: no usable decoy addresses configured")

// ErrReservedAddress is returned by [NewComposer] when a candidate decoy
// address falls in reserved IP space (§4.15: "excluding reserved IP
// space").
var ErrReservedAddress = errors.New("decoy: address is in reserved IP space")

// IsReserved reports whether addr is unsuitable as a decoy source:
// loopback, link-local, multicast, unspecified, or private space
// (RFC 1918, RFC 4193); documentation ranges are not treated as
// reserved. Spoofing traffic from these ranges either can't
// route back through the public path a real scan traverses, or
// immediately marks the frame as bogus to a careful observer (§4.15).
func IsReserved(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	a := addr.Unmap()
	return a.IsLoopback() ||
		a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() ||
		a.IsInterfaceLocalMulticast() ||
		a.IsMulticast() ||
		a.IsUnspecified() ||
		a.IsPrivate()
}

// Composer selects decoy source addresses and a random interleave
// position for each probing round (§4.15).
type Composer struct {
	decoys []netip.Addr
	count  int
	rnd    *rand.Rand
}

// NewComposer validates decoys, rejecting any in reserved space, and
// returns a [*Composer] producing count decoy sources per real probe.
// count == 0 is valid; Sources then always returns nil. rnd supplies
// both decoy selection and interleave-position randomness (root
// Config.Rand, per its doc comment).
func NewComposer(decoys []netip.Addr, count int, rnd *rand.Rand) (*Composer, error) {
	for _, d := range decoys {
		if IsReserved(d) {
			return nil, fmt.Errorf("%w: %s", ErrReservedAddress, d)
		}
	}
	if count > 0 && len(decoys) == 0 {
		return nil, ErrNoDecoys
	}
	return &Composer{decoys: decoys, count: count, rnd: rnd}, nil
}

// Count reports the number of decoy frames produced per real probe.
func (c *Composer) Count() int { return c.count }

// Sources returns c.count decoy source addresses, drawn uniformly at
// random (with replacement) from the configured decoy set.
func (c *Composer) Sources() []netip.Addr {
	if c.count == 0 {
		return nil
	}
	out := make([]netip.Addr, c.count)
	for i := range out {
		out[i] = c.decoys[c.rnd.Intn(len(c.decoys))]
	}
	return out
}

// Interleave returns the indices of 1+len(decoySources) frames (index 0
// is always the real frame, decoys occupy indices 1.. in the order
// Sources returned them) permuted into the random send order for one
// round (§4.15: "decoys are interleaved in a random position each
// round"). The caller sends frames in the returned order; nothing
// downstream needs to know which position the real frame ended up in,
// since only the real frame's reply can ever reach this host — replies
// apparently from a decoy source are never produced, by construction,
// because nothing spoofed as this scanner's source exists to receive
// them (§4.15: "the composer never attributes responses to decoys").
func (c *Composer) Interleave(decoyCount int) []int {
	order := make([]int, decoyCount+1)
	for i := range order {
		order[i] = i
	}
	c.rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
