//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: internal/target/portset.go's sorted-slice-plus-binary-
// search idiom, generalized to sorted CIDR ranges per provider (§4.13).
//

// Package cdn classifies destination addresses against known CDN/WAF
// provider CIDR ranges via binary search (C13).
package cdn

import (
	"net/netip"
	"sort"
)

// Range is one [Lo, Hi] inclusive address range belonging to a
// provider, derived from a CIDR prefix.
type Range struct {
	Lo, Hi netip.Addr
	Name   string
}

// RangeFromPrefix returns the [Range] a CIDR prefix covers.
func RangeFromPrefix(name string, prefix netip.Prefix) Range {
	return Range{Lo: prefix.Masked().Addr(), Hi: lastAddr(prefix), Name: name}
}

func lastAddr(p netip.Prefix) netip.Addr {
	base := p.Masked().Addr()
	bits := base.BitLen()
	hostBits := bits - p.Bits()
	buf := base.AsSlice()
	// Set every host bit to 1, starting from the least significant bit.
	for i := 0; i < hostBits; i++ {
		byteIdx := len(buf) - 1 - i/8
		bitIdx := uint(i % 8)
		buf[byteIdx] |= 1 << bitIdx
	}
	addr, _ := netip.AddrFromSlice(buf)
	if base.Is4() {
		addr = addr.Unmap()
	}
	return addr
}

// Classifier holds a sorted set of provider CIDR ranges and answers
// "which provider, if any, owns this address" in O(log n) (§4.13).
type Classifier struct {
	ranges []Range
}

// NewClassifier builds a [*Classifier] from prefixes, sorting them by
// starting address. Overlapping ranges from different providers are
// not expected in practice (real CDN allocations don't overlap); when
// they do, Classify checks only the range with the greatest starting
// address not above the queried address, so an address outside that
// range reports "" even if an earlier, wider range contains it.
func NewClassifier(ranges []Range) *Classifier {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Lo.Less(sorted[j].Lo)
	})
	return &Classifier{ranges: sorted}
}

// Classify returns the provider name owning addr, or "" if addr falls
// outside every configured range.
func (c *Classifier) Classify(addr netip.Addr) string {
	// Binary search for the last range whose Lo <= addr, then check
	// whether addr also falls at or below that range's Hi.
	i := sort.Search(len(c.ranges), func(i int) bool {
		return addr.Less(c.ranges[i].Lo)
	})
	// c.ranges[i] is the first range with Lo > addr; the candidate is
	// the one immediately before it.
	if i == 0 {
		return ""
	}
	cand := c.ranges[i-1]
	if addr.Compare(cand.Hi) <= 0 && !addr.Less(cand.Lo) {
		return cand.Name
	}
	return ""
}

// Len reports the number of configured ranges.
func (c *Classifier) Len() int { return len(c.ranges) }
