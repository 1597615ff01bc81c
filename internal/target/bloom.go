// SPDX-License-Identifier: GPL-3.0-or-later

package target

import (
	"net/netip"

	"github.com/bits-and-blooms/bloom/v3"
)

// dedupMaterializeCap bounds how large an address source may be before
// address-level deduplication is skipped for it. Materializing a
// deduplicated address list costs O(n) memory; beyond this cap the
// bounded false-positive rate guaranteed by [newDedup] is no longer
// worth the memory a full materialization would cost, so such sources
// are left un-deduplicated (documented trade-off; see DESIGN.md).
const dedupMaterializeCap = 1 << 20

// dedup is a bounded Bloom filter used to coalesce addresses that
// appear in more than one target expression (§4.1). The false-positive
// rate is sized so that, over the expected total address count, the
// probability of a spurious collision is at most 2⁻²⁰.
type dedup struct {
	filter *bloom.BloomFilter
}

// newDedup returns a [dedup] sized for expectedAddrs addresses at a
// false-positive rate of 2⁻²⁰.
func newDedup(expectedAddrs uint64) *dedup {
	if expectedAddrs == 0 {
		expectedAddrs = 1
	}
	return &dedup{filter: bloom.NewWithEstimates(expectedAddrs, 1.0/(1<<20))}
}

// seen reports whether addr was already observed, recording it as seen
// either way (test-and-set).
func (d *dedup) seen(addr netip.Addr) bool {
	b := addr.As16()
	already := d.filter.Test(b[:])
	d.filter.Add(b[:])
	return already
}

// filterNew returns the subset of addrs not previously seen by d, in
// original order.
func (d *dedup) filterNew(addrs []netip.Addr) []netip.Addr {
	out := addrs[:0:0]
	for _, a := range addrs {
		if !d.seen(a) {
			out = append(out, a)
		}
	}
	return out
}
