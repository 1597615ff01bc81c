// SPDX-License-Identifier: GPL-3.0-or-later

package target

import "net/netip"

// addressSource produces the i-th address of one expanded target in
// deterministic order without materializing the full range, so that a
// /8 IPv4 block or a wide IPv6 range costs O(1) per lookup rather than
// O(n) memory (§4.1: "expansion is deterministic... decoupled from port
// iteration").
type addressSource interface {
	// Count returns the number of addresses this source expands to.
	Count() uint64
	// At returns the i-th address, 0 <= i < Count().
	At(i uint64) netip.Addr
}

// singleAddress is the trivial addressSource for one literal address.
type singleAddress struct {
	addr netip.Addr
}

func (s singleAddress) Count() uint64        { return 1 }
func (s singleAddress) At(_ uint64) netip.Addr { return s.addr }

// addressList is the addressSource for a resolved hostname (one or more
// addresses) or any other pre-materialized, necessarily small set.
type addressList struct {
	addrs []netip.Addr
}

func (l addressList) Count() uint64 { return uint64(len(l.addrs)) }
func (l addressList) At(i uint64) netip.Addr {
	return l.addrs[i]
}

// addressRange is the addressSource for a CIDR block or an inclusive
// low..high address range, expanded in address order via 128-bit
// arithmetic over the IPv4-in-IPv6 representation so the same code
// handles both families.
type addressRange struct {
	base  [2]uint64 // big-endian 128-bit base address, as (hi, lo)
	count uint64
	is4   bool
}

func (r addressRange) Count() uint64 { return r.count }

func (r addressRange) At(i uint64) netip.Addr {
	hi, lo := r.base[0], r.base[1]
	var carry uint64
	lo, carry = addWithCarry(lo, i)
	hi += carry
	var b [16]byte
	putUint64(b[0:8], hi)
	putUint64(b[8:16], lo)
	addr := netip.AddrFrom16(b)
	if r.is4 {
		addr = addr.Unmap()
	}
	return addr
}

func addWithCarry(a, b uint64) (sum uint64, carry uint64) {
	sum = a + b
	if sum < a {
		carry = 1
	}
	return sum, carry
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func addrTo128(addr netip.Addr) (hi, lo uint64) {
	b := addr.As16()
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return hi, lo
}

// newAddressRangeFromPrefix builds an addressRange covering every
// address in p, in address order.
func newAddressRangeFromPrefix(p netip.Prefix) addressRange {
	p = p.Masked()
	base := p.Addr()
	bits := base.BitLen()
	ones := p.Bits()
	hostBits := bits - ones
	var count uint64 = 1
	if hostBits >= 64 {
		count = ^uint64(0) // clamp: caller should avoid masks this wide in practice
	} else if hostBits > 0 {
		count = uint64(1) << uint(hostBits)
	}
	hi, lo := addrTo128(base)
	return addressRange{base: [2]uint64{hi, lo}, count: count, is4: base.Is4()}
}

// newAddressRangeFromBounds builds an addressRange covering every
// address in [lo, hi] inclusive, honoring the given bounds (§4.1).
func newAddressRangeFromBounds(lo, hi netip.Addr) (addressRange, error) {
	if lo.Is4() != hi.Is4() {
		return addressRange{}, errRangeFamilyMismatch
	}
	loHi, loLo := addrTo128(lo)
	hiHi, hiLo := addrTo128(hi)
	if hiHi < loHi || (hiHi == loHi && hiLo < loLo) {
		return addressRange{}, errRangeOrder
	}
	var count uint64
	if hiHi == loHi {
		count = hiLo - loLo + 1
	} else {
		count = ^uint64(0)
	}
	return addressRange{base: [2]uint64{loHi, loLo}, count: count, is4: lo.Is4()}, nil
}
