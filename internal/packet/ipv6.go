// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
)

// IPv6HeaderLen is the length in bytes of a fixed IPv6 header (RFC
// 8200 §3), before any extension headers.
const IPv6HeaderLen = 40

// IPv6Params holds the fields needed to build an IPv6 header. IPv6
// carries no header checksum; correctness instead relies on the
// transport-layer checksum, which always covers the IPv6 pseudo
// header (RFC 8200 §8.1).
type IPv6Params struct {
	TrafficClass uint8
	FlowLabel    uint32
	NextHeader   uint8
	HopLimit     uint8
	Src          netip.Addr
	Dst          netip.Addr
}

// BuildIPv6 writes an IPv6 header plus payload into a buffer acquired
// from pool. PayloadLength is filled in based on len(payload); the
// caller is responsible for releasing the returned buffer back to
// pool.
func BuildIPv6(pool *Pool, p IPv6Params, payload []byte) []byte {
	buf := pool.Acquire()
	buf = buf[:IPv6HeaderLen]

	vtc := uint32(6)<<28 | uint32(p.TrafficClass)<<20 | (p.FlowLabel & 0xFFFFF)
	binary.BigEndian.PutUint32(buf[0:4], vtc)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = p.NextHeader
	buf[7] = p.HopLimit
	src16 := p.Src.As16()
	dst16 := p.Dst.As16()
	copy(buf[8:24], src16[:])
	copy(buf[24:40], dst16[:])

	return append(buf, payload...)
}
