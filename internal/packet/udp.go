// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
)

// UDPHeaderLen is the length in bytes of a UDP header (RFC 768).
const UDPHeaderLen = 8

// UDPParams holds the fields needed to build a UDP datagram for a
// protocol probe (§4.5, §4.11 service detection).
type UDPParams struct {
	SrcPort uint16
	DstPort uint16
}

// BuildUDP writes a UDP datagram into a buffer acquired from pool,
// computing the checksum over the pseudo-header, UDP header, and
// payload. The caller is responsible for releasing the returned
// buffer back to pool.
//
// Per RFC 768, a UDP checksum of exactly zero is transmitted as
// 0xFFFF (all-ones), since zero means "no checksum computed".
func BuildUDP(pool *Pool, src, dst netip.Addr, p UDPParams, payload []byte) []byte {
	buf := pool.Acquire()
	buf = buf[:UDPHeaderLen]

	length := UDPHeaderLen + len(payload)
	binary.BigEndian.PutUint16(buf[0:2], p.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], p.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(length))
	binary.BigEndian.PutUint16(buf[6:8], 0) // checksum placeholder

	datagram := append(buf, payload...)

	var cksum uint16
	if dst.Is4() {
		partial := pseudoHeaderSumIPv4(src.As4(), dst.As4(), 17, uint16(length))
		cksum = foldAndSumWith(partial, datagram)
	} else {
		partial := pseudoHeaderSumIPv6(src.As16(), dst.As16(), 17, uint32(length))
		cksum = foldAndSumWith(partial, datagram)
	}
	if cksum == 0 {
		cksum = 0xFFFF
	}
	binary.BigEndian.PutUint16(datagram[6:8], cksum)

	return datagram
}
