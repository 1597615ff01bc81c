// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
)

// IPv4HeaderLen is the length in bytes of an IPv4 header with no
// options, which is all this package ever emits.
const IPv4HeaderLen = 20

// IPv4Params holds the fields needed to build a minimal (no options)
// IPv4 header (RFC 791 §3.1).
type IPv4Params struct {
	ID       uint16
	TTL      uint8
	Protocol uint8
	Src      netip.Addr
	Dst      netip.Addr
	// DontFragment sets the IPv4 "don't fragment" flag. Probe packets
	// always set this so a path-MTU black hole surfaces as a send
	// error rather than silent fragmentation (§4.2).
	DontFragment bool
}

// BuildIPv4 writes an IPv4 header plus payload into a buffer acquired
// from pool, computing the header checksum. TotalLength and checksum
// are filled in based on len(payload); the caller is responsible for
// releasing the returned buffer back to pool.
func BuildIPv4(pool *Pool, p IPv4Params, payload []byte) []byte {
	buf := pool.Acquire()
	buf = buf[:IPv4HeaderLen]

	totalLen := IPv4HeaderLen + len(payload)
	buf[0] = 0x45 // version 4, IHL 5 (20 bytes, no options)
	buf[1] = 0x00 // DSCP/ECN
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], p.ID)
	flags := uint16(0)
	if p.DontFragment {
		flags |= 0x4000
	}
	binary.BigEndian.PutUint16(buf[6:8], flags)
	buf[8] = p.TTL
	buf[9] = p.Protocol
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum placeholder
	src4 := p.Src.As4()
	dst4 := p.Dst.As4()
	copy(buf[12:16], src4[:])
	copy(buf[16:20], dst4[:])

	cksum := ChecksumScalar(buf[:IPv4HeaderLen])
	binary.BigEndian.PutUint16(buf[10:12], cksum)

	return append(buf, payload...)
}
