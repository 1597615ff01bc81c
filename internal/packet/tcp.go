// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
)

// TCPHeaderLen is the length in bytes of a TCP header with no options.
const TCPHeaderLen = 20

// TCPFlags is a bitmask of TCP control flags (RFC 793 §3.1).
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << 0
	FlagSYN TCPFlags = 1 << 1
	FlagRST TCPFlags = 1 << 2
	FlagPSH TCPFlags = 1 << 3
	FlagACK TCPFlags = 1 << 4
	FlagURG TCPFlags = 1 << 5
)

// TCPParams holds the fields needed to build a minimal (no options)
// TCP segment for the probe types described in §4.5: SYN, Connect
// (handled by the OS stack, not this package), FIN/NULL/Xmas, and ACK.
type TCPParams struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   TCPFlags
	Window  uint16
}

// BuildTCP writes a TCP segment into a buffer acquired from pool,
// computing the checksum over the IPv4 or IPv6 pseudo-header (chosen
// by dst's family), TCP header, and
// payload. The caller is responsible for releasing the returned
// buffer back to pool.
func BuildTCP(pool *Pool, src, dst netip.Addr, p TCPParams, payload []byte) []byte {
	buf := pool.Acquire()
	buf = buf[:TCPHeaderLen]

	binary.BigEndian.PutUint16(buf[0:2], p.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], p.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], p.Seq)
	binary.BigEndian.PutUint32(buf[8:12], p.Ack)
	buf[12] = (TCPHeaderLen / 4) << 4 // data offset, no options
	buf[13] = byte(p.Flags)
	binary.BigEndian.PutUint16(buf[14:16], p.Window)
	binary.BigEndian.PutUint16(buf[16:18], 0) // checksum placeholder
	binary.BigEndian.PutUint16(buf[18:20], 0) // urgent pointer

	segment := append(buf, payload...)

	var cksum uint16
	if dst.Is4() {
		partial := pseudoHeaderSumIPv4(src.As4(), dst.As4(), 6, uint16(len(segment)))
		cksum = foldAndSumWith(partial, segment)
	} else {
		partial := pseudoHeaderSumIPv6(src.As16(), dst.As16(), 6, uint32(len(segment)))
		cksum = foldAndSumWith(partial, segment)
	}
	binary.BigEndian.PutUint16(segment[16:18], cksum)

	return segment
}
