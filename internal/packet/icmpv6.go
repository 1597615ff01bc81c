// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
)

// ICMPv6 echo message types (RFC 4443 §4.1-4.2).
const (
	ICMPv6TypeEchoRequest = 128
	ICMPv6TypeEchoReply   = 129
)

// ICMPv6EchoParams holds the fields needed to build an ICMPv6 echo
// request or reply (RFC 4443 §4.1-4.2).
type ICMPv6EchoParams struct {
	Type           uint8
	Identifier     uint16
	SequenceNumber uint16
}

// BuildICMPv6Echo writes an ICMPv6 echo message into a buffer
// acquired from pool, computing the checksum over the IPv6
// pseudo-header, ICMPv6 header, and payload. Unlike ICMPv4, ICMPv6
// checksums always cover the pseudo-header (RFC 4443 §2.3). The
// caller is responsible for releasing the returned buffer back to
// pool.
func BuildICMPv6Echo(pool *Pool, src, dst netip.Addr, p ICMPv6EchoParams, payload []byte) []byte {
	const headerLen = 8
	buf := pool.Acquire()
	buf = buf[:headerLen]

	buf[0] = p.Type
	buf[1] = 0 // code
	binary.BigEndian.PutUint16(buf[2:4], 0) // checksum placeholder
	binary.BigEndian.PutUint16(buf[4:6], p.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], p.SequenceNumber)

	msg := append(buf, payload...)

	const nextHeaderICMPv6 = 58
	partial := pseudoHeaderSumIPv6(src.As16(), dst.As16(), nextHeaderICMPv6, uint32(len(msg)))
	cksum := foldAndSumWith(partial, msg)
	binary.BigEndian.PutUint16(msg[2:4], cksum)

	return msg
}
