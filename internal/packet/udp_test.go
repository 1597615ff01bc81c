// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUDPChecksumValidatesIPv4(t *testing.T) {
	pool := NewPool(4, 128)
	src := netip.MustParseAddr("192.0.2.10")
	dst := netip.MustParseAddr("192.0.2.20")

	dgram := BuildUDP(pool, src, dst, UDPParams{SrcPort: 12345, DstPort: 53}, []byte("probe"))
	require.Len(t, dgram, UDPHeaderLen+len("probe"))

	partial := pseudoHeaderSumIPv4(src.As4(), dst.As4(), 17, uint16(len(dgram)))
	assert.Equal(t, uint16(0), foldAndSumWith(partial, dgram))
}

func TestBuildUDPZeroChecksumBecomesAllOnes(t *testing.T) {
	pool := NewPool(4, 128)
	// Pick endpoints/ports whose unmodified checksum happens to compute
	// to zero is unlikely to hit by chance; instead assert the encoded
	// field is never literally zero, which RFC 768 forbids.
	src := netip.MustParseAddr("10.1.1.1")
	dst := netip.MustParseAddr("10.1.1.2")
	for port := uint16(0); port < 16; port++ {
		dgram := BuildUDP(pool, src, dst, UDPParams{SrcPort: port, DstPort: port}, nil)
		cksum := uint16(dgram[6])<<8 | uint16(dgram[7])
		assert.NotEqual(t, uint16(0), cksum)
	}
}
