// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTCPSYNChecksumValidatesIPv4(t *testing.T) {
	pool := NewPool(4, 128)
	src := netip.MustParseAddr("192.0.2.10")
	dst := netip.MustParseAddr("192.0.2.20")

	seg := BuildTCP(pool, src, dst, TCPParams{SrcPort: 54321, DstPort: 443, Seq: 0xaabbccdd, Flags: FlagSYN, Window: 65535}, nil)
	require.Len(t, seg, TCPHeaderLen)
	assert.Equal(t, byte(FlagSYN), seg[13])

	partial := pseudoHeaderSumIPv4(src.As4(), dst.As4(), 6, uint16(len(seg)))
	assert.Equal(t, uint16(0), foldAndSumWith(partial, seg))
}

func TestBuildTCPChecksumValidatesIPv6(t *testing.T) {
	pool := NewPool(4, 128)
	src := netip.MustParseAddr("2001:db8::10")
	dst := netip.MustParseAddr("2001:db8::20")

	seg := BuildTCP(pool, src, dst, TCPParams{SrcPort: 1, DstPort: 2, Flags: FlagFIN}, nil)
	partial := pseudoHeaderSumIPv6(src.As16(), dst.As16(), 6, uint32(len(seg)))
	assert.Equal(t, uint16(0), foldAndSumWith(partial, seg))
}

func TestBuildTCPFlagCombinations(t *testing.T) {
	pool := NewPool(4, 128)
	src := netip.MustParseAddr("192.0.2.10")
	dst := netip.MustParseAddr("192.0.2.20")

	xmas := BuildTCP(pool, src, dst, TCPParams{Flags: FlagFIN | FlagPSH | FlagURG}, nil)
	assert.Equal(t, byte(FlagFIN|FlagPSH|FlagURG), xmas[13])

	null := BuildTCP(pool, src, dst, TCPParams{Flags: 0}, nil)
	assert.Equal(t, byte(0), null[13])
}

func TestBuildTCPSeqAckEncoding(t *testing.T) {
	pool := NewPool(4, 128)
	src := netip.MustParseAddr("192.0.2.10")
	dst := netip.MustParseAddr("192.0.2.20")
	seg := BuildTCP(pool, src, dst, TCPParams{Seq: 0x01020304, Ack: 0x05060708, Flags: FlagACK}, nil)
	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(seg[4:8]))
	assert.Equal(t, uint32(0x05060708), binary.BigEndian.Uint32(seg[8:12]))
}
