// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIPv4HeaderFields(t *testing.T) {
	pool := NewPool(4, 64)
	src := netip.MustParseAddr("192.0.2.1")
	dst := netip.MustParseAddr("192.0.2.2")
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	pkt := BuildIPv4(pool, IPv4Params{ID: 0x1234, TTL: 64, Protocol: 6, Src: src, Dst: dst, DontFragment: true}, payload)
	require.Len(t, pkt, IPv4HeaderLen+len(payload))

	assert.Equal(t, byte(0x45), pkt[0])
	assert.Equal(t, uint16(0x4000), uint16(pkt[6])<<8|uint16(pkt[7]))
	assert.Equal(t, byte(64), pkt[8])
	assert.Equal(t, byte(6), pkt[9])
	assert.Equal(t, uint16(0), ChecksumScalar(pkt[:IPv4HeaderLen]))
}

func TestBuildIPv4ChecksumValidates(t *testing.T) {
	pool := NewPool(4, 64)
	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("10.0.0.2")
	pkt := BuildIPv4(pool, IPv4Params{ID: 1, TTL: 1, Protocol: 17, Src: src, Dst: dst}, nil)
	// The RFC 1071 checksum of a header that already includes a valid
	// checksum field folds to zero.
	assert.Equal(t, uint16(0), ChecksumScalar(pkt[:IPv4HeaderLen]))
}
