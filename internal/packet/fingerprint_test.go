// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintGeneratorReproducible(t *testing.T) {
	dst := netip.MustParseAddr("198.51.100.7")
	g1 := NewFingerprintGenerator(rand.New(rand.NewSource(7)))
	g2 := NewFingerprintGenerator(rand.New(rand.NewSource(7)))

	fp1 := g1.NextTCP(dst, 443)
	fp2 := g2.NextTCP(dst, 443)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintGeneratorEphemeralRange(t *testing.T) {
	dst := netip.MustParseAddr("198.51.100.7")
	g := NewFingerprintGenerator(rand.New(rand.NewSource(1)))
	for i := 0; i < 64; i++ {
		fp := g.NextTCP(dst, 80)
		assert.GreaterOrEqual(t, fp.SrcPort, uint16(49152))
	}
}

func TestFingerprintGeneratorTCPAndUDPDecorrelated(t *testing.T) {
	dst := netip.MustParseAddr("198.51.100.7")
	g := NewFingerprintGenerator(rand.New(rand.NewSource(99)))
	tcp := g.NextTCP(dst, 22)
	udp := g.NextUDP(dst, 53)
	assert.NotEqual(t, tcp.SrcPort, udp.SrcPort)
}
