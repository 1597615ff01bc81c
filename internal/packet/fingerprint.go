// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: root config.go's seeded *rand.Rand plumbing, applied
// to per-probe fingerprint generation (§3, §8 reproducibility).

package packet

import (
	"math/rand"
	"net/netip"
)

// TCPFingerprint identifies a single outbound TCP probe so that an
// unsolicited reply can be matched back to the state machine that
// sent it, without the engine keeping per-probe state of its own
// (§3): source port, destination address and port, and initial
// sequence number together form a key no two in-flight probes share.
type TCPFingerprint struct {
	SrcPort uint16
	DstAddr netip.Addr
	DstPort uint16
	Seq     uint32
}

// UDPFingerprint identifies a single outbound UDP probe. UDP carries
// no sequence number, so a random per-probe cookie embedded in the
// payload (or, for payload-less probes, derived from the source port)
// plays the same disambiguating role the TCP sequence number does.
type UDPFingerprint struct {
	SrcPort uint16
	DstAddr netip.Addr
	DstPort uint16
	Cookie  uint32
}

// FingerprintGenerator produces fresh, decorrelated fingerprints for
// outbound probes. Built around a caller-supplied *rand.Rand so a scan
// run seeded via [prort.NewSeededConfig] reproduces an identical probe
// sequence (§8).
type FingerprintGenerator struct {
	rand *rand.Rand
}

// NewFingerprintGenerator returns a generator drawing from r. r must
// not be used concurrently by other callers.
func NewFingerprintGenerator(r *rand.Rand) *FingerprintGenerator {
	return &FingerprintGenerator{rand: r}
}

// NextTCP returns a fingerprint for a TCP probe toward dst:dstPort,
// drawing a fresh ephemeral source port and initial sequence number.
func (g *FingerprintGenerator) NextTCP(dst netip.Addr, dstPort uint16) TCPFingerprint {
	return TCPFingerprint{
		SrcPort: g.ephemeralPort(),
		DstAddr: dst,
		DstPort: dstPort,
		Seq:     g.rand.Uint32(),
	}
}

// NextUDP returns a fingerprint for a UDP probe toward dst:dstPort,
// drawing a fresh ephemeral source port and cookie.
func (g *FingerprintGenerator) NextUDP(dst netip.Addr, dstPort uint16) UDPFingerprint {
	return UDPFingerprint{
		SrcPort: g.ephemeralPort(),
		DstAddr: dst,
		DstPort: dstPort,
		Cookie:  g.rand.Uint32(),
	}
}

// ephemeralPort draws a source port from the IANA dynamic/private
// range 49152-65535.
func (g *FingerprintGenerator) ephemeralPort() uint16 {
	const lo = 49152
	const span = 65536 - lo
	return uint16(lo + g.rand.Intn(span))
}
