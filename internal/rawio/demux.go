//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: other_examples/9d49f8fa_dnaeon-go-traceroute's reply
// classification (reading an inbound ICMP/TCP frame and pulling out
// just enough of it to match a prior send), generalized into a
// fingerprint-keyed demultiplexer feeding C5's state machines (§4.2:
// "replies enter the receive path, are demultiplexed by fingerprint").
//

package rawio

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
)

// Demultiplexer reads frames off a [Receiver] and routes each one to
// the probe that is waiting for it, identified by the local source
// port the probe used to send (IPv4 only; IPv6 demuxing is not yet
// implemented — see the module's design notes).
//
// One probe in flight per source port: [FingerprintGenerator] never
// reuses a port for two concurrent probes, so the port alone is a
// sufficient correlation key without also matching sequence numbers or
// cookies.
type Demultiplexer struct {
	mu      sync.Mutex
	pending map[uint16]chan scan.Response
}

// NewDemultiplexer returns an empty [*Demultiplexer].
func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{pending: make(map[uint16]chan scan.Response)}
}

// Register arranges for replies correlated to localPort to be
// delivered on the returned channel. The caller must call Unregister
// once it stops reading, whether or not a reply arrived.
func (d *Demultiplexer) Register(localPort uint16) <-chan scan.Response {
	ch := make(chan scan.Response, 1)
	d.mu.Lock()
	d.pending[localPort] = ch
	d.mu.Unlock()
	return ch
}

// Unregister stops routing replies to localPort's channel.
func (d *Demultiplexer) Unregister(localPort uint16) {
	d.mu.Lock()
	delete(d.pending, localPort)
	d.mu.Unlock()
}

// Run reads frames from receiver until ctx is canceled or Recv returns
// an error, dispatching each parsed response to its registered
// channel. Frames with no registered recipient (retransmits after a
// probe gave up, unrelated traffic let through by the BPF filter) are
// dropped. Run is intended to be the sole reader of receiver; it
// returns receiver's terminal error.
func (d *Demultiplexer) Run(ctx context.Context, receiver Receiver) error {
	for {
		frame, err := receiver.Recv(ctx)
		if err != nil {
			return err
		}
		resp, port, ok := ParseIPv4Reply(frame.Data)
		if !ok {
			continue
		}
		d.mu.Lock()
		ch, found := d.pending[port]
		d.mu.Unlock()
		if !found {
			continue
		}
		select {
		case ch <- resp:
		default:
			// A response already delivered for this port (e.g. a
			// duplicate RST); the probe only consumes the first one.
		}
	}
}

// ParseIPv4Reply extracts a [scan.Response] and the local port it
// correlates to from an inbound IPv4 frame (starting at the IP
// header, matching the layout [BuildIPv4]/[BuildTCP]/[BuildUDP]
// produce). ok is false for frames too short to parse or whose
// protocol this scanner does not probe with.
func ParseIPv4Reply(data []byte) (resp scan.Response, localPort uint16, ok bool) {
	if len(data) < packet.IPv4HeaderLen {
		return scan.Response{}, 0, false
	}
	ihl := int(data[0]&0x0f) * 4
	if ihl < packet.IPv4HeaderLen || len(data) < ihl {
		return scan.Response{}, 0, false
	}
	proto := data[9]
	payload := data[ihl:]

	switch proto {
	case 6: // TCP
		if len(payload) < packet.TCPHeaderLen {
			return scan.Response{}, 0, false
		}
		dstPort := binary.BigEndian.Uint16(payload[2:4])
		flags := packet.TCPFlags(payload[13])
		return scan.Response{Kind: scan.ResponseKindTCP, TCPFlags: flags}, dstPort, true

	case 17: // UDP
		if len(payload) < 8 {
			return scan.Response{}, 0, false
		}
		dstPort := binary.BigEndian.Uint16(payload[2:4])
		body := payload[8:]
		return scan.Response{Kind: scan.ResponseKindUDP, Payload: body}, dstPort, true

	case 1: // ICMPv4
		return parseICMPv4(payload)

	default:
		return scan.Response{}, 0, false
	}
}

// IPv4ID extracts the IPv4 header's identification field from an
// inbound frame (starting at the IP header). Used by the idle-scan
// driver to sample a zombie host's IP-ID counter (§4.16); ordinary scan
// types never need this field, hence its own small accessor rather than
// a [scan.Response] field.
func IPv4ID(data []byte) (id uint16, ok bool) {
	if len(data) < packet.IPv4HeaderLen {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[4:6]), true
}

// ICMPv4 message types this scanner cares about (RFC 792).
const (
	icmpTypeDestUnreachable = 3
	icmpCodePortUnreachable = 3
)

// parseICMPv4 handles the "destination unreachable" class of replies,
// which embed the IP+transport header of the original probe so the
// demultiplexer can recover the local port that sent it (§4.2, §4.5's
// UDP-scan row: "ICMP port-unreachable -> closed").
func parseICMPv4(payload []byte) (resp scan.Response, localPort uint16, ok bool) {
	const icmpHeaderLen = 8
	if len(payload) < icmpHeaderLen {
		return scan.Response{}, 0, false
	}
	icmpType := payload[0]
	icmpCode := payload[1]
	if icmpType != icmpTypeDestUnreachable {
		return scan.Response{}, 0, false
	}
	embedded := payload[icmpHeaderLen:]
	if len(embedded) < packet.IPv4HeaderLen {
		return scan.Response{}, 0, false
	}
	embeddedIHL := int(embedded[0]&0x0f) * 4
	if embeddedIHL < packet.IPv4HeaderLen || len(embedded) < embeddedIHL+4 {
		return scan.Response{}, 0, false
	}
	// The embedded original datagram's source port is this scanner's
	// local port, since the scanner was the one that sent it.
	origTransport := embedded[embeddedIHL:]
	if len(origTransport) < 4 {
		return scan.Response{}, 0, false
	}
	srcPort := binary.BigEndian.Uint16(origTransport[0:2])

	return scan.Response{
		Kind:                scan.ResponseKindICMP,
		ICMPPortUnreachable: icmpCode == icmpCodePortUnreachable,
	}, srcPort, true
}
