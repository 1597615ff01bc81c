//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's DNS-over-UDP exchange shape, replaced with
// github.com/miekg/dns for wire encoding (§4.5's UDP state machine,
// port-53 payload; see SPEC_FULL.md's DOMAIN STACK section).
//

package scan

import "github.com/miekg/dns"

// UDPMachine implements the UDP scan (§4.5): a response from the port
// means open; ICMP port-unreachable (type 3 code 3) means closed; any
// other ICMP-unreachable means filtered; no response after retries means
// open-or-filtered (UDP's timeouts are markedly longer than TCP's, set
// by the timing profile, not by this machine).
type UDPMachine struct{}

var _ Machine = &UDPMachine{}

// NewUDPMachine returns a ready-to-use [*UDPMachine].
func NewUDPMachine() *UDPMachine { return &UDPMachine{} }

// OnResponse implements [Machine].
func (m *UDPMachine) OnResponse(resp Response) Decision {
	switch resp.Kind {
	case ResponseKindUDP:
		return terminal(StateOpen)
	case ResponseKindICMP:
		if resp.ICMPPortUnreachable {
			return terminal(StateClosed)
		}
		return terminal(StateFiltered)
	}
	return needMore()
}

// OnTimeout implements [Machine].
func (m *UDPMachine) OnTimeout(retriesRemaining int) Decision {
	if retriesRemaining > 0 {
		return retryDecision()
	}
	return terminal(StateOpenOrFiltered)
}

// ProbePayload returns the protocol-appropriate UDP probe payload for a
// well-known port (§4.5: "DNS query for 53, SNMP GetRequest for 161, NTP
// for 123, etc.") or an empty datagram for ports with no known payload.
func ProbePayload(port uint16) ([]byte, error) {
	switch port {
	case 53:
		return dnsProbePayload()
	case 123:
		return ntpProbePayload(), nil
	default:
		return nil, nil
	}
}

// dnsProbePayload builds a standard NS-record query for "." — the
// simplest query guaranteed to elicit a response from any DNS server
// without depending on the scan's actual target domain.
func dnsProbePayload() ([]byte, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(".", dns.TypeNS)
	msg.RecursionDesired = true
	return msg.Pack()
}

// ParseDNSResponse reports whether payload is a well-formed DNS message,
// for the UDP-53 probe's response-recognition step (a response, of any
// content, from port 53 means open per §4.5).
func ParseDNSResponse(payload []byte) (*dns.Msg, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return nil, err
	}
	return msg, nil
}

// ntpProbePayload builds a minimal NTP client request (48-byte header,
// mode 3 "client", version 4).
func ntpProbePayload() []byte {
	buf := make([]byte, 48)
	buf[0] = 0x23 // LI=0, VN=4, Mode=3 (client)
	return buf
}
