// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import "github.com/doublegate/ProRT-IP-sub016/internal/packet"

// ACKMachine implements the ACK scan (§4.5): used to distinguish firewall
// presence from port state, it never reports open or closed — RST means
// unfiltered (no stateful firewall blocking this port); no response
// after retries, or an ICMP-unreachable, means filtered.
type ACKMachine struct{}

var _ Machine = &ACKMachine{}

// NewACKMachine returns a ready-to-use [*ACKMachine].
func NewACKMachine() *ACKMachine { return &ACKMachine{} }

// OnResponse implements [Machine].
func (m *ACKMachine) OnResponse(resp Response) Decision {
	switch resp.Kind {
	case ResponseKindICMP:
		return terminal(StateFiltered)
	case ResponseKindTCP:
		if resp.TCPFlags&packet.FlagRST != 0 {
			return terminal(StateUnfiltered)
		}
	}
	return needMore()
}

// OnTimeout implements [Machine].
func (m *ACKMachine) OnTimeout(retriesRemaining int) Decision {
	if retriesRemaining > 0 {
		return retryDecision()
	}
	return terminal(StateFiltered)
}
