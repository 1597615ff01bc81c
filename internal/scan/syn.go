// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import "github.com/doublegate/ProRT-IP-sub016/internal/packet"

// SYNMachine implements the half-open SYN scan (§4.5): a SYN/ACK means
// open (caller tears the connection down with RST separately); RST means
// closed; an ICMP-unreachable means filtered; exhausting retries without
// a response also means filtered. A late SYN/ACK arriving after a
// timeout-driven filtered verdict promotes the state back to open:
// OnResponse classifies every response the same way whatever was
// returned before. The machine records whether a response has already
// produced a verdict, after which OnTimeout asks for more input instead
// of retrying or reporting filtered.
type SYNMachine struct {
	settled bool
}

var _ Machine = &SYNMachine{}

// NewSYNMachine returns a ready-to-use [*SYNMachine].
func NewSYNMachine() *SYNMachine { return &SYNMachine{} }

// OnResponse implements [Machine].
func (m *SYNMachine) OnResponse(resp Response) Decision {
	switch resp.Kind {
	case ResponseKindICMP:
		m.settled = true
		return terminal(StateFiltered)
	case ResponseKindTCP:
		if resp.TCPFlags&packet.FlagRST != 0 {
			m.settled = true
			return terminal(StateClosed)
		}
		if resp.TCPFlags&packet.FlagSYN != 0 && resp.TCPFlags&packet.FlagACK != 0 {
			// Late SYN/ACK after a timeout-driven filtered verdict
			// promotes the state back to open (§4.5 tie-break).
			m.settled = true
			return terminal(StateOpen)
		}
	}
	return needMore()
}

// OnTimeout implements [Machine].
func (m *SYNMachine) OnTimeout(retriesRemaining int) Decision {
	if m.settled {
		return needMore()
	}
	if retriesRemaining > 0 {
		return retryDecision()
	}
	return terminal(StateFiltered)
}
