// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import "github.com/doublegate/ProRT-IP-sub016/internal/packet"

// StealthVariant selects which of the three flag combinations a
// [StealthMachine] probes with (§4.5: "NULL = none, FIN, Xmas =
// FIN+PSH+URG").
type StealthVariant uint8

const (
	StealthNull StealthVariant = iota
	StealthFIN
	StealthXmas
)

// Flags returns the TCP flag combination for v.
func (v StealthVariant) Flags() packet.TCPFlags {
	switch v {
	case StealthFIN:
		return packet.FlagFIN
	case StealthXmas:
		return packet.FlagFIN | packet.FlagPSH | packet.FlagURG
	default:
		return 0
	}
}

// StealthMachine implements the FIN/NULL/Xmas scans (§4.5): no response
// after retries means open-or-filtered (the probe cannot distinguish a
// dropped packet from a silent open service); RST means closed;
// ICMP-unreachable means filtered. Known limitation, left unenforced
// here (the caller/documentation owns it): Windows-family stacks RST
// all three variants regardless of port state, which this machine
// faithfully reports as closed — it cannot and should not try to detect
// that it's talking to Windows.
type StealthMachine struct {
	Variant StealthVariant
}

var _ Machine = &StealthMachine{}

// NewStealthMachine returns a ready-to-use [*StealthMachine] for variant.
func NewStealthMachine(variant StealthVariant) *StealthMachine {
	return &StealthMachine{Variant: variant}
}

// OnResponse implements [Machine].
func (m *StealthMachine) OnResponse(resp Response) Decision {
	switch resp.Kind {
	case ResponseKindICMP:
		return terminal(StateFiltered)
	case ResponseKindTCP:
		if resp.TCPFlags&packet.FlagRST != 0 {
			return terminal(StateClosed)
		}
	}
	return needMore()
}

// OnTimeout implements [Machine].
func (m *StealthMachine) OnTimeout(retriesRemaining int) Decision {
	if retriesRemaining > 0 {
		return retryDecision()
	}
	return terminal(StateOpenOrFiltered)
}
