//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's Func[A, B] single-method-stage idiom
// (func.go), generalized into the six/seven scan state machines' shared
// contract (§4.5, §9: "all state machines share the same abstract
// contract... implement as a tagged variant or trait/interface, not by
// inheritance").
//

// Package scan implements the per-port scan state machines (SYN,
// Connect, FIN/NULL/Xmas, ACK, UDP) that map a probe and its
// response (or lack of one) to a port state (§4.5).
package scan

import "github.com/doublegate/ProRT-IP-sub016/internal/packet"

// State is a port's classified state (§3's Observation.state).
type State uint8

const (
	StateUnknown State = iota
	StateOpen
	StateClosed
	StateFiltered
	StateOpenOrFiltered
	StateUnfiltered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFiltered:
		return "filtered"
	case StateOpenOrFiltered:
		return "open-or-filtered"
	case StateUnfiltered:
		return "unfiltered"
	default:
		return "unknown"
	}
}

// Strength orders states per the aggregator's strongest-state rule
// (§3: open > closed > filtered > open-or-filtered). Unfiltered is an
// ACK-scan-specific terminal state that never competes with the others
// (ACK never reports open/closed), so it is given the same strength as
// filtered for dedup purposes.
func (s State) Strength() int {
	switch s {
	case StateOpen:
		return 4
	case StateClosed:
		return 3
	case StateFiltered, StateUnfiltered:
		return 2
	case StateOpenOrFiltered:
		return 1
	default:
		return 0
	}
}

// StrongerOrEqual reports whether s is at least as strong as other per
// the strongest-state rule, so a retransmission never overwrites a
// stronger state with a weaker one.
func (s State) StrongerOrEqual(other State) bool {
	return s.Strength() >= other.Strength()
}

// Response describes an incoming frame (or ICMP error) attributed to an
// outstanding probe by its fingerprint (§3's Probe Fingerprint).
type Response struct {
	// TCPFlags is set for TCP responses; zero value has no meaning for
	// non-TCP responses (check Kind).
	TCPFlags packet.TCPFlags

	// Kind distinguishes a TCP segment from an ICMP unreachable/other
	// ICMP error from a UDP payload.
	Kind ResponseKind

	// ICMPPortUnreachable, when Kind == ResponseKindICMP, further narrows
	// the ICMP message: true for "port unreachable" (type 3 code 3),
	// false for any other unreachable/error type.
	ICMPPortUnreachable bool

	// Payload is the UDP response payload, when Kind ==
	// ResponseKindUDP. Empty for TCP/ICMP responses.
	Payload []byte
}

// ResponseKind tags a [Response]'s underlying frame type.
type ResponseKind uint8

const (
	ResponseKindTCP ResponseKind = iota
	ResponseKindICMP
	ResponseKindUDP
)

// Decision is what a [Machine] returns from OnResponse/OnTimeout: either
// a terminal state, a request to retry the same probe, or a request to
// keep waiting for more input (need-more, §4.5's shared contract).
type Decision struct {
	// Terminal reports whether State is final for this work item.
	Terminal bool

	// State is meaningful only when Terminal is true.
	State State

	// Retry requests that the caller resend the probe (consuming one of
	// the work item's retry budget, §4.5's retry paragraph). Meaningful
	// only when Terminal is false.
	Retry bool
}

func terminal(s State) Decision  { return Decision{Terminal: true, State: s} }
func needMore() Decision         { return Decision{} }
func retryDecision() Decision    { return Decision{Retry: true} }

// Machine is the shared per-scan-type contract (§4.5, §9): react to a
// response, react to a timeout; sending the probe is the caller's job. Implementations hold no
// subprocess state beyond the work item's address/port/sequence — kept
// small enough (§9: "fits inside a cache line where possible") to be
// copied cheaply per in-flight probe.
type Machine interface {
	// OnResponse classifies an incoming response.
	OnResponse(resp Response) Decision

	// OnTimeout classifies the absence of a response, given the number
	// of retries remaining (not counting this call).
	OnTimeout(retriesRemaining int) Decision
}
