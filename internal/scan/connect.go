// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import "errors"

// ConnectMachine implements the TCP connect scan (§4.5): the underlying
// kernel connect() result maps directly to a verdict — completion means
// open, connection-refused means closed, any other error (timeout,
// unreachable) means filtered. Unlike the other machines, Connect does
// not wait for raw-socket response frames; the caller feeds the dial
// outcome directly via [ConnectMachine.OnDialResult].
type ConnectMachine struct{}

var _ Machine = &ConnectMachine{}

// NewConnectMachine returns a ready-to-use [*ConnectMachine].
func NewConnectMachine() *ConnectMachine { return &ConnectMachine{} }

// ErrConnectionRefused should be matched against (via errors.Is, after
// the caller's dial-error classification) to report closed rather than
// filtered. Callers on platforms whose net package does not expose a
// typed refused-connection error should classify by syscall.ECONNREFUSED
// before calling [ConnectMachine.OnDialResult].
var ErrConnectionRefused = errors.New("scan: connection refused")

// OnDialResult classifies the outcome of the connect() call. dialErr is
// nil on success (hand off to the banner grabber, §4.5), non-nil
// otherwise; refused indicates the caller has determined the error
// specifically means connection-refused (as opposed to timeout or
// unreachable).
func (m *ConnectMachine) OnDialResult(dialErr error, refused bool) Decision {
	if dialErr == nil {
		return terminal(StateOpen)
	}
	if refused || errors.Is(dialErr, ErrConnectionRefused) {
		return terminal(StateClosed)
	}
	return terminal(StateFiltered)
}

// OnResponse implements [Machine]. The connect scan never observes raw
// response frames directly; it always needs more (the real verdict
// arrives through [ConnectMachine.OnDialResult]).
func (m *ConnectMachine) OnResponse(resp Response) Decision {
	return needMore()
}

// OnTimeout implements [Machine]. A connect-scan timeout is surfaced to
// OnDialResult by the caller's dialer (as a non-refused error), not
// through this path; by the time a scheduler would call OnTimeout the
// dial has already resolved one way or another.
func (m *ConnectMachine) OnTimeout(retriesRemaining int) Decision {
	if retriesRemaining > 0 {
		return retryDecision()
	}
	return terminal(StateFiltered)
}
