// SPDX-License-Identifier: GPL-3.0-or-later

package prort

import "errors"

// Error kinds from the error handling design (§7). These are sentinel
// values, not types: callers compare with [errors.Is] and wrap with
// [fmt.Errorf]'s %w where additional context (target, port) is useful.
//
// Global errors (ErrConfiguration, ErrPermission, ErrUnsuitableZombie,
// ErrDecoy, ErrProbeDB) abort a scan before any probe is sent. Per-target
// errors (ErrResolution, ErrNetworkTransient, ErrNetworkPermanent,
// ErrTimeout) never abort the scan; they are aggregated into per-target
// counters and surfaced at FINALIZE.
var (
	// ErrConfiguration signals an invalid scan-type/zombie combination,
	// an out-of-range port, or another incompatible flag pairing. Fatal
	// at start.
	ErrConfiguration = errors.New("prort: configuration error")

	// ErrResolution signals a hostname with no DNS records. Non-fatal:
	// the target is skipped and one error event is emitted.
	ErrResolution = errors.New("prort: resolution error")

	// ErrPermission signals that raw-socket acquisition was refused.
	// Fatal unless the caller falls back to the connect-scan state
	// machine, the only one that needs no elevated privilege.
	ErrPermission = errors.New("prort: permission error")

	// ErrNetworkTransient wraps ENOBUFS/EAGAIN/TEMPFAIL-class failures.
	// Handled internally with retry/backoff; counted, never propagated.
	ErrNetworkTransient = errors.New("prort: transient network error")

	// ErrNetworkPermanent wraps EHOSTUNREACH-class failures for a
	// specific (address, port). Recorded as filtered; never propagated.
	ErrNetworkPermanent = errors.New("prort: permanent network error")

	// ErrTimeout signals a probe timeout. Handled per state machine
	// (§4.5); never propagated past the scheduler.
	ErrTimeout = errors.New("prort: probe timeout")

	// ErrProbeDB signals a malformed probe database. Fatal at load if
	// detect-services is enabled; otherwise ignored with a warning.
	ErrProbeDB = errors.New("prort: probe database error")

	// ErrDecoy signals an invalid decoy set (e.g. only reserved
	// addresses). Fatal at start.
	ErrDecoy = errors.New("prort: decoy configuration error")

	// ErrUnsuitableZombie signals that the configured idle-scan zombie
	// has a non-incrementing or randomized IP-ID and cannot be used as
	// a side channel. Fatal at start.
	ErrUnsuitableZombie = errors.New("prort: unsuitable idle-scan zombie")

	// ErrOutput signals that the output sink refused to accept an
	// observation. Handled internally via back-pressure until the
	// scan-wide cancel-token is flipped.
	ErrOutput = errors.New("prort: output sink error")
)
