// SPDX-License-Identifier: GPL-3.0-or-later

// Package prort implements the core of a high-throughput TCP/UDP port
// scanner: target expansion, packet construction, raw send/receive,
// stateless and stateful scan state machines, rate control, progress
// tracking, service detection, and result aggregation.
//
// # Core Abstraction
//
// Pipeline stages share a single composable interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// [Compose2] chains two Funcs where the compiler verifies the first's
// output matches the second's input. internal/connpool is the one
// place this module uses it: [connpool.Pool.Get]'s dial path is
// Compose2(ConnectFunc, ObserveConnFunc), wrapping every freshly dialed
// connection for I/O logging before it reaches a caller. The scheduler
// itself does not use Func/Compose for its dataflow — target
// expansion, driving a scan state machine, and classification are
// plain Go calls wired together in internal/scheduler.
//
// # Package Layout
//
//   - internal/target: target expressions and port sets (C1)
//   - internal/resolve: hostname-to-address resolution used by the expander
//   - internal/packet: frame construction, checksums, buffer pool (C2)
//   - internal/rawio: raw-socket send and BPF-filtered receive (C3)
//   - internal/connpool: bounded stateful connections with a timer wheel (C4)
//   - internal/scan: per-scan-type state machines (C5)
//   - internal/ratectl: token-bucket rate controller with adaptive feedback (C6)
//   - internal/timing: named timing profiles T0..T5 (C7)
//   - internal/scheduler: scan phase driver and worker fan-out (C8)
//   - internal/progress: lock-free counters and the adaptive-interval bridge (C9)
//   - internal/aggregate: ordered result sink with back-pressure (C10)
//   - internal/probedb: service probe database and matching engine (C11)
//   - internal/banner: bounded banner reads and TLS certificate extraction (C12)
//   - internal/cdn: CDN/WAF range classification (C13)
//   - internal/storage: append-only observation persistence (C14)
//   - internal/decoy: spoofed-source decoy interleaving (C15)
//   - internal/idlescan: zombie-host idle scan driver (C16)
//   - internal/neterr: OS error classification (transient vs. permanent, §7)
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible
// with [log/slog]). By default logging is disabled: [DefaultSLogger]
// discards every record. Error classification is configurable via
// [ErrClassifier]; [DefaultErrClassifier] is a no-op, and internal/neterr
// supplies the real classification, which the scheduler's stateful and
// host-discovery drivers use.
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7)
// for a scan phase or a single detection probe, then attach it to the
// logger with [*slog.Logger.With] so related entries can be correlated.
//
// # Timeout and Context Philosophy
//
// The core is context-transparent: operations never modify the context
// they receive. Callers (the scheduler, ultimately driven by the
// cancel-token described in §6.1) control timeouts externally via
// [context.WithTimeout] or [context.WithDeadline]. Cancellation drives
// in-flight state machines to a terminal state rather than discarding
// their observations (§5).
//
// # Design Boundaries
//
// This package implements the scan core only. CLI parsing, terminal
// rendering, configuration-file loading, logging setup, release
// packaging, and OS-fingerprint signature matching are treated as
// external collaborators; only their interfaces to the core are
// specified (§6).
package prort
