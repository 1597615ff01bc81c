//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's atomic-counter + SLogger event pairing
// idiom, generalized into the progress tracker's internal counters and
// adaptive bridge (§4.9, §9's critical correctness note: "the specified
// adaptive interval AND the processing of completions in completion-
// order (rather than spawn-order) together eliminate" the 0->100% jump
// bug of fixed-interval, spawn-order polling).
//

// Package progress implements the lock-free internal counter and the
// adaptive bridge that publishes progress deltas to an external sink
// (§4.9).
package progress

import (
	"context"
	"sync/atomic"
	"time"
)

// Phase is the scheduler phase a progress delta is attributed to
// (§6.5).
type Phase string

const (
	PhaseInitializing  Phase = "initializing"
	PhaseHostDiscovery Phase = "host-discovery"
	PhasePortScan      Phase = "port-scan"
	PhaseDetection     Phase = "detection"
	PhaseFinalizing    Phase = "finalizing"
	PhaseCancelled     Phase = "cancelled"
)

// Delta is one progress update (§6.5): (completed-since-last, total,
// phase, timestamp).
type Delta struct {
	CompletedSinceLast uint64
	Total              uint64
	Phase              Phase
	Timestamp          time.Time
}

// Sink receives published deltas. Implemented externally (terminal UI,
// JSON stream, etc.); the core only calls Publish.
type Sink interface {
	Publish(d Delta)
}

// Tracker holds the lock-free atomic (completed, total) counter pair
// (§3's Scan Progress entity, §4.9's "internal tracker" layer).
//
// Completed is only ever incremented; Total is set once at INITIALIZE
// and may be adjusted if target expansion discovers more work mid-scan
// (host-discovery narrowing the port-scan phase's total, for instance).
type Tracker struct {
	completed atomic.Uint64
	total     atomic.Uint64
	phase     atomic.Value // Phase

	// completions is a channel of per-probe completion events,
	// buffered to 1024 entries ([Tracker.Complete] blocks while it is
	// full), processed by the bridge in the order they are sent
	// (arrival order), never in spawn/submission order (§9).
	completions chan uint64
}

// NewTracker returns a [*Tracker] with the given total and phase.
func NewTracker(total uint64, phase Phase) *Tracker {
	t := &Tracker{completions: make(chan uint64, 1024)}
	t.total.Store(total)
	t.phase.Store(phase)
	return t
}

// SetTotal adjusts the total work-item count (e.g. after host-discovery
// narrows PORT-SCAN's scope). Completed never exceeds Total (§3
// invariant) — callers must not shrink Total below the current
// Completed() value.
func (t *Tracker) SetTotal(total uint64) {
	t.total.Store(total)
}

// SetPhase updates the current scheduler phase attributed to future
// deltas.
func (t *Tracker) SetPhase(phase Phase) {
	t.phase.Store(phase)
}

// Complete records n terminal observations as completed work, in
// completion order — called by a worker the instant a probe reaches a
// terminal state, never batched or reordered by spawn index.
func (t *Tracker) Complete(n uint64) {
	t.completed.Add(n)
	t.completions <- n
}

// Completed returns the current completed count.
func (t *Tracker) Completed() uint64 { return t.completed.Load() }

// Total returns the current total count.
func (t *Tracker) Total() uint64 { return t.total.Load() }

// Phase returns the current phase.
func (t *Tracker) Phase() Phase { return t.phase.Load().(Phase) }

// Close signals the bridge to stop after draining any pending
// completions. Call once, after the scheduler has finished issuing
// [Tracker.Complete] calls for this phase.
func (t *Tracker) Close() {
	close(t.completions)
}

// AdaptiveInterval returns the bridge's sampling interval for a scan
// whose total port count is totalPorts (§4.9): <=100 -> 200us, <=1000 ->
// 500us, <=20000 -> 1ms, >20000 -> 2ms.
func AdaptiveInterval(totalPorts uint64) time.Duration {
	switch {
	case totalPorts <= 100:
		return 200 * time.Microsecond
	case totalPorts <= 1000:
		return 500 * time.Microsecond
	case totalPorts <= 20000:
		return time.Millisecond
	default:
		return 2 * time.Millisecond
	}
}

// Bridge samples a [Tracker] and publishes deltas to a [Sink]. It
// accumulates each completion event as it arrives (completion order)
// and publishes the accumulated count on each interval tick, with a
// final flush when the tracker closes, so a scan lasting less than one
// interval still produces an observable delta (§9's critical
// correctness note).
type Bridge struct {
	tracker  *Tracker
	sink     Sink
	timeNow  func() time.Time
	interval time.Duration
}

// NewBridge returns a [*Bridge] publishing tracker's deltas to sink.
// interval is typically [AdaptiveInterval] applied to the scan's total
// port count. Pending completions are published on each tick of that
// interval; whatever remains is published when the tracker is closed
// or the context passed to Run is canceled.
func NewBridge(tracker *Tracker, sink Sink, interval time.Duration, timeNow func() time.Time) *Bridge {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Bridge{tracker: tracker, sink: sink, timeNow: timeNow, interval: interval}
}

// Run drains completion events from the tracker, publishing the
// accumulated delta on each interval tick and once more when the
// completions channel closes or ctx is canceled (final flush). A tick
// with no pending completions publishes nothing. Run returns when the
// tracker is closed and all pending completions have been published.
//
// Run processes completions strictly in the order [Tracker.Complete]
// sent them — never by re-deriving order from probe spawn sequence —
// which is the other half of §9's correctness requirement.
func (b *Bridge) Run(ctx context.Context) {
	var pending uint64
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	flush := func() {
		if pending == 0 {
			return
		}
		b.sink.Publish(Delta{
			CompletedSinceLast: pending,
			Total:              b.tracker.Total(),
			Phase:              b.tracker.Phase(),
			Timestamp:          b.timeNow(),
		})
		pending = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case n, ok := <-b.tracker.completions:
			if !ok {
				flush()
				return
			}
			pending += n
		case <-ticker.C:
			flush()
		}
	}
}
