//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's atomic-counter/channel-based pipeline
// idiom, generalized into the MPSC result aggregator (§4.10, §3's
// Observation entity and strongest-signal invariant).
//

// Package aggregate implements the MPSC result aggregator: it retains,
// per (address, port, protocol), the strongest observation seen and
// periodically flushes batches to a storage writer (C10).
package aggregate

import (
	"context"
	"net/netip"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// Key identifies one (address, port, protocol) slot in the aggregator's
// retained-observation table (§3's Observation entity).
type Key struct {
	Addr  netip.Addr
	Port  uint16
	Proto target.Protocol
}

// Observation is one terminal scan result (§3, verbatim field set).
type Observation struct {
	Key         Key
	State       scan.State
	RTT         time.Duration
	Kind        scan.ResponseKind
	Banner      []byte
	ServiceInfo string
	Timestamp   time.Time
}

// Batch is a slice of observations flushed together to a
// [BatchWriter] (§4.10: "the aggregator periodically flushes to the
// storage writer in batches").
type Batch []Observation

// BatchWriter consumes flushed batches. Implemented by
// internal/storage.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch Batch) error
}

// DefaultCapacity is the aggregator's default back-pressure channel
// capacity (§4.10: "a bounded channel (default capacity 8K
// observations)").
const DefaultCapacity = 8192

// DefaultFlushInterval is how often the aggregator flushes its
// retained table to the writer absent an explicit Flush call.
const DefaultFlushInterval = 250 * time.Millisecond

// DefaultBatchSize caps how many observations one flush writes at
// once, bounding a single WriteBatch call's size.
const DefaultBatchSize = 1024

// Aggregator is an MPSC sink: many scheduler workers call Push
// concurrently; one background goroutine (driven by [Aggregator.Run])
// periodically flushes retained observations to a [BatchWriter].
type Aggregator struct {
	observations chan Observation
	writer       BatchWriter
	flushEvery   time.Duration
	batchSize    int
	timeNow      func() time.Time

	retained map[Key]Observation
}

// New returns an [*Aggregator] with the given channel capacity (use
// [DefaultCapacity] absent a reason to deviate), flushing to writer
// every flushEvery (use [DefaultFlushInterval]).
func New(capacity int, writer BatchWriter, flushEvery time.Duration, batchSize int, timeNow func() time.Time) *Aggregator {
	if timeNow == nil {
		timeNow = time.Now
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Aggregator{
		observations: make(chan Observation, capacity),
		writer:       writer,
		flushEvery:   flushEvery,
		batchSize:    batchSize,
		timeNow:      timeNow,
		retained:     make(map[Key]Observation),
	}
}

// Push submits an observation. Push blocks when the channel is full
// (§4.10: "workers yield before emitting new observations — this is
// the scanner's natural feedback when the storage writer cannot keep
// up"), honoring ctx cancellation.
func (a *Aggregator) Push(ctx context.Context, o Observation) error {
	select {
	case a.observations <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush attempts a non-blocking submit, reporting false if the
// channel is currently full. Callers on the stateless hot path that
// would rather retry than block may prefer this to [Aggregator.Push].
func (a *Aggregator) TryPush(o Observation) bool {
	select {
	case a.observations <- o:
		return true
	default:
		return false
	}
}

// Close signals Run to drain remaining observations, merge them, flush
// once more, and return.
func (a *Aggregator) Close() {
	close(a.observations)
}

// Run drains observations, retaining the strongest one per [Key] (§3's
// strongest-signal invariant, enforced by [Aggregator.merge]), and
// flushes the retained table to the writer every flushEvery or when
// the channel closes. Run returns the first WriteBatch error
// encountered rather than continuing to drain silently: a persistently
// failing writer should stop the scan, not silently drop observations
// (§4.10's back-pressure story run to its conclusion).
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	flush := func() error {
		if len(a.retained) == 0 {
			return nil
		}
		batch := make(Batch, 0, a.batchSize)
		for k, obs := range a.retained {
			batch = append(batch, obs)
			delete(a.retained, k)
			if len(batch) >= a.batchSize {
				if err := a.writer.WriteBatch(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if len(batch) > 0 {
			if err := a.writer.WriteBatch(ctx, batch); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		select {
		case o, ok := <-a.observations:
			if !ok {
				return flush()
			}
			a.merge(o)
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// merge retains o if it is absent or strictly stronger than the
// currently retained observation for its key: a retransmission with
// an equal-strength verdict never replaces the one already retained
// (§3's invariant: "retransmissions never overwrite a stronger state
// with a weaker one").
func (a *Aggregator) merge(o Observation) {
	existing, ok := a.retained[o.Key]
	if !ok || o.State.Strength() > existing.State.Strength() {
		a.retained[o.Key] = o
	}
}
