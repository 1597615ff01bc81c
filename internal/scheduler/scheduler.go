//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's composition-root wiring pattern
// (compose.go's Func-chain assembly), generalized into the
// phase-driven scan scheduler (§4.8): INITIALIZE, optional
// HOST-DISCOVERY, PORT-SCAN, DETECTION, FINALIZE.
//

// Package scheduler owns the life cycle of one scan run: expanding
// targets, optionally narrowing them via host discovery, fanning work
// out to a bounded worker pool, driving each work item's scan state
// machine to completion, detecting services on open ports, and handing
// the result to an aggregator (C8).
package scheduler

import (
	"context"
	"net/netip"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/aggregate"
	"github.com/doublegate/ProRT-IP-sub016/internal/cdn"
	"github.com/doublegate/ProRT-IP-sub016/internal/progress"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/storage"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
	"github.com/doublegate/ProRT-IP-sub016/internal/timing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DriveResult is one work item's terminal scan outcome plus whatever
// DETECTION-phase data the driver that produced it already had in
// hand (§4.8: the stateful/idle drivers dial or probe the real target
// directly, so a banner grabbed while classifying the connection is
// free; nothing here is ever fetched speculatively).
type DriveResult struct {
	State       scan.State
	Banner      []byte
	ServiceInfo string
}

// Observation is one terminal scan outcome, handed to the aggregator.
type Observation struct {
	Seed        target.WorkSeed
	Type        ScanType
	State       scan.State
	Banner      []byte
	ServiceInfo string
	Err         error
}

// ToAggregate converts o into the [aggregate.Observation] shape the
// result aggregator retains (§3's Observation entity). The two types
// are kept distinct deliberately: Observation is the scheduler's own
// per-item driver output, aggregate.Observation is the aggregator's
// retained-strongest-wins table row; this is the adapter between them.
//
// Kind is derived from o.Type rather than carried separately, since
// every [ScanType] but [ScanUDP] speaks TCP. RTT is left at its zero
// value: none of the current drivers time the probe round-trip
// themselves yet, so there is nothing honest to report here until that
// gets threaded through StatelessDriver/StatefulDriver.
func (o Observation) ToAggregate(now time.Time) aggregate.Observation {
	kind := scan.ResponseKindTCP
	if o.Type == ScanUDP {
		kind = scan.ResponseKindUDP
	}
	return aggregate.Observation{
		Key: aggregate.Key{
			Addr:  o.Seed.Addr,
			Port:  o.Seed.Port.Number,
			Proto: o.Seed.Port.Proto,
		},
		State:       o.State,
		Kind:        kind,
		Banner:      o.Banner,
		ServiceInfo: o.ServiceInfo,
		Timestamp:   now,
	}
}

// ObservationSink receives observations as workers complete them
// (§4.8 -> §4.10's data flow).
type ObservationSink interface {
	Observe(o Observation)
}

// AggregateSink adapts a [*aggregate.Aggregator] to [ObservationSink]
// via [Observation.ToAggregate], the concrete bridge between the
// scheduler's per-item output and C10's retained-observation table.
// It uses [aggregate.Aggregator.TryPush] rather than the blocking
// Push: Observe has no context or error to propagate a blocked push
// through, so a full aggregator channel drops the observation instead
// of stalling the worker that produced it.
type AggregateSink struct {
	Aggregator *aggregate.Aggregator
	// TimeNow stamps each converted observation; nil uses time.Now.
	TimeNow func() time.Time
}

var _ ObservationSink = &AggregateSink{}

// Observe implements [ObservationSink].
func (s *AggregateSink) Observe(o Observation) {
	now := time.Now
	if s.TimeNow != nil {
		now = s.TimeNow
	}
	s.Aggregator.TryPush(o.ToAggregate(now()))
}

// Driver abstracts the three probing strategies a work item may use:
// stateless (raw send + demux), stateful (pooled connect), or idle
// (zombie IP-ID side channel). The scheduler only needs "drive one
// work item, get a terminal result back" — see [*CombinedDriver] for
// the concrete implementation wiring [*StatelessDriver], [*StatefulDriver],
// and [*IdleDriver] together by [ScanType].
type Driver interface {
	DriveItem(ctx context.Context, seed target.WorkSeed, st ScanType) (DriveResult, error)
}

// CombinedDriver dispatches to a [*StatefulDriver] for [ScanConnect],
// an [*IdleDriver] for [ScanIdle], and a [*StatelessDriver] (with the
// timing profile's timeout/retry budget) for every other [ScanType]
// (§4.8's "drives the appropriate state machine").
type CombinedDriver struct {
	Stateless  *StatelessDriver
	Stateful   *StatefulDriver
	Idle       *IdleDriver
	Timeout    time.Duration
	MaxRetries int
}

var _ Driver = &CombinedDriver{}

// DriveItem implements [Driver].
func (d *CombinedDriver) DriveItem(ctx context.Context, seed target.WorkSeed, st ScanType) (DriveResult, error) {
	switch st {
	case ScanConnect:
		return d.Stateful.Drive(ctx, seed)
	case ScanIdle:
		return d.Idle.Drive(ctx, seed)
	default:
		state, err := d.Stateless.Drive(ctx, seed, st, d.Timeout, d.MaxRetries)
		return DriveResult{State: state}, err
	}
}

// RunID uniquely identifies one scan run, used as the storage writer's
// completion-marker correlation key (§4.14, SPEC_FULL's DOMAIN STACK
// mapping of google/uuid).
type RunID = uuid.UUID

// NewRunID returns a fresh, random scan-run identifier.
func NewRunID() RunID { return uuid.New() }

// HostDiscoverer implements the optional HOST-DISCOVERY phase (§4.8:
// "a fast SYN-or-ICMP sweep whose output restricts the port-scan
// phase"). Discover returns a predicate reporting whether an address
// should be port-scanned; it is consulted once per distinct address,
// not once per work item.
type HostDiscoverer interface {
	Discover(ctx context.Context, expander *target.Expander) (func(netip.Addr) bool, error)
}

// Scheduler owns one scan run's expander, driver, progress tracker,
// and observation sink (§4.8's ownership note: "the scheduler owns the
// expander, controller, trackers, and aggregator for the duration of a
// scan").
type Scheduler struct {
	RunID        RunID
	Expander     *target.Expander
	Profile      timing.Profile
	Tracker      *progress.Tracker
	Sink         ObservationSink
	Driver       Driver
	ScanType     ScanType
	ProgressSink progress.Sink // optional; nil disables the bridge

	// HostDiscovery, when non-nil, runs before PORT-SCAN and narrows it
	// to the addresses it reports reachable (§4.8's optional
	// HOST-DISCOVERY phase). Nil skips straight to PORT-SCAN.
	HostDiscovery HostDiscoverer

	// Detect, when non-nil, runs the DETECTION phase against any open
	// result whose driver didn't already produce a banner — every
	// scan type but [ScanConnect], whose [*StatefulDriver] grabs the
	// banner off the same connection it classified with (§4.8's
	// DETECTION phase: "banner grab + probe matching on open ports
	// only").
	Detect *Detector

	// CDN, when non-nil, tags an open result's ServiceInfo with the
	// CDN/WAF provider that owns its address, if any (C13). Checked
	// once per open result rather than once per address, since C13's
	// classifier is a cheap binary search (§4.13) and PORT-SCAN doesn't
	// track distinct addresses separately from work items.
	CDN *cdn.Classifier

	// Storage, when non-nil, has Finish called once at the end of Run
	// to emit the completion marker (§4.14) stamped with this run's
	// RunID. Observations themselves reach it indirectly, through
	// whichever [ObservationSink] (typically an [*AggregateSink]) feeds
	// the [*aggregate.Aggregator] that owns this [*storage.Writer] as
	// its [aggregate.BatchWriter] — Run does not call WriteBatch
	// directly, matching §4.10's own "aggregator flushes to the storage
	// writer" data flow.
	Storage *storage.Writer
}

// NewScheduler returns a [*Scheduler] stamped with a fresh [RunID] and
// a tracker sized to expander's total work items.
func NewScheduler(expander *target.Expander, profile timing.Profile, driver Driver, st ScanType, sink ObservationSink) *Scheduler {
	total := expander.Total()
	tracker := progress.NewTracker(total, progress.PhaseInitializing)
	return &Scheduler{
		RunID:    NewRunID(),
		Expander: expander,
		Profile:  profile,
		Tracker:  tracker,
		Sink:     sink,
		Driver:   driver,
		ScanType: st,
	}
}

// Run drives a scan run through its remaining phases: optional
// HOST-DISCOVERY, PORT-SCAN (fused with DETECTION per item), and
// FINALIZE. INITIALIZE has already happened by the time a
// [*target.Expander] is passed in (its targets parsed and sized). Run
// fans PORT-SCAN work out to profile.Parallelism workers bounded by a
// [semaphore.Weighted], feeding each terminal observation to both the
// tracker and the sink, and returns after every work item has reached
// a terminal state or ctx is canceled.
//
// DETECTION is fused into the per-item worker rather than run as a
// genuinely separate, later pass over every open result: the
// aggregator retains only the strongest observation per key and breaks
// ties by keeping the first one seen (§4.10), so a second, enriched
// push for a key already at [scan.StateOpen] would be silently
// dropped. Fusing means [progress.PhaseDetection] is set for the
// duration of one item's banner grab rather than for a clean,
// contiguous stretch of the whole run — concurrent workers can
// legitimately disagree about which phase [progress.Tracker.Phase]
// currently reports. This is an accepted limitation of a single
// global phase value under concurrent fused work, not a bug: an
// external progress consumer sees PORT-SCAN with occasional DETECTION
// flickers rather than two cleanly separated phases.
//
// Cancellation is cooperative (§4.8: "cancellation drains in-flight
// probes to their next terminal state, it does NOT discard
// observations"): Run's errgroup derives its own context from ctx, but
// an in-flight worker that has already sent a probe completes that
// probe's OnResponse/OnTimeout decision before observing cancellation
// on its next suspension point, rather than discarding the half-formed
// result.
func (s *Scheduler) Run(ctx context.Context) error {
	sink := s.ProgressSink
	if sink == nil {
		sink = bridgeSink{}
	}
	bridge := progress.NewBridge(s.Tracker, sink, progress.AdaptiveInterval(s.Tracker.Total()), nil)
	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	bridgeDone := make(chan struct{})
	go func() {
		bridge.Run(bridgeCtx)
		close(bridgeDone)
	}()
	defer func() {
		<-bridgeDone
		cancelBridge()
	}()

	reachable, err := s.runHostDiscovery(ctx)
	if err != nil {
		s.Tracker.SetPhase(progress.PhaseCancelled)
		s.Tracker.Close()
		return err
	}

	s.Tracker.SetPhase(progress.PhasePortScan)

	sem := semaphore.NewWeighted(int64(s.Profile.Parallelism))
	g, gctx := errgroup.WithContext(ctx)

	total := s.Expander.Total()
	for i := uint64(0); i < total; i++ {
		seed, err := s.Expander.At(i)
		if err != nil {
			// Non-fatal per-item error (e.g. a resolution failure
			// surfaced lazily); record and move on rather than
			// aborting the whole scan (§4.1).
			s.Tracker.Complete(1)
			continue
		}

		if reachable != nil && !reachable(seed.Addr) {
			s.Tracker.Complete(1)
			continue
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			result, err := s.Driver.DriveItem(gctx, seed, s.ScanType)
			s.runDetection(gctx, seed, &result)
			s.tagCDN(seed, &result)
			s.Sink.Observe(Observation{
				Seed:        seed,
				Type:        s.ScanType,
				State:       result.State,
				Banner:      result.Banner,
				ServiceInfo: result.ServiceInfo,
				Err:         err,
			})
			s.Tracker.Complete(1)
			if s.Profile.InterProbeDelay > 0 {
				select {
				case <-time.After(s.Profile.InterProbeDelay):
				case <-gctx.Done():
				}
			}
			return nil
		})
	}

	runErr := g.Wait()

	if runErr != nil || ctx.Err() != nil {
		s.Tracker.SetPhase(progress.PhaseCancelled)
	} else {
		s.Tracker.SetPhase(progress.PhaseFinalizing)
		if s.Storage != nil {
			if ferr := s.Storage.Finish(); ferr != nil && runErr == nil {
				runErr = ferr
			}
		}
	}
	s.Tracker.Close()
	return runErr
}

// tagCDN appends the owning CDN/WAF provider, if any, to an open
// result's ServiceInfo (C13). A closed/filtered/unknown result is left
// untouched: provider attribution only matters for a port this scan
// actually found reachable.
func (s *Scheduler) tagCDN(seed target.WorkSeed, result *DriveResult) {
	if s.CDN == nil || result.State != scan.StateOpen {
		return
	}
	provider := s.CDN.Classify(seed.Addr)
	if provider == "" {
		return
	}
	if result.ServiceInfo == "" {
		result.ServiceInfo = "cdn:" + provider
	} else {
		result.ServiceInfo = result.ServiceInfo + " cdn:" + provider
	}
}

// runHostDiscovery executes the optional HOST-DISCOVERY phase and
// narrows s.Tracker's total to the reachable subset's work-item count
// (§4.8: host discovery's output "restricts the port-scan phase").
// Returns a nil predicate when s.HostDiscovery is nil, meaning every
// address passes straight through to PORT-SCAN.
func (s *Scheduler) runHostDiscovery(ctx context.Context) (func(netip.Addr) bool, error) {
	if s.HostDiscovery == nil {
		return nil, nil
	}
	s.Tracker.SetPhase(progress.PhaseHostDiscovery)
	reachable, err := s.HostDiscovery.Discover(ctx, s.Expander)
	if err != nil {
		return nil, err
	}

	if reachable != nil {
		portsLen := uint64(0)
		if total := s.Expander.Total(); s.Expander.TotalAddrs() > 0 {
			portsLen = total / s.Expander.TotalAddrs()
		}
		var upAddrs uint64
		for i := uint64(0); i < s.Expander.TotalAddrs(); i++ {
			addr, err := s.Expander.AddrAt(i)
			if err == nil && reachable(addr) {
				upAddrs++
			}
		}
		s.Tracker.SetTotal(upAddrs * portsLen)
	}
	return reachable, nil
}

// runDetection fills in result.Banner/ServiceInfo for an open result
// that doesn't already carry one (§4.8's DETECTION phase). A driver
// that already grabbed a banner itself (currently only
// [*StatefulDriver], since its dial leaves a live connection in hand)
// is left untouched.
func (s *Scheduler) runDetection(ctx context.Context, seed target.WorkSeed, result *DriveResult) {
	if s.Detect == nil || result.State != scan.StateOpen || result.Banner != nil {
		return
	}
	s.Tracker.SetPhase(progress.PhaseDetection)
	data, info, err := s.Detect.Detect(ctx, seed)
	if err == nil {
		result.Banner = data
		result.ServiceInfo = info
	}
	s.Tracker.SetPhase(progress.PhasePortScan)
}

// bridgeSink is a no-op [progress.Sink] used when the scheduler's
// caller does not need incremental deltas published anywhere external;
// callers that do should construct their own [progress.Bridge] with a
// real sink instead of calling [Scheduler.Run], which only exercises
// the bridge for its side effect of draining completions promptly.
type bridgeSink struct{}

func (bridgeSink) Publish(progress.Delta) {}
