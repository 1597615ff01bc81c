//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: internal/scheduler/stateless.go's probe-send/wait-for-
// reply loop and internal/rawio's frame parsing, generalized into the
// zombie IP-ID sampling round-trip described in §4.5/§4.16.
//

// Package idlescan implements the idle (zombie) scan driver: it infers
// a target port's state from the side effect a spoofed probe has on a
// third host's globally incrementing IP-ID counter, without the target
// ever seeing this scanner's real address (C16).
package idlescan

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/doublegate/ProRT-IP-sub016/internal/rawio"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
)

// ErrUnsuitableZombie is returned when the configured zombie's IP-ID
// counter does not increment in the single, predictable steps this
// scan type depends on — either because it never moves (non-
// incrementing) or because the observed delta suggests foreign traffic
// to the zombie (randomized) (§4.16; §7's UnsuitableZombie: "Fatal at
// start (the scan type requires a working zombie)").
var ErrUnsuitableZombie = errors.New("idlescan: zombie IP-ID counter is non-incrementing or randomized")

// Result is the inferred state of one idle-scanned port.
type Result uint8

const (
	ResultUnknown Result = iota
	ResultOpen
	ResultClosedOrFiltered
)

func (r Result) String() string {
	switch r {
	case ResultOpen:
		return "open"
	case ResultClosedOrFiltered:
		return "closed-or-filtered"
	default:
		return "unknown"
	}
}

// zombieProbePort is the fixed TCP port this driver probes on the
// zombie to elicit a reply. Any port works: the probe is an unsolicited
// SYN|ACK, and a conforming TCP stack answers it with an RST regardless
// of whether anything listens on that port, without that RST touching
// any connection state (§4.5's "predictable global IP-ID counter" —
// sampling it must never itself consume a zombie connection slot).
const zombieProbePort = 16384

// Driver drives the idle-scan round-trip against one zombie host
// (§4.16).
type Driver struct {
	Sender       rawio.Sender
	Receiver     rawio.Receiver
	Packets      *packet.Pool
	Fingerprints *packet.FingerprintGenerator
	LocalAddr    netip.Addr
	TTL          uint8
	// SampleTimeout bounds how long sampleIPID waits for the zombie's
	// reply. Zero means 2s.
	SampleTimeout time.Duration
	// SettleDelay is how long Probe waits, after spoofing the SYN to
	// the target, before resampling the zombie — giving the target
	// time to reply to the zombie if the port is open. Zero means
	// 100ms.
	SettleDelay time.Duration
	TimeNow     func() time.Time
}

func (d *Driver) now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

func (d *Driver) sampleTimeout() time.Duration {
	if d.SampleTimeout > 0 {
		return d.SampleTimeout
	}
	return 2 * time.Second
}

func (d *Driver) settleDelay() time.Duration {
	if d.SettleDelay > 0 {
		return d.SettleDelay
	}
	return 100 * time.Millisecond
}

func (d *Driver) ttl() uint8 {
	if d.TTL == 0 {
		return 64
	}
	return d.TTL
}

// ipIDDelta returns the forward distance from a to b across the
// uint16 IP-ID space, so a counter wraparound (65535 -> 0) still reads
// as an increment of 1 rather than a huge negative jump.
func ipIDDelta(a, b uint16) uint16 { return b - a }

// sampleIPID sends an unsolicited SYN|ACK to zombie and returns the
// IP-ID of the RST it elicits (§4.16: "probe zombie -> record IP-ID").
func (d *Driver) sampleIPID(ctx context.Context, zombie netip.Addr) (uint16, error) {
	fp := d.Fingerprints.NextTCP(zombie, zombieProbePort)
	tcp := packet.BuildTCP(d.Packets, d.LocalAddr, zombie, packet.TCPParams{
		SrcPort: fp.SrcPort, DstPort: zombieProbePort, Seq: fp.Seq,
		Flags: packet.FlagSYN | packet.FlagACK, Window: 1024,
	}, nil)
	ip := packet.BuildIPv4(d.Packets, packet.IPv4Params{
		ID: uint16(fp.Seq), TTL: d.ttl(), Protocol: 6,
		Src: d.LocalAddr, Dst: zombie, DontFragment: true,
	}, tcp)

	if err := d.Sender.Send(ctx, zombie, ip); err != nil {
		return 0, fmt.Errorf("idlescan: sampling zombie %s: %w", zombie, err)
	}

	deadline := d.now().Add(d.sampleTimeout())
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("idlescan: timed out waiting for zombie %s to reply", zombie)
		}
		rctx, cancel := context.WithTimeout(ctx, remaining)
		frame, err := d.Receiver.Recv(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("idlescan: receiving zombie %s reply: %w", zombie, err)
		}
		if frame.From != zombie {
			continue
		}
		resp, dstPort, ok := rawio.ParseIPv4Reply(frame.Data)
		if !ok || resp.Kind != scan.ResponseKindTCP || resp.TCPFlags&packet.FlagRST == 0 || dstPort != fp.SrcPort {
			continue
		}
		id, ok := rawio.IPv4ID(frame.Data)
		if !ok {
			continue
		}
		return id, nil
	}
}

// spoofSYN sends a SYN toward target:targetPort with zombie as the
// frame's source address, so a reply (if any) lands on the zombie
// rather than on this scanner (§4.16: "spoof probe-to-target-from-
// zombie (composed via the builder with the zombie's address as
// source)").
func (d *Driver) spoofSYN(ctx context.Context, zombie, target netip.Addr, targetPort uint16) error {
	fp := d.Fingerprints.NextTCP(target, targetPort)
	tcp := packet.BuildTCP(d.Packets, zombie, target, packet.TCPParams{
		SrcPort: fp.SrcPort, DstPort: targetPort, Seq: fp.Seq, Flags: packet.FlagSYN, Window: 1024,
	}, nil)
	ip := packet.BuildIPv4(d.Packets, packet.IPv4Params{
		ID: uint16(fp.Seq), TTL: d.ttl(), Protocol: 6,
		Src: zombie, Dst: target, DontFragment: true,
	}, tcp)
	return d.Sender.Send(ctx, target, ip)
}

// CheckSuitability samples zombie's IP-ID twice, with no spoofed probe
// in between, and confirms the counter advanced by exactly one — i.e.
// this driver's own sampling probes are the only traffic moving it
// (§4.16: "detects zombies unsuitable for idle-scanning"). Idle-scan
// configuration errors are global and fatal at scan start (§7), so
// callers should run this once before any [Driver.Probe] call and
// abort the whole scan on failure.
func (d *Driver) CheckSuitability(ctx context.Context, zombie netip.Addr) error {
	before, err := d.sampleIPID(ctx, zombie)
	if err != nil {
		return err
	}
	after, err := d.sampleIPID(ctx, zombie)
	if err != nil {
		return err
	}
	if ipIDDelta(before, after) != 1 {
		return ErrUnsuitableZombie
	}
	return nil
}

// Probe runs one idle-scan round against target:targetPort via zombie
// (§4.5's Idle/Zombie row, §4.16): sample the zombie's IP-ID, spoof a
// SYN to target from the zombie, resample the zombie, and interpret
// the delta. A delta of zero means the zombie didn't move at all
// between samples and is reported as [ErrUnsuitableZombie] rather than
// a scan result, since that can only mean the zombie stopped
// incrementing partway through (§4.16).
func (d *Driver) Probe(ctx context.Context, zombie, target netip.Addr, targetPort uint16) (Result, error) {
	before, err := d.sampleIPID(ctx, zombie)
	if err != nil {
		return ResultUnknown, err
	}

	if err := d.spoofSYN(ctx, zombie, target, targetPort); err != nil {
		return ResultUnknown, err
	}

	select {
	case <-time.After(d.settleDelay()):
	case <-ctx.Done():
		return ResultUnknown, ctx.Err()
	}

	after, err := d.sampleIPID(ctx, zombie)
	if err != nil {
		return ResultUnknown, err
	}

	switch delta := ipIDDelta(before, after); {
	case delta == 0:
		return ResultUnknown, ErrUnsuitableZombie
	case delta == 1:
		return ResultClosedOrFiltered, nil
	default:
		return ResultOpen, nil
	}
}
