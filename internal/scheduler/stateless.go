//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: root config.go's injectable-clock idiom applied to the
// per-probe send/wait/retry loop described in §4.8 ("workers pull work
// items... drive the appropriate state machine") and §4.5's
// response-or-timeout contract.
//

package scheduler

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/decoy"
	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/doublegate/ProRT-IP-sub016/internal/ratectl"
	"github.com/doublegate/ProRT-IP-sub016/internal/rawio"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// ScanType names the probing strategy applied to one (address, port)
// work item (§4.3/§4.5).
type ScanType uint8

const (
	ScanSYN ScanType = iota
	ScanConnect
	ScanFIN
	ScanNULL
	ScanXmas
	ScanACK
	ScanUDP
	// ScanIdle is the zombie/idle scan type (§4.5's Idle/Zombie row,
	// §6.1's scan-type=idle with a required "zombie" field). It never
	// reaches [newMachine] or [StatelessDriver.Drive]: [CombinedDriver]
	// dispatches it straight to an [*IdleDriver] instead, since its
	// verdict comes from a third host's IP-ID side channel rather than
	// a parsed response to this scanner's own probe.
	ScanIdle
)

func (t ScanType) String() string {
	switch t {
	case ScanSYN:
		return "syn"
	case ScanConnect:
		return "connect"
	case ScanFIN:
		return "fin"
	case ScanNULL:
		return "null"
	case ScanXmas:
		return "xmas"
	case ScanACK:
		return "ack"
	case ScanUDP:
		return "udp"
	case ScanIdle:
		return "idle"
	default:
		return "unknown"
	}
}

func newMachine(t ScanType) scan.Machine {
	switch t {
	case ScanSYN:
		return &scan.SYNMachine{}
	case ScanFIN:
		return &scan.StealthMachine{Variant: scan.StealthFIN}
	case ScanNULL:
		return &scan.StealthMachine{Variant: scan.StealthNull}
	case ScanXmas:
		return &scan.StealthMachine{Variant: scan.StealthXmas}
	case ScanACK:
		return &scan.ACKMachine{}
	case ScanUDP:
		return &scan.UDPMachine{}
	default:
		return &scan.SYNMachine{}
	}
}

// StatelessDriver sends one raw probe per work item, correlates the
// reply through a [*rawio.Demultiplexer], and drives the resulting
// [scan.Machine] to a terminal [scan.State] (C2/C3/C5/C6 wired
// together for the stateless scan types, §4.8's data/control flow).
type StatelessDriver struct {
	Sender       rawio.Sender
	Demux        *rawio.Demultiplexer
	Packets      *packet.Pool
	Fingerprints *packet.FingerprintGenerator
	LocalAddr    netip.Addr
	TTL          uint8
	RateCtl      *ratectl.Controller
	TimeNow      func() time.Time
	// Decoy, when non-nil, fans every real probe frame out into
	// additional decoy frames sent alongside it (§4.15). Nil disables
	// decoy sending entirely.
	Decoy *decoy.Composer
}

// Drive sends seed's probe under scan type st, retrying up to
// maxRetries times on timeout per the machine's own retry decision,
// and returns the terminal state the machine settles on.
func (d *StatelessDriver) Drive(ctx context.Context, seed target.WorkSeed, st ScanType, timeout time.Duration, maxRetries int) (scan.State, error) {
	machine := newMachine(st)
	retriesRemaining := maxRetries

	for {
		for !d.RateCtl.Allow() {
			select {
			case <-ctx.Done():
				return scan.StateUnknown, ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}

		params, payloadErr := d.probeParamsFor(seed, st)
		if payloadErr != nil {
			return scan.StateUnknown, payloadErr
		}
		localPort := params.localPort

		ch := d.Demux.Register(localPort)
		t0 := d.now()
		sendErr := d.sendWithDecoys(ctx, seed, params)
		if sendErr != nil {
			d.Demux.Unregister(localPort)
			d.RateCtl.Observe(true, 0)
			return scan.StateUnknown, sendErr
		}

		deadline := time.After(timeout)
	wait:
		select {
		case resp := <-ch:
			d.RateCtl.Observe(false, d.now().Sub(t0))
			dec := machine.OnResponse(resp)
			if dec.Terminal {
				d.Demux.Unregister(localPort)
				return dec.State, nil
			}
			// A non-terminal response keeps the same probe in flight;
			// wait for a second reply without resending.
			goto wait

		case <-deadline:
			d.Demux.Unregister(localPort)
			// Cancellation ends retries; the probe already in flight
			// still reaches a verdict once its timeout elapses.
			if ctx.Err() != nil {
				retriesRemaining = 0
			}
			dec := machine.OnTimeout(retriesRemaining)
			if dec.Terminal {
				return dec.State, nil
			}
			if dec.Retry && retriesRemaining > 0 {
				retriesRemaining--
				continue
			}
			return scan.StateFiltered, nil
		}
	}
}

func (d *StatelessDriver) now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

// tcpFlagsFor returns the TCP flags that scan type st puts on the
// wire (§4.2's flag table / §4.5's per-type rows). Connect is handled
// entirely by the OS stack and never reaches here.
func tcpFlagsFor(st ScanType) (packet.TCPFlags, error) {
	switch st {
	case ScanSYN:
		return packet.FlagSYN, nil
	case ScanFIN:
		return scan.StealthFIN.Flags(), nil
	case ScanNULL:
		return scan.StealthNull.Flags(), nil
	case ScanXmas:
		return scan.StealthXmas.Flags(), nil
	case ScanACK:
		return packet.FlagACK, nil
	default:
		return 0, fmt.Errorf("scheduler: %s has no TCP flag mapping", st)
	}
}

// probeParams holds the transport-layer fields of one probe, fixed for
// the lifetime of that probe attempt regardless of which source
// address ultimately builds the wire frame. Separating this from frame
// construction is what lets a decoy frame share every field with the
// real frame except the source address and the fields the source
// address itself determines (§4.15: "bit-identical except for the
// source address") — both are built from the same probeParams, once.
type probeParams struct {
	protocol  uint8 // 6 = TCP, 17 = UDP
	ipID      uint16
	localPort uint16
	tcp       packet.TCPParams
	udp       packet.UDPParams
	udpPayload []byte
}

// probeParamsFor draws a fresh fingerprint for one probe attempt and
// returns the resulting transport parameters, without yet committing
// to a source address.
func (d *StatelessDriver) probeParamsFor(seed target.WorkSeed, st ScanType) (probeParams, error) {
	if st == ScanUDP {
		fp := d.Fingerprints.NextUDP(seed.Addr, seed.Port.Number)
		payload, perr := scan.ProbePayload(seed.Port.Number)
		if perr != nil {
			return probeParams{}, perr
		}
		return probeParams{
			protocol:  17,
			ipID:      uint16(fp.Cookie),
			localPort: fp.SrcPort,
			udp:       packet.UDPParams{SrcPort: fp.SrcPort, DstPort: seed.Port.Number},
			udpPayload: payload,
		}, nil
	}

	flags, ferr := tcpFlagsFor(st)
	if ferr != nil {
		return probeParams{}, ferr
	}
	fp := d.Fingerprints.NextTCP(seed.Addr, seed.Port.Number)
	return probeParams{
		protocol:  6,
		ipID:      uint16(fp.Seq),
		localPort: fp.SrcPort,
		tcp:       packet.TCPParams{SrcPort: fp.SrcPort, DstPort: seed.Port.Number, Seq: fp.Seq, Flags: flags, Window: 1024},
	}, nil
}

// frameFromParams builds the raw IPv4 frame for params with src as its
// source address. Called once for the real source and once per decoy
// source, always with the same params, so every resulting frame is
// identical but for the fields src itself determines (checksums, the
// IPv4 source field).
func (d *StatelessDriver) frameFromParams(seed target.WorkSeed, p probeParams, src netip.Addr) []byte {
	if p.protocol == 17 {
		udp := packet.BuildUDP(d.Packets, src, seed.Addr, p.udp, p.udpPayload)
		return packet.BuildIPv4(d.Packets, packet.IPv4Params{
			ID: p.ipID, TTL: d.ttl(), Protocol: 17, Src: src, Dst: seed.Addr, DontFragment: true,
		}, udp)
	}
	tcp := packet.BuildTCP(d.Packets, src, seed.Addr, p.tcp, nil)
	return packet.BuildIPv4(d.Packets, packet.IPv4Params{
		ID: p.ipID, TTL: d.ttl(), Protocol: 6, Src: src, Dst: seed.Addr, DontFragment: true,
	}, tcp)
}

// sendWithDecoys sends the real probe described by params to seed.Addr,
// alongside d.Decoy.Count() decoy frames carrying the identical probe
// from different source addresses, interleaved at a random position
// each round (§4.15). It returns the real frame's send error, if any;
// decoy send failures are not reported, since a lost decoy carries no
// scan-correctness consequence.
func (d *StatelessDriver) sendWithDecoys(ctx context.Context, seed target.WorkSeed, params probeParams) error {
	realFrame := d.frameFromParams(seed, params, d.LocalAddr)

	if d.Decoy == nil || d.Decoy.Count() == 0 {
		return d.Sender.Send(ctx, seed.Addr, realFrame)
	}

	frames := make([][]byte, 0, d.Decoy.Count()+1)
	frames = append(frames, realFrame)
	for _, src := range d.Decoy.Sources() {
		frames = append(frames, d.frameFromParams(seed, params, src))
	}

	order := d.Decoy.Interleave(len(frames) - 1)
	var realErr error
	for _, idx := range order {
		err := d.Sender.Send(ctx, seed.Addr, frames[idx])
		if idx == 0 {
			realErr = err
		}
	}
	return realErr
}

func (d *StatelessDriver) ttl() uint8 {
	if d.TTL == 0 {
		return 64
	}
	return d.TTL
}
