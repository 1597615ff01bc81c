//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: internal/connpool's pooled-dial shape, generalized
// into the scheduler's connect-scan driver (§4.8's stateful path:
// "C4 acquires a connection slot, performs a handshake with a timeout
// drawn from C7... feeds results to C5/C10").
//

package scheduler

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/doublegate/ProRT-IP-sub016/internal/banner"
	"github.com/doublegate/ProRT-IP-sub016/internal/connpool"
	"github.com/doublegate/ProRT-IP-sub016/internal/neterr"
	"github.com/doublegate/ProRT-IP-sub016/internal/probedb"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// StatefulDriver drives the connect-scan type through a pooled
// [*connpool.Pool]: the real verdict comes from the dial outcome
// itself rather than a parsed response frame, since the OS TCP stack
// performs the handshake (§4.5's connect-scan row).
type StatefulDriver struct {
	Pool *connpool.Pool

	// Banner, when non-nil, is called on every successfully dialed
	// connection before it is returned to the pool (§4.8's DETECTION
	// phase: "banner grab + probe matching on open ports only"). Nil
	// disables banner grabbing in this driver; an open result is then
	// left to the scheduler's separate Detect step, when one is set.
	Banner *banner.GrabFunc

	// ProbeDB, when non-nil, matches a grabbed banner against the
	// compiled service probe database (C11). Unused if Banner is nil
	// or the grab itself fails.
	ProbeDB *probedb.Engine
}

// Drive dials seed's address:port through the connection pool,
// classifies the outcome via [scan.ConnectMachine], and — on a
// successful dial — grabs a banner and matches it against the probe
// database before returning the connection to the pool (§4.8's
// DETECTION phase, run inline here rather than as a later second pass:
// deferring it would require re-dialing every open port, since the
// live connection Banner needs does not survive past [connpool.Pool.Put]).
func (d *StatefulDriver) Drive(ctx context.Context, seed target.WorkSeed) (DriveResult, error) {
	machine := &scan.ConnectMachine{}
	addr := netip.AddrPortFrom(seed.Addr, seed.Port.Number)

	conn, err := d.Pool.Get(ctx, addr)
	if err == nil {
		dec := machine.OnDialResult(nil, false)
		result := DriveResult{State: dec.State}

		if d.Banner != nil {
			if grabbed, gerr := d.Banner.Call(ctx, conn); gerr == nil {
				result.Banner = grabbed.Data
				if d.ProbeDB != nil {
					if match, ok := d.ProbeDB.Match(seed.Port.Proto.String(), int(seed.Port.Number), grabbed.Data); ok {
						result.ServiceInfo = formatServiceMatch(match)
					}
				}
			}
		}

		d.Pool.Put(ctx, addr, conn)
		return result, nil
	}

	refused := neterr.Classify(err) == neterr.EConnRefused
	dec := machine.OnDialResult(err, refused)
	if dec.Terminal {
		return DriveResult{State: dec.State}, nil
	}
	return DriveResult{State: scan.StateFiltered}, nil
}

// formatServiceMatch renders a [probedb.ServiceMatch] into the single
// string [aggregate.Observation.ServiceInfo] carries (§3's Observation
// entity has one free-form service field, not a structured record).
func formatServiceMatch(m probedb.ServiceMatch) string {
	s := m.Service
	if m.Product != "" {
		s = fmt.Sprintf("%s %s", s, m.Product)
	}
	if m.Version != "" {
		s = fmt.Sprintf("%s %s", s, m.Version)
	}
	return s
}
