//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: stateful.go's dial-grab-match sequence, pulled out
// into its own driver-independent step so every scan type — not just
// connect-scan — can run DETECTION against an open result (§4.8's
// DETECTION phase: "banner grab + probe matching on open ports only").
//

package scheduler

import (
	"context"
	"net/netip"

	"github.com/doublegate/ProRT-IP-sub016/internal/banner"
	"github.com/doublegate/ProRT-IP-sub016/internal/connpool"
	"github.com/doublegate/ProRT-IP-sub016/internal/probedb"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// Detector runs the DETECTION phase for a work item whose own driver
// didn't already leave a connection open to grab a banner from — every
// scan type but [ScanConnect] (§4.5: a stateless scan's probe frame
// never produces a usable socket, so DETECTION needs its own short
// dial through a pooled connection).
type Detector struct {
	Pool    *connpool.Pool
	Banner  *banner.GrabFunc
	ProbeDB *probedb.Engine
}

// Detect dials seed's address:port, grabs a banner, and matches it
// against the probe database. A dial or grab failure is reported as
// an error and leaves the caller's existing result untouched.
func (d *Detector) Detect(ctx context.Context, seed target.WorkSeed) (data []byte, serviceInfo string, err error) {
	addr := netip.AddrPortFrom(seed.Addr, seed.Port.Number)
	conn, err := d.Pool.Get(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	defer d.Pool.Put(ctx, addr, conn)

	grabbed, err := d.Banner.Call(ctx, conn)
	if err != nil {
		return nil, "", err
	}

	info := ""
	if d.ProbeDB != nil {
		if match, ok := d.ProbeDB.Match(seed.Port.Proto.String(), int(seed.Port.Number), grabbed.Data); ok {
			info = formatServiceMatch(match)
		}
	}
	return grabbed.Data, info, nil
}
