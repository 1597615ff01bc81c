//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: stateful.go's dial-classify-return shape, generalized
// to the idle-scan driver's zombie-relative verdict (§4.5/§4.16).
//

package scheduler

import (
	"context"
	"net/netip"

	"github.com/doublegate/ProRT-IP-sub016/internal/idlescan"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// IdleDriver drives the idle (zombie) scan type through one configured
// zombie host (§6.1: "zombie: address. Required if scan-type = idle").
// Unlike [StatelessDriver] and [StatefulDriver] it needs no per-item
// response demultiplexing: [idlescan.Driver.Probe] already returns a
// terminal verdict from the zombie's IP-ID side channel.
type IdleDriver struct {
	Driver *idlescan.Driver
	Zombie netip.Addr
}

// Drive runs one idle-scan round against seed through d.Zombie,
// translating [idlescan.Result] into the shared [scan.State] vocabulary.
// A non-incrementing or randomized zombie surfaces as
// [idlescan.ErrUnsuitableZombie], propagated unchanged so callers can
// treat it per §7's fatal-at-start UnsuitableZombie policy.
func (d *IdleDriver) Drive(ctx context.Context, seed target.WorkSeed) (DriveResult, error) {
	result, err := d.Driver.Probe(ctx, d.Zombie, seed.Addr, seed.Port.Number)
	if err != nil {
		return DriveResult{State: scan.StateUnknown}, err
	}

	switch result {
	case idlescan.ResultOpen:
		return DriveResult{State: scan.StateOpen}, nil
	case idlescan.ResultClosedOrFiltered:
		// The side channel cannot distinguish an active refusal from a
		// silent drop (§4.5's "closed/filtered" bucket); StateFiltered
		// is the closer of the two existing states since a closed port
		// is a positive result this driver never actually observes.
		return DriveResult{State: scan.StateFiltered}, nil
	default:
		return DriveResult{State: scan.StateUnknown}, nil
	}
}
