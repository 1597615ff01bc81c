//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: stateful.go's dial-classify shape, generalized into a
// one-shot liveness probe per distinct address rather than per
// (address, port) work item (§4.8's optional HOST-DISCOVERY phase).
//

package scheduler

import (
	"context"
	"net/netip"
	"sync"

	"github.com/doublegate/ProRT-IP-sub016/internal/connpool"
	"github.com/doublegate/ProRT-IP-sub016/internal/neterr"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
)

// ConnectHostDiscoverer implements [HostDiscoverer] with a single TCP
// connect probe per address against a fixed port (§4.8: "a fast
// SYN-or-ICMP sweep"; this module builds the connect-scan variant of
// that sweep, since [*connpool.Pool] and [neterr.Classify] already
// distinguish a refused dial from a timed-out one without a separate
// ICMP-echo builder). Any response at all — including a refusal —
// counts as the address being up; only a timeout counts as down.
type ConnectHostDiscoverer struct {
	Pool *connpool.Pool
	Port uint16
}

var _ HostDiscoverer = &ConnectHostDiscoverer{}

// Discover implements [HostDiscoverer].
func (h *ConnectHostDiscoverer) Discover(ctx context.Context, expander *target.Expander) (func(netip.Addr) bool, error) {
	n := expander.TotalAddrs()
	reachable := make(map[netip.Addr]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := uint64(0); i < n; i++ {
		addr, err := expander.AddrAt(i)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(addr netip.Addr) {
			defer wg.Done()
			up := h.probe(ctx, addr)
			mu.Lock()
			reachable[addr] = up
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	return func(a netip.Addr) bool { return reachable[a] }, nil
}

func (h *ConnectHostDiscoverer) probe(ctx context.Context, addr netip.Addr) bool {
	dst := netip.AddrPortFrom(addr, h.Port)
	conn, err := h.Pool.Get(ctx, dst)
	if err == nil {
		h.Pool.Put(ctx, dst, conn)
		return true
	}
	return neterr.Classify(err) == neterr.EConnRefused
}
