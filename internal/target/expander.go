// SPDX-License-Identifier: GPL-3.0-or-later

package target

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
)

// WorkSeed is the (address, port) half of a [Work Item] (§3); the
// scheduler pairs it with the configured scan type and probe-kind.
type WorkSeed struct {
	Addr     netip.Addr
	Port     Port
	Hostname string
	OrigExpr string
}

// Expander expands target expressions into a lazy, restartable sequence
// of (address, port) work items (C1). Addresses are indexed
// arithmetically rather than materialized, so huge CIDR blocks cost
// O(1) per lookup; only hostname resolutions and (optionally)
// deduplicated sources are held in memory.
//
// Ports-major vs. addresses-major ordering is selected once via
// [NewExpander] and affects [Expander.At]'s global index mapping:
// ports-major spreads probes across hosts before repeating a host,
// reducing per-host probe bursts for stealth (§4.1).
type Expander struct {
	ports      *PortSet
	portsMajor bool
	dedup      *dedup

	entries    []expandedSource
	prefixSums []uint64 // prefixSums[i] = total addresses before entries[i]
	totalAddrs uint64

	// Errors collects non-fatal per-target errors (ResolutionError,
	// InvalidExpression) from the expressions passed to AddTarget. Lines
	// inside a target file that fail to parse or resolve are skipped
	// without an entry here.
	Errors []error
}

// NewExpander returns an [*Expander] for the given port set. When
// dedupeAddrs is true, addresses that reappear across target
// expressions are coalesced using a bounded Bloom filter (§4.1);
// expectedAddrs sizes the filter's false-positive rate.
func NewExpander(ports *PortSet, portsMajor, dedupeAddrs bool, expectedAddrs uint64) *Expander {
	e := &Expander{ports: ports, portsMajor: portsMajor}
	if dedupeAddrs {
		e.dedup = newDedup(expectedAddrs)
	}
	return e
}

// AddTarget parses and expands expr, appending its addresses to the
// expander. A malformed expression or an unresolvable hostname is
// appended to [Expander.Errors] and does not abort the caller's loop
// over remaining targets (§4.1).
func (e *Expander) AddTarget(ctx context.Context, resolver Resolver, expr string) {
	t, err := Parse(expr)
	if err != nil {
		e.Errors = append(e.Errors, err)
		return
	}
	expanded, err := t.Expand(ctx, resolver)
	if err != nil {
		e.Errors = append(e.Errors, err)
		return
	}
	for _, ex := range expanded {
		e.addSource(ex)
	}
}

func (e *Expander) addSource(ex expandedSource) {
	if e.dedup != nil && ex.source.Count() <= dedupMaterializeCap {
		addrs := make([]netip.Addr, ex.source.Count())
		for i := range addrs {
			addrs[i] = ex.source.At(uint64(i))
		}
		fresh := e.dedup.filterNew(addrs)
		if len(fresh) == 0 {
			return
		}
		ex.source = addressList{addrs: fresh}
	}
	e.prefixSums = append(e.prefixSums, e.totalAddrs)
	e.totalAddrs += ex.source.Count()
	e.entries = append(e.entries, ex)
}

// TotalAddrs returns the number of distinct addresses expanded so far.
func (e *Expander) TotalAddrs() uint64 {
	return e.totalAddrs
}

// Total returns the total number of work items: addresses times ports.
// This is fixed once every call to [Expander.AddTarget] has returned
// (§3: "total is fixed once §1 expansion finishes").
func (e *Expander) Total() uint64 {
	return e.totalAddrs * uint64(e.ports.Len())
}

// At returns the work item seed at global index i, 0 <= i < Total().
func (e *Expander) At(i uint64) (WorkSeed, error) {
	total := e.Total()
	if i >= total {
		return WorkSeed{}, fmt.Errorf("target: index %d out of range [0, %d)", i, total)
	}
	portsLen := uint64(e.ports.Len())

	var addrIdx, portIdx uint64
	if e.portsMajor {
		portIdx = i / e.totalAddrs
		addrIdx = i % e.totalAddrs
	} else {
		addrIdx = i / portsLen
		portIdx = i % portsLen
	}

	entry, localIdx := e.entryAt(addrIdx)
	return WorkSeed{
		Addr:     entry.source.At(localIdx),
		Port:     e.ports.At(int(portIdx)),
		Hostname: entry.hostname,
		OrigExpr: entry.origExpr,
	}, nil
}

// entryAt maps a global address index to the [expandedSource] entry
// that owns it and that entry's own local index, shared by [At] and
// [AddrAt] so both index the same (entries, prefixSums) table the same
// way.
func (e *Expander) entryAt(addrIdx uint64) (expandedSource, uint64) {
	srcIdx := sort.Search(len(e.prefixSums), func(k int) bool {
		next := e.totalAddrs
		if k+1 < len(e.prefixSums) {
			next = e.prefixSums[k+1]
		}
		return addrIdx < next
	})
	return e.entries[srcIdx], addrIdx - e.prefixSums[srcIdx]
}

// AddrAt returns the i-th distinct address in iteration order, 0 <= i <
// TotalAddrs(), independent of the port set — the lookup HOST-DISCOVERY
// needs, since it probes each address once rather than per (address,
// port) work item (§4.8's "optional HOST-DISCOVERY... restricts the
// port-scan phase").
func (e *Expander) AddrAt(i uint64) (netip.Addr, error) {
	if i >= e.totalAddrs {
		return netip.Addr{}, fmt.Errorf("target: address index %d out of range [0, %d)", i, e.totalAddrs)
	}
	entry, localIdx := e.entryAt(i)
	return entry.source.At(localIdx), nil
}
