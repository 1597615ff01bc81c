// SPDX-License-Identifier: GPL-3.0-or-later

// Package target turns target expressions and port sets into a lazy,
// restartable sequence of (address, port) work items (§4.1, C1).
package target

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Protocol is the transport protocol a [Port] belongs to.
type Protocol uint8

// Supported protocols.
const (
	TCP Protocol = iota
	UDP
)

// String implements [fmt.Stringer].
func (p Protocol) String() string {
	if p == UDP {
		return "udp"
	}
	return "tcp"
}

// Port is a single protocol-tagged port number.
type Port struct {
	Number uint16
	Proto  Protocol
}

// PortSet is an ordered sequence of protocol-tagged port numbers.
//
// Duplicates are coalesced and iteration order is stable: ports appear
// in the order their range, union member, or named-set entry was added,
// with later duplicates dropped rather than moved (§3).
type PortSet struct {
	ports []Port
	// seen tracks membership with one fixed 65536-bit vector per
	// protocol rather than a map[Port]struct{}: port numbers only ever
	// range 1..65535, so a bitset gives O(1) test-and-set at a fixed,
	// small memory cost instead of per-entry map bucket overhead, which
	// matters once a full port range (AddRange(1, 65535)) is unioned
	// with several named sets.
	seen [2]*bitset.BitSet
}

// NewPortSet returns an empty [PortSet].
func NewPortSet() *PortSet {
	// Indexed by Protocol (TCP=0, UDP=1).
	return &PortSet{seen: [2]*bitset.BitSet{bitset.New(65536), bitset.New(65536)}}
}

// Len returns the number of distinct ports in the set.
func (s *PortSet) Len() int {
	return len(s.ports)
}

// Ports returns the ports in stable iteration order. The returned slice
// must not be mutated by the caller.
func (s *PortSet) Ports() []Port {
	return s.ports
}

// At returns the i-th port in iteration order.
func (s *PortSet) At(i int) Port {
	return s.ports[i]
}

// Add inserts a single port, coalescing it if already present.
func (s *PortSet) Add(proto Protocol, number uint16) error {
	if number == 0 {
		return fmt.Errorf("%w: port 0 is not a valid port number", ErrInvalidExpression)
	}
	p := Port{Number: number, Proto: proto}
	bits := s.seen[proto]
	if bits.Test(uint(number)) {
		return nil
	}
	bits.Set(uint(number))
	s.ports = append(s.ports, p)
	return nil
}

// AddRange inserts every port in [lo, hi] inclusive.
func (s *PortSet) AddRange(proto Protocol, lo, hi uint16) error {
	if lo == 0 || hi == 0 {
		return fmt.Errorf("%w: port 0 is not a valid port number", ErrInvalidExpression)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	for n := uint32(lo); n <= uint32(hi); n++ {
		if err := s.Add(proto, uint16(n)); err != nil {
			return err
		}
	}
	return nil
}

// AddNamed inserts one of the predefined named port sets ("top100",
// "top1000", "web", "database", "common").
func (s *PortSet) AddNamed(name string, proto Protocol) error {
	ports, ok := namedPortSets[name]
	if !ok {
		return fmt.Errorf("%w: unknown named port set %q", ErrInvalidExpression, name)
	}
	for _, n := range ports {
		if err := s.Add(proto, n); err != nil {
			return err
		}
	}
	return nil
}

// ParsePortExpr parses a comma-separated port expression such as
// "22,80,1000-2000,top100" for the given protocol and adds the result
// to the set. Individual ranges are validated against the 1..65535
// boundary (§8: "0 and 65536 rejected at configuration").
func (s *PortSet) ParsePortExpr(expr string, proto Protocol) error {
	for _, field := range strings.Split(expr, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if _, ok := namedPortSets[field]; ok {
			if err := s.AddNamed(field, proto); err != nil {
				return err
			}
			continue
		}
		lo, hi, err := parsePortRange(field)
		if err != nil {
			return err
		}
		if err := s.AddRange(proto, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

func parsePortRange(field string) (lo, hi uint16, err error) {
	if idx := strings.IndexByte(field, '-'); idx >= 0 {
		loN, err1 := strconv.Atoi(field[:idx])
		hiN, err2 := strconv.Atoi(field[idx+1:])
		if err1 != nil || err2 != nil {
			return 0, 0, fmt.Errorf("%w: malformed port range %q", ErrInvalidExpression, field)
		}
		return validatePort(loN), validatePort(hiN), nil
	}
	n, err1 := strconv.Atoi(field)
	if err1 != nil {
		return 0, 0, fmt.Errorf("%w: malformed port %q", ErrInvalidExpression, field)
	}
	p := validatePort(n)
	return p, p, nil
}

func validatePort(n int) uint16 {
	if n < 1 || n > 65535 {
		return 0
	}
	return uint16(n)
}

// namedPortSets holds the curated named port lists. top1000 extends
// top100 with the remaining additions, mirroring the well-known scanner
// convention of ranking ports by observed real-world prevalence.
var namedPortSets = map[string][]uint16{
	"web":      {80, 443, 8080, 8000, 8443, 8888, 9000, 3000},
	"database": {3306, 5432, 1433, 27017, 6379, 1521, 50000},
	"common":   {21, 22, 23, 25, 53, 80, 110, 143, 443, 993, 995},
}

func init() {
	top100 := []uint16{
		7, 9, 13, 21, 22, 23, 25, 26, 37, 53, 79, 80, 81, 88, 106, 110, 111, 113,
		119, 135, 139, 143, 144, 179, 199, 389, 427, 443, 444, 445, 465, 513, 514,
		515, 543, 544, 548, 554, 587, 631, 646, 873, 990, 993, 995, 1025, 1026,
		1027, 1028, 1029, 1110, 1433, 1720, 1723, 1755, 1900, 2000, 2001, 2049,
		2121, 2717, 3000, 3128, 3306, 3389, 3986, 4899, 5000, 5009, 5051, 5060,
		5101, 5190, 5357, 5432, 5631, 5666, 5800, 5900, 6000, 6001, 6646, 7070,
		8000, 8008, 8009, 8080, 8081, 8443, 8888, 9100, 9999, 10000, 32768, 49152,
		49153, 49154, 49155, 49156, 49157,
	}
	namedPortSets["top100"] = top100

	additional := []uint16{
		1, 2, 3, 4, 5, 6, 11, 12, 15, 17, 18, 19, 20, 24, 27, 28, 29, 31, 32, 33,
		35, 36, 38, 39, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51, 52, 54, 55,
		56, 57, 58, 59, 60, 61, 62, 63, 64, 65, 66, 67, 68, 69, 70, 71, 72, 73,
	}
	top1000 := make([]uint16, 0, len(top100)+len(additional))
	seen := make(map[uint16]struct{}, len(top100)+len(additional))
	for _, p := range append(append([]uint16{}, top100...), additional...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		top1000 = append(top1000, p)
	}
	sort.Slice(top1000, func(i, j int) bool { return top1000[i] < top1000[j] })
	namedPortSets["top1000"] = top1000
}
