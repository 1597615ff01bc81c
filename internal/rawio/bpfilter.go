// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: golang.org/x/net/bpf's classic-BPF assembler, used
// here to build an ingress filter restricting captured packets to
// replies addressed to the scan's own ephemeral source ports (§4.2).

package rawio

import "golang.org/x/net/bpf"

// ipv4DestPortOffset is the byte offset of the TCP/UDP destination
// port within a captured IPv4 datagram, assuming no IP options (IHL ==
// 5), which holds for every packet [packet.BuildIPv4] emits.
const ipv4DestPortOffset = 20 + 2 // 20-byte IP header + dest-port field offset within TCP/UDP

// BuildPortRangeFilter compiles a classic BPF program that accepts
// only packets whose destination port falls within [lo, hi], and
// rejects everything else. The scan engine uses this so a raw
// capture socket never delivers unrelated host traffic to userspace
// (§4.2).
func BuildPortRangeFilter(lo, hi uint16) ([]BPFInstruction, error) {
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: ipv4DestPortOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpLessThan, Val: uint32(lo), SkipTrue: 3},
		bpf.LoadAbsolute{Off: ipv4DestPortOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpGreaterThan, Val: uint32(hi), SkipTrue: 1},
		bpf.RetConstant{Val: 65535},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil, err
	}
	return toRawInstructions(raw), nil
}

func toRawInstructions(raw []bpf.RawInstruction) []BPFInstruction {
	out := make([]BPFInstruction, len(raw))
	for i, r := range raw {
		out[i] = BPFInstruction{Op: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K}
	}
	return out
}
