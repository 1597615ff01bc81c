//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: other_examples/9d49f8fa_dnaeon-go-traceroute (raw
// socket lifecycle: create, set options, send, receive with a
// deadline) generalized to a platform-neutral Sender/Receiver pair
// plus a BPF ingress filter (§4.2, C3).
//

// Package rawio sends prebuilt frames over raw sockets and receives
// inbound traffic through a kernel-filtered capture socket. It is the
// only package in this module that opens privileged sockets; every
// other package deals exclusively in []byte frames and netip.Addr.
package rawio

import (
	"context"
	"errors"
	"net/netip"
	"time"
)

// ErrUnsupportedPlatform is returned by [NewSender] and [NewReceiver]
// on platforms without a raw-socket implementation.
var ErrUnsupportedPlatform = errors.New("rawio: unsupported platform")

// ErrClosed is returned by Send/Recv after [Sender.Close] or
// [Receiver.Close].
var ErrClosed = errors.New("rawio: closed")

// Frame is an inbound raw packet plus its arrival metadata.
type Frame struct {
	// Data is the captured packet starting at the IP header.
	Data []byte
	// From is the packet's source address.
	From netip.Addr
	// Received is the time rawio observed the packet.
	Received time.Time
}

// Sender transmits prebuilt IP packets (already including their
// transport-layer checksum) on a raw socket. Implementations batch
// writes internally where the platform makes that cheaper (§4.2:
// "raw batched send").
type Sender interface {
	// Send transmits frame to dst. frame must start at the IP header.
	Send(ctx context.Context, dst netip.Addr, frame []byte) error
	// Close releases the underlying socket.
	Close() error
}

// Receiver reads inbound packets matching an attached ingress filter.
// A Receiver is intended for a single reader goroutine; fan-out to
// multiple consumers happens above this layer (§4.2: "lock-free
// receive").
type Receiver interface {
	// Recv blocks until a frame arrives, ctx is canceled, or the
	// receiver is closed.
	Recv(ctx context.Context) (Frame, error)
	// Close releases the underlying socket.
	Close() error
}

// Family selects the IP version a socket pair operates on.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

// SenderConfig configures [NewSender].
type SenderConfig struct {
	Family Family
	// BatchSize is a requested batch size for sending. The unix
	// sender does not read it: its Send issues one sendto(2) per frame.
	BatchSize int
}

// ReceiverConfig configures [NewReceiver].
type ReceiverConfig struct {
	Family Family
	// Protocol is the IP protocol number to capture (6 = TCP, 17 =
	// UDP, 1 = ICMP, 58 = ICMPv6).
	Protocol int
	// Filter, when non-nil, is installed as a kernel-level classic BPF
	// program restricting which packets reach userspace (§4.2).
	Filter []BPFInstruction
	// ReadBufferBytes sizes the kernel socket receive buffer (SO_RCVBUF).
	ReadBufferBytes int
}

// BPFInstruction mirrors golang.org/x/net/bpf's RawInstruction in
// assembled (Op, Jt, Jf, K) form, decoupling this package's public
// API from the bpf package's assembler types.
type BPFInstruction struct {
	Op uint16
	Jt uint8
	Jf uint8
	K  uint32
}
