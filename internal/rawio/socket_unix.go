//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package rawio

import (
	"context"
	"net/netip"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixSender is a raw-socket [Sender]. It does not batch: each frame
// costs one sendto(2), the portable lowest common denominator across
// unix raw sockets, and the socket's send buffer is left at the
// kernel default.
type unixSender struct {
	fd4, fd6 int
	mu       sync.Mutex
	closed   bool
}

// NewSender opens the raw socket(s) used to transmit prebuilt frames.
// Opening both families up front means a single Sender instance can
// serve a dual-stack scan.
func NewSender(cfg SenderConfig) (Sender, error) {
	fd4, err := openRawSend(unix.AF_INET, unix.IPPROTO_RAW, true)
	if err != nil {
		return nil, err
	}
	fd6, err := openRawSend(unix.AF_INET6, unix.IPPROTO_RAW, false)
	if err != nil {
		unix.Close(fd4)
		return nil, err
	}
	return &unixSender{fd4: fd4, fd6: fd6}, nil
}

func openRawSend(family, protocol int, hdrincl bool) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_RAW, protocol)
	if err != nil {
		return -1, err
	}
	if hdrincl {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
			unix.Close(fd)
			return -1, err
		}
	}
	return fd, nil
}

func (s *unixSender) Send(ctx context.Context, dst netip.Addr, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if dst.Is4() {
		addr := dst.As4()
		sa := &unix.SockaddrInet4{Addr: addr}
		return unix.Sendto(s.fd4, frame, 0, sa)
	}
	addr := dst.As16()
	sa := &unix.SockaddrInet6{Addr: addr}
	return unix.Sendto(s.fd6, frame, 0, sa)
}

func (s *unixSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err4 := unix.Close(s.fd4)
	err6 := unix.Close(s.fd6)
	if err4 != nil {
		return err4
	}
	return err6
}

// unixReceiver wraps a raw capture socket with an optional attached
// classic BPF filter.
type unixReceiver struct {
	fd     int
	family Family

	mu     sync.Mutex
	closed bool
}

// NewReceiver opens a raw socket bound to cfg.Protocol and, if
// cfg.Filter is set, installs it as a kernel-level packet filter via
// SO_ATTACH_FILTER so unrelated traffic never crosses into userspace
// (§4.2).
func NewReceiver(cfg ReceiverConfig) (Receiver, error) {
	family := unix.AF_INET
	if cfg.Family == IPv6 {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_RAW, cfg.Protocol)
	if err != nil {
		return nil, err
	}
	if cfg.ReadBufferBytes > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.ReadBufferBytes)
	}
	if len(cfg.Filter) > 0 {
		if err := attachFilter(fd, cfg.Filter); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	// Non-blocking so Recv can honor ctx cancellation via a short poll
	// loop instead of blocking the goroutine forever in the kernel.
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &unixReceiver{fd: fd, family: cfg.Family}, nil
}

// sockFilter mirrors the kernel's struct sock_filter (linux/filter.h).
type sockFilter struct {
	code uint16
	jt   uint8
	jf   uint8
	k    uint32
}

// sockFprog mirrors the kernel's struct sock_fprog.
type sockFprog struct {
	len       uint16
	_         [6]byte // padding to match amd64 struct layout
	filter    *sockFilter
}

func attachFilter(fd int, prog []BPFInstruction) error {
	raw := make([]sockFilter, len(prog))
	for i, ins := range prog {
		raw[i] = sockFilter{code: ins.Op, jt: ins.Jt, jf: ins.Jf, k: ins.K}
	}
	fprog := sockFprog{len: uint16(len(raw)), filter: &raw[0]}
	_, _, errno := unix.Syscall6(
		unix.SYS_SETSOCKOPT,
		uintptr(fd),
		uintptr(unix.SOL_SOCKET),
		uintptr(unix.SO_ATTACH_FILTER),
		uintptr(unsafe.Pointer(&fprog)),
		unsafe.Sizeof(fprog),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func (r *unixReceiver) Recv(ctx context.Context) (Frame, error) {
	buf := make([]byte, 65535)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		default:
		}

		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return Frame{}, ErrClosed
		}

		n, from, err := unix.Recvfrom(r.fd, buf, 0)
		if err == nil {
			return Frame{Data: append([]byte(nil), buf[:n]...), From: sockaddrToAddr(from), Received: time.Now()}, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return Frame{}, err
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sockaddrToAddr(sa unix.Sockaddr) netip.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(v.Addr)
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(v.Addr)
	default:
		return netip.Addr{}
	}
}

func (r *unixReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return unix.Close(r.fd)
}
