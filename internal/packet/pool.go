// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop's Config-as-dependency-injection
// shape, generalized into a bounded LIFO buffer pool (§5).

package packet

import "sync"

// DefaultBufferCapacity is the per-buffer capacity used when a pool is
// constructed with bufCap <= 0: large enough for any frame this
// package builds (Ethernet MTU, §5).
const DefaultBufferCapacity = 1500

// DefaultPoolSize is the number of buffers a pool retains before it
// starts discarding returned buffers to the garbage collector (§5:
// "default pool size 100-1000").
const DefaultPoolSize = 256

// Pool is a bounded LIFO pool of fixed-capacity byte buffers. Unlike
// [sync.Pool], a Pool has a hard upper bound on retained buffers and
// never discards them under GC pressure, giving predictable memory
// behavior for a long-running scan (§5).
//
// A zero Pool is not usable; construct one with [NewPool]. A Pool is
// safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	free    [][]byte
	maxSize int
	bufCap  int
}

// NewPool returns a Pool holding at most maxSize buffers of capacity
// bufCap. maxSize <= 0 uses [DefaultPoolSize]; bufCap <= 0 uses
// [DefaultBufferCapacity].
func NewPool(maxSize, bufCap int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultPoolSize
	}
	if bufCap <= 0 {
		bufCap = DefaultBufferCapacity
	}
	return &Pool{
		free:    make([][]byte, 0, maxSize),
		maxSize: maxSize,
		bufCap:  bufCap,
	}
}

// Acquire returns a buffer of length 0 and capacity p.bufCap, reused
// from the pool when available or freshly allocated otherwise.
func (p *Pool) Acquire() []byte {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return make([]byte, 0, p.bufCap)
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	return buf[:0]
}

// Release returns buf to the pool for reuse. Buffers whose capacity
// is smaller than p.bufCap are dropped rather than retained, since
// they could not satisfy a future Acquire. Release is a no-op once
// the pool already holds maxSize buffers.
func (p *Pool) Release(buf []byte) {
	if cap(buf) < p.bufCap {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.maxSize {
		return
	}
	p.free = append(p.free, buf)
}

// Len reports the number of buffers currently held in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
