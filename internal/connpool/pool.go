//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: connect.go's Config-driven Func shape, generalized
// into a bounded per-destination connection cache (§4.4, C4: "a
// bounded connection pool... reused across repeated service-detection
// probes against the same open port").
//

package connpool

import (
	"context"
	"net"
	"net/netip"
	"sync"

	"github.com/doublegate/ProRT-IP-sub016"
)

// Pool caches open connections keyed by destination, bounded by
// MaxPerHost, so repeated service-detection probes against the same
// port (§4.11) reuse a connection instead of paying a fresh dial. A
// lease not returned to the pool (because the caller decided it's
// unhealthy) is simply closed and forgotten rather than recreated
// here — callers dial a replacement through [ConnectFunc] directly.
type Pool struct {
	connect *ConnectFunc
	dial    prort.Func[netip.AddrPort, net.Conn]

	mu         sync.Mutex
	perHost    map[netip.AddrPort][]pooledConn
	maxPerHost int
}

type pooledConn struct {
	conn   *cancelWatchedConn
	cancel context.CancelFunc
}

// NewPool returns a Pool dialing with connect and retaining at most
// maxPerHost idle connections per destination. maxPerHost <= 0 means
// no connections are retained; every Get dials fresh.
//
// Get's dial path is [prort.Compose2](connect, observe): every freshly
// dialed connection is wrapped for I/O logging (§4.4) before it ever
// reaches a caller. [CancelWatchFunc] is deliberately NOT part of this
// pipeline — it is applied separately in [Pool.Put], scoped to the
// pool's own watchCtx rather than the dialing request's context, so an
// idle connection survives past the request that created it instead of
// closing the moment that request's context ends.
func NewPool(cfg *prort.Config, connect *ConnectFunc, maxPerHost int) *Pool {
	return &Pool{
		connect:    connect,
		dial:       prort.Compose2[netip.AddrPort, net.Conn, net.Conn](connect, NewObserveConnFunc(cfg)),
		perHost:    make(map[netip.AddrPort][]pooledConn),
		maxPerHost: maxPerHost,
	}
}

// Get returns an idle connection to address if one is cached,
// otherwise dials a fresh one. The caller must call [Pool.Put] or
// close the connection directly when done.
func (p *Pool) Get(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
	p.mu.Lock()
	if cs := p.perHost[address]; len(cs) > 0 {
		last := cs[len(cs)-1]
		p.perHost[address] = cs[:len(cs)-1]
		p.mu.Unlock()
		return last.conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dial.Call(ctx, address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Put returns conn to the pool for reuse against address, watching
// lifecycle against watchCtx so a canceled scan run closes every idle
// connection it holds rather than leaking sockets. If the pool is
// already at maxPerHost for address, conn is closed immediately.
func (p *Pool) Put(watchCtx context.Context, address netip.AddrPort, conn net.Conn) {
	if p.maxPerHost <= 0 {
		conn.Close()
		return
	}
	watchCtx, cancel := context.WithCancel(watchCtx)
	watched := (&CancelWatchFunc{})
	wrapped, err := watched.Call(watchCtx, conn)
	if err != nil {
		cancel()
		conn.Close()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cs := p.perHost[address]
	if len(cs) >= p.maxPerHost {
		cancel()
		wrapped.Close()
		return
	}
	p.perHost[address] = append(cs, pooledConn{conn: wrapped.(*cancelWatchedConn), cancel: cancel})
}

// Close releases every idle connection held by the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, cs := range p.perHost {
		for _, c := range cs {
			c.cancel()
			c.conn.Close()
		}
		delete(p.perHost, addr)
	}
}

// Len reports the number of idle connections currently cached across
// all destinations.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, cs := range p.perHost {
		n += len(cs)
	}
	return n
}
