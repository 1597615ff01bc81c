// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/doublegate/ProRT-IP-sub016"
	"github.com/doublegate/ProRT-IP-sub016/internal/banner"
	"github.com/doublegate/ProRT-IP-sub016/internal/connpool"
	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bannerConn is a minimal [net.Conn] that serves a fixed banner once,
// standing in for a real socket's first read.
type bannerConn struct {
	r *bytes.Reader
}

func (c *bannerConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *bannerConn) Write(b []byte) (int, error) { return len(b), nil }
func (c *bannerConn) Close() error                { return nil }
func (c *bannerConn) LocalAddr() net.Addr         { return nil }
func (c *bannerConn) RemoteAddr() net.Addr        { return nil }
func (c *bannerConn) SetDeadline(time.Time) error      { return nil }
func (c *bannerConn) SetReadDeadline(time.Time) error  { return nil }
func (c *bannerConn) SetWriteDeadline(time.Time) error { return nil }

type fakeDialer struct {
	conn net.Conn
	err  error
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.conn, d.err
}

// TestStatefulDriverGrabsBannerOnOpenPort is the direct regression test
// for a maintainer review's complaint that the stateful (connect-scan)
// path never called C12 on a successfully dialed open port: it now
// grabs a banner from the dialed connection, fusing DETECTION's
// connect-scan half into the same [StatefulDriver.Drive] call.
func TestStatefulDriverGrabsBannerOnOpenPort(t *testing.T) {
	conn := &bannerConn{r: bytes.NewReader([]byte("SSH-2.0-OpenSSH_9.0\r\n"))}
	cfg := prort.NewConfig()
	dialer := &fakeDialer{conn: conn}
	connect := connpool.NewConnectFunc(cfg, dialer, "tcp")
	pool := connpool.NewPool(cfg, connect, 1)

	driver := &StatefulDriver{
		Pool:   pool,
		Banner: banner.NewGrabFunc(cfg),
	}

	seed := target.WorkSeed{
		Addr: netip.MustParseAddr("203.0.113.5"),
		Port: target.Port{Number: 22, Proto: target.TCP},
	}

	result, err := driver.Drive(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, scan.StateOpen, result.State)
	assert.Contains(t, string(result.Banner), "SSH-2.0-OpenSSH")
}
