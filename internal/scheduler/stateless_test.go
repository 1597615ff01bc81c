// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"math/rand"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/decoy"
	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/doublegate/ProRT-IP-sub016/internal/ratectl"
	"github.com/doublegate/ProRT-IP-sub016/internal/rawio"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	dsts []netip.Addr
}

func (s *recordingSender) Send(_ context.Context, dst netip.Addr, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dsts = append(s.dsts, dst)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dsts)
}

func buildDriver(t *testing.T, sender rawio.Sender, dc *decoy.Composer) *StatelessDriver {
	t.Helper()
	return &StatelessDriver{
		Sender:       sender,
		Demux:        rawio.NewDemultiplexer(),
		Packets:      packet.NewPool(16, 1500),
		Fingerprints: packet.NewFingerprintGenerator(rand.New(rand.NewSource(1))),
		LocalAddr:    netip.MustParseAddr("198.51.100.1"),
		RateCtl:      ratectl.New(10, 10*time.Millisecond, 1, 1000, time.Now),
		Decoy:        dc,
	}
}

func testSeed() target.WorkSeed {
	return target.WorkSeed{Addr: netip.MustParseAddr("203.0.113.10"), Port: target.Port{Number: 80, Proto: target.TCP}}
}

func TestSendWithDecoysSendsOnlyRealFrameWhenNoDecoyConfigured(t *testing.T) {
	sender := &recordingSender{}
	d := buildDriver(t, sender, nil)

	params, err := d.probeParamsFor(testSeed(), ScanSYN)
	require.NoError(t, err)

	err = d.sendWithDecoys(context.Background(), testSeed(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, sender.count())
}

func TestSendWithDecoysSendsRealFramePlusConfiguredDecoyCount(t *testing.T) {
	decoySet := []netip.Addr{
		netip.MustParseAddr("203.0.113.50"),
		netip.MustParseAddr("203.0.113.51"),
		netip.MustParseAddr("203.0.113.52"),
	}
	dc, err := decoy.NewComposer(decoySet, 3, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	sender := &recordingSender{}
	d := buildDriver(t, sender, dc)

	params, err := d.probeParamsFor(testSeed(), ScanSYN)
	require.NoError(t, err)

	err = d.sendWithDecoys(context.Background(), testSeed(), params)
	require.NoError(t, err)
	assert.Equal(t, 4, sender.count())
}

func TestFrameFromParamsReusesPortButDiffersPerSource(t *testing.T) {
	d := buildDriver(t, &recordingSender{}, nil)
	seed := testSeed()

	params, err := d.probeParamsFor(seed, ScanSYN)
	require.NoError(t, err)

	real := d.frameFromParams(seed, params, d.LocalAddr)
	decoySrc := netip.MustParseAddr("203.0.113.99")
	dec := d.frameFromParams(seed, params, decoySrc)

	assert.Equal(t, params.tcp.SrcPort, params.localPort, "localPort tracks the probe's own source port")
	assert.NotEqual(t, real, dec, "frames for different sources must differ (checksum + address fields)")
}
