// SPDX-License-Identifier: GPL-3.0-or-later

package resolve

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/doublegate/ProRT-IP-sub016"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	addrs map[string][]netip.Addr
	err   error
}

func (f fakeLookup) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.addrs[host], nil
}

func TestLookupAddrsSuccess(t *testing.T) {
	r := &Resolver{
		Lookup:        fakeLookup{addrs: map[string][]netip.Addr{"example.com": {netip.MustParseAddr("93.184.216.34")}}},
		ErrClassifier: prort.DefaultErrClassifier,
		Logger:        prort.DefaultSLogger(),
		TimeNow:       timeNowStub,
	}

	addrs, err := r.LookupAddrs(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("93.184.216.34")}, addrs)
}

func TestLookupAddrsNoRecords(t *testing.T) {
	r := &Resolver{
		Lookup:        fakeLookup{addrs: map[string][]netip.Addr{}},
		ErrClassifier: prort.DefaultErrClassifier,
		Logger:        prort.DefaultSLogger(),
		TimeNow:       timeNowStub,
	}

	_, err := r.LookupAddrs(context.Background(), "nope.invalid")
	assert.Error(t, err)
}

func TestLookupAddrsPropagatesError(t *testing.T) {
	want := errors.New("no such host")
	r := &Resolver{
		Lookup:        fakeLookup{err: want},
		ErrClassifier: prort.DefaultErrClassifier,
		Logger:        prort.DefaultSLogger(),
		TimeNow:       timeNowStub,
	}

	_, err := r.LookupAddrs(context.Background(), "example.com")
	assert.ErrorIs(t, err, want)
}
