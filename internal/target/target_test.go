// SPDX-License-Identifier: GPL-3.0-or-later

package target

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	addrs map[string][]netip.Addr
}

func (s stubResolver) LookupAddrs(_ context.Context, hostname string) ([]netip.Addr, error) {
	addrs, ok := s.addrs[hostname]
	if !ok {
		return nil, ErrUnresolvable
	}
	return addrs, nil
}

func TestParseKinds(t *testing.T) {
	cases := []struct {
		expr string
		kind Kind
	}{
		{"127.0.0.1", KindAddress},
		{"2001:db8::1", KindAddress},
		{"10.0.0.0/24", KindCIDR},
		{"10.0.0.1-10.0.0.10", KindRange},
		{"example.com", KindHostname},
		{"file:targets.txt", KindFile},
	}
	for _, c := range cases {
		tgt, err := Parse(c.expr)
		require.NoError(t, err, c.expr)
		assert.Equal(t, c.kind, tgt.Kind, c.expr)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestExpandCIDRIsAddressOrdered(t *testing.T) {
	tgt, err := Parse("192.0.2.0/30")
	require.NoError(t, err)

	expanded, err := tgt.Expand(context.Background(), stubResolver{})
	require.NoError(t, err)
	require.Len(t, expanded, 1)

	src := expanded[0].source
	require.EqualValues(t, 4, src.Count())
	assert.Equal(t, netip.MustParseAddr("192.0.2.0"), src.At(0))
	assert.Equal(t, netip.MustParseAddr("192.0.2.3"), src.At(3))
}

func TestExpandRange(t *testing.T) {
	tgt, err := Parse("10.0.0.1-10.0.0.5")
	require.NoError(t, err)

	expanded, err := tgt.Expand(context.Background(), stubResolver{})
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.EqualValues(t, 5, expanded[0].source.Count())
}

func TestExpandHostnameUnresolvable(t *testing.T) {
	tgt, err := Parse("nope.invalid")
	require.NoError(t, err)

	_, err = tgt.Expand(context.Background(), stubResolver{})
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestExpanderTotalAndOrdering(t *testing.T) {
	ports := NewPortSet()
	require.NoError(t, ports.ParsePortExpr("22,80", TCP))

	e := NewExpander(ports, false, false, 0)
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.1")
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.2")

	require.Empty(t, e.Errors)
	assert.EqualValues(t, 4, e.Total())

	first, err := e.At(0)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), first.Addr)
	assert.Equal(t, uint16(22), first.Port.Number)

	second, err := e.At(1)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), second.Addr)
	assert.Equal(t, uint16(80), second.Port.Number)

	third, err := e.At(2)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), third.Addr)
}

func TestExpanderPortsMajor(t *testing.T) {
	ports := NewPortSet()
	require.NoError(t, ports.ParsePortExpr("22,80", TCP))

	e := NewExpander(ports, true, false, 0)
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.1")
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.2")

	first, err := e.At(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(22), first.Port.Number)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), first.Addr)

	second, err := e.At(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(22), second.Port.Number)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), second.Addr)
}

func TestExpanderDedupesRepeatedTarget(t *testing.T) {
	ports := NewPortSet()
	require.NoError(t, ports.Add(TCP, 22))

	e := NewExpander(ports, false, true, 10)
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.1")
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.1")

	assert.EqualValues(t, 1, e.TotalAddrs())
}

func TestExpanderResolutionErrorDoesNotAbort(t *testing.T) {
	ports := NewPortSet()
	require.NoError(t, ports.Add(TCP, 22))

	e := NewExpander(ports, false, false, 0)
	e.AddTarget(context.Background(), stubResolver{}, "nope.invalid")
	e.AddTarget(context.Background(), stubResolver{}, "10.0.0.1")

	require.Len(t, e.Errors, 1)
	assert.EqualValues(t, 1, e.TotalAddrs())
}
