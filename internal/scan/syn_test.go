// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import (
	"testing"

	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/stretchr/testify/assert"
)

func TestSYNMachineSynAckIsOpen(t *testing.T) {
	m := NewSYNMachine()
	d := m.OnResponse(Response{Kind: ResponseKindTCP, TCPFlags: packet.FlagSYN | packet.FlagACK})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateOpen, d.State)
}

func TestSYNMachineRstIsClosed(t *testing.T) {
	m := NewSYNMachine()
	d := m.OnResponse(Response{Kind: ResponseKindTCP, TCPFlags: packet.FlagRST})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateClosed, d.State)
}

func TestSYNMachineIcmpIsFiltered(t *testing.T) {
	m := NewSYNMachine()
	d := m.OnResponse(Response{Kind: ResponseKindICMP})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateFiltered, d.State)
}

func TestSYNMachineTimeoutRetriesThenFilters(t *testing.T) {
	m := NewSYNMachine()
	d := m.OnTimeout(2)
	assert.False(t, d.Terminal)
	assert.True(t, d.Retry)

	d = m.OnTimeout(0)
	assert.True(t, d.Terminal)
	assert.Equal(t, StateFiltered, d.State)
}

func TestSYNMachineLateSynAckPromotesToOpen(t *testing.T) {
	m := NewSYNMachine()
	d := m.OnTimeout(0)
	assert.Equal(t, StateFiltered, d.State)

	d = m.OnResponse(Response{Kind: ResponseKindTCP, TCPFlags: packet.FlagSYN | packet.FlagACK})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateOpen, d.State)
}
