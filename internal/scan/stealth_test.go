// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import (
	"testing"

	"github.com/doublegate/ProRT-IP-sub016/internal/packet"
	"github.com/stretchr/testify/assert"
)

func TestStealthVariantFlags(t *testing.T) {
	assert.Equal(t, packet.TCPFlags(0), StealthNull.Flags())
	assert.Equal(t, packet.FlagFIN, StealthFIN.Flags())
	assert.Equal(t, packet.FlagFIN|packet.FlagPSH|packet.FlagURG, StealthXmas.Flags())
}

func TestStealthMachineNoResponseIsOpenOrFiltered(t *testing.T) {
	m := NewStealthMachine(StealthFIN)
	d := m.OnTimeout(0)
	assert.True(t, d.Terminal)
	assert.Equal(t, StateOpenOrFiltered, d.State)
}

func TestStealthMachineRstIsClosed(t *testing.T) {
	m := NewStealthMachine(StealthXmas)
	d := m.OnResponse(Response{Kind: ResponseKindTCP, TCPFlags: packet.FlagRST})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateClosed, d.State)
}

func TestStealthMachineIcmpIsFiltered(t *testing.T) {
	m := NewStealthMachine(StealthNull)
	d := m.OnResponse(Response{Kind: ResponseKindICMP})
	assert.True(t, d.Terminal)
	assert.Equal(t, StateFiltered, d.State)
}
