// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectMachineSuccessIsOpen(t *testing.T) {
	m := NewConnectMachine()
	d := m.OnDialResult(nil, false)
	assert.True(t, d.Terminal)
	assert.Equal(t, StateOpen, d.State)
}

func TestConnectMachineRefusedIsClosed(t *testing.T) {
	m := NewConnectMachine()
	d := m.OnDialResult(ErrConnectionRefused, false)
	assert.True(t, d.Terminal)
	assert.Equal(t, StateClosed, d.State)

	d = m.OnDialResult(errors.New("dial error"), true)
	assert.Equal(t, StateClosed, d.State)
}

func TestConnectMachineOtherErrorIsFiltered(t *testing.T) {
	m := NewConnectMachine()
	d := m.OnDialResult(errors.New("i/o timeout"), false)
	assert.True(t, d.Terminal)
	assert.Equal(t, StateFiltered, d.State)
}
