// SPDX-License-Identifier: GPL-3.0-or-later

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStrength(t *testing.T) {
	assert.True(t, StateOpen.Strength() > StateClosed.Strength())
	assert.True(t, StateClosed.Strength() > StateFiltered.Strength())
	assert.True(t, StateFiltered.Strength() > StateOpenOrFiltered.Strength())
	assert.True(t, StateOpenOrFiltered.Strength() > StateUnknown.Strength())
}

func TestStateStrongerOrEqual(t *testing.T) {
	assert.True(t, StateOpen.StrongerOrEqual(StateClosed))
	assert.False(t, StateClosed.StrongerOrEqual(StateOpen))
	assert.True(t, StateOpen.StrongerOrEqual(StateOpen))
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateOpen:           "open",
		StateClosed:         "closed",
		StateFiltered:       "filtered",
		StateOpenOrFiltered: "open-or-filtered",
		StateUnfiltered:     "unfiltered",
		StateUnknown:        "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
