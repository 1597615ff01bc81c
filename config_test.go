// SPDX-License-Identifier: GPL-3.0-or-later

package prort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	require.NotNil(t, cfg.Rand)

	// ErrClassifier defaults to a no-op classifier; components that need
	// transient/permanent distinctions wire internal/neterr explicitly.
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))

	// TimeNow should be set and return a valid time.
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())
}

func TestNewSeededConfigIsReproducible(t *testing.T) {
	a := NewSeededConfig(42)
	b := NewSeededConfig(42)

	require.Equal(t, a.Rand.Int63(), b.Rand.Int63())
}
