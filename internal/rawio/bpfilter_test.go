// SPDX-License-Identifier: GPL-3.0-or-later

package rawio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPortRangeFilterCompiles(t *testing.T) {
	prog, err := BuildPortRangeFilter(49152, 65535)
	require.NoError(t, err)
	assert.NotEmpty(t, prog)
}

func TestBuildPortRangeFilterRejectsInvertedRange(t *testing.T) {
	// An inverted range still compiles; it simply never matches, which
	// BuildPortRangeFilter's caller is responsible for avoiding.
	prog, err := BuildPortRangeFilter(100, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, prog)
}
