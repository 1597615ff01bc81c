// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumScalarKnownVector(t *testing.T) {
	// RFC 1071 §1 worked example.
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	assert.Equal(t, uint16(0x220d), ChecksumScalar(data))
}

func TestChecksumScalarEmpty(t *testing.T) {
	assert.Equal(t, uint16(0xffff), ChecksumScalar(nil))
}

func TestChecksumScalarOddLength(t *testing.T) {
	a := ChecksumScalar([]byte{0x01, 0x02, 0x03})
	b := ChecksumScalar([]byte{0x01, 0x02, 0x03, 0x00})
	assert.Equal(t, a, b)
}

func TestChecksumVectorizedMatchesScalar(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 256; trial++ {
		n := r.Intn(128)
		data := make([]byte, n)
		r.Read(data)
		assert.Equal(t, ChecksumScalar(data), ChecksumVectorized(data), "length %d", n)
	}
}

func TestChecksumVectorizedEmpty(t *testing.T) {
	assert.Equal(t, ChecksumScalar(nil), ChecksumVectorized(nil))
}
