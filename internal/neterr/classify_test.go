// SPDX-License-Identifier: GPL-3.0-or-later

package neterr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNil(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
}

func TestClassifyContext(t *testing.T) {
	assert.Equal(t, ETimedOut, Classify(context.DeadlineExceeded))
	assert.Equal(t, ECanceled, Classify(context.Canceled))
}

func TestClassifyUnknown(t *testing.T) {
	assert.Equal(t, EGeneric, Classify(errors.New("something else")))
}

func TestIsTransientAndPermanent(t *testing.T) {
	assert.True(t, IsTransient(ENoBufs))
	assert.True(t, IsTransient(EAgain))
	assert.False(t, IsTransient(EHostUnreach))

	assert.True(t, IsPermanent(EHostUnreach))
	assert.True(t, IsPermanent(EConnRefused))
	assert.False(t, IsPermanent(ENoBufs))
}
