// SPDX-License-Identifier: GPL-3.0-or-later

package aggregate

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/doublegate/ProRT-IP-sub016/internal/scan"
	"github.com/doublegate/ProRT-IP-sub016/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches []Batch
	err     error
}

func (w *recordingWriter) WriteBatch(ctx context.Context, b Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	cp := make(Batch, len(b))
	copy(cp, b)
	w.batches = append(w.batches, cp)
	return nil
}

func (w *recordingWriter) all() []Observation {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Observation
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func testKey() Key {
	return Key{Addr: netip.MustParseAddr("192.0.2.1"), Port: 80, Proto: target.TCP}
}

func TestAggregatorRetainsStrongestObservation(t *testing.T) {
	a := New(DefaultCapacity, &recordingWriter{}, time.Hour, 0, nil)
	key := testKey()

	a.merge(Observation{Key: key, State: scan.StateFiltered})
	a.merge(Observation{Key: key, State: scan.StateOpen})
	a.merge(Observation{Key: key, State: scan.StateClosed})

	assert.Equal(t, scan.StateOpen, a.retained[key].State)
}

func TestAggregatorNeverDowngradesEqualStrength(t *testing.T) {
	a := New(DefaultCapacity, &recordingWriter{}, time.Hour, 0, nil)
	key := testKey()

	a.merge(Observation{Key: key, State: scan.StateFiltered, Banner: []byte("first")})
	a.merge(Observation{Key: key, State: scan.StateUnfiltered, Banner: []byte("second")})

	assert.Equal(t, "first", string(a.retained[key].Banner))
}

func TestAggregatorRunFlushesOnTickerAndClose(t *testing.T) {
	writer := &recordingWriter{}
	a := New(DefaultCapacity, writer, 10*time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	key := testKey()
	require.NoError(t, a.Push(ctx, Observation{Key: key, State: scan.StateOpen}))

	require.Eventually(t, func() bool { return len(writer.all()) == 1 }, time.Second, 5*time.Millisecond)

	a.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestAggregatorRunReturnsWriterError(t *testing.T) {
	writer := &recordingWriter{err: assert.AnError}
	a := New(DefaultCapacity, writer, 5*time.Millisecond, 0, nil)

	ctx := context.Background()
	require.NoError(t, a.Push(ctx, Observation{Key: testKey(), State: scan.StateOpen}))

	err := a.Run(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAggregatorPushBlocksWhenFull(t *testing.T) {
	a := New(1, &recordingWriter{}, time.Hour, 0, nil)
	key := testKey()
	require.NoError(t, a.Push(context.Background(), Observation{Key: key, State: scan.StateOpen}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Push(ctx, Observation{Key: key, State: scan.StateClosed})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAggregatorTryPushNonBlocking(t *testing.T) {
	a := New(1, &recordingWriter{}, time.Hour, 0, nil)
	key := testKey()
	assert.True(t, a.TryPush(Observation{Key: key, State: scan.StateOpen}))
	assert.False(t, a.TryPush(Observation{Key: key, State: scan.StateClosed}))
}
