//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: internal/aggregate's channel-based back-pressure idiom,
// applied to an append-only on-disk writer (§4.14).
//

// Package storage implements the append-only batch writer consumed by
// the result aggregator, with a bounded write queue that back-pressures
// the aggregator when full and a completion marker emitted at scan
// termination (C14).
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/doublegate/ProRT-IP-sub016/internal/aggregate"
	"github.com/google/uuid"
)

// ErrWriterClosed is returned by [Writer.WriteBatch] once the writer has
// been closed.
var ErrWriterClosed = errors.New("storage: writer closed")

// record is the on-disk, line-delimited JSON shape of one observation.
type record struct {
	Addr        string `json:"addr"`
	Port        uint16 `json:"port"`
	Proto       string `json:"proto"`
	State       string `json:"state"`
	RTTNanos    int64  `json:"rtt_ns"`
	Kind        uint8  `json:"kind"`
	Banner      string `json:"banner,omitempty"`
	ServiceInfo string `json:"service_info,omitempty"`
	TimestampNs int64  `json:"ts_ns"`
}

// marker is the completion-marker record written once [Writer.Finish] is
// called, stamped with the owning scan run's ID (SPEC_FULL's DOMAIN
// STACK mapping of google/uuid as the correlation key).
type marker struct {
	RunID       string `json:"run_id"`
	RecordCount int64  `json:"record_count"`
	Complete    bool   `json:"complete"`
}

// Writer implements [aggregate.BatchWriter]: an append-only,
// line-delimited JSON sink. Writes are append-only; there is no update
// or delete path (§4.14). A bounded queue in front of the underlying
// io.Writer applies back-pressure to the aggregator when the
// destination can't keep up.
type Writer struct {
	runID uuid.UUID

	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	closed  bool
	count   int64
	enc     *json.Encoder
	pending chan aggregate.Batch
	done    chan struct{}
	runErr  error
}

// NewWriter wraps dst (typically an *os.File opened for append) into a
// [*Writer] stamped with runID. queueDepth bounds the number of batches
// buffered ahead of the underlying writer; WriteBatch blocks once the
// queue is full, which is how back-pressure reaches the aggregator
// (§4.14: "full buffer produces back-pressure to the aggregator").
func NewWriter(dst io.Writer, closer io.Closer, runID uuid.UUID, queueDepth int) *Writer {
	bw := bufio.NewWriter(dst)
	w := &Writer{
		runID:   runID,
		w:       bw,
		closer:  closer,
		enc:     json.NewEncoder(bw),
		pending: make(chan aggregate.Batch, queueDepth),
		done:    make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *Writer) drain() {
	defer close(w.done)
	for batch := range w.pending {
		if err := w.writeBatch(batch); err != nil {
			w.mu.Lock()
			w.runErr = err
			w.mu.Unlock()
			return
		}
	}
}

func (w *Writer) writeBatch(batch aggregate.Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range batch {
		r := record{
			Addr:        o.Key.Addr.String(),
			Port:        o.Key.Port,
			Proto:       o.Key.Proto.String(),
			State:       o.State.String(),
			RTTNanos:    o.RTT.Nanoseconds(),
			Kind:        uint8(o.Kind),
			Banner:      string(o.Banner),
			ServiceInfo: o.ServiceInfo,
			TimestampNs: o.Timestamp.UnixNano(),
		}
		if err := w.enc.Encode(&r); err != nil {
			return fmt.Errorf("storage: encode record: %w", err)
		}
		w.count++
	}
	return w.w.Flush()
}

// WriteBatch implements [aggregate.BatchWriter]. It enqueues batch for
// the writer's drain goroutine, blocking if the queue is full, and
// returns the first error the drain goroutine has observed, if any.
func (w *Writer) WriteBatch(ctx context.Context, batch aggregate.Batch) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	if w.runErr != nil {
		err := w.runErr
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	select {
	case w.pending <- batch:
		return nil
	case <-w.done:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.runErr != nil {
			return w.runErr
		}
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish emits the completion marker (§4.14: "at scan termination the
// writer emits a completion marker") and flushes/closes the underlying
// destination. Call it after the last WriteBatch has returned; a
// second call returns [ErrWriterClosed].
func (w *Writer) Finish() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.pending)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runErr != nil {
		return w.runErr
	}

	m := marker{RunID: w.runID.String(), RecordCount: w.count, Complete: true}
	if err := w.enc.Encode(&m); err != nil {
		return fmt.Errorf("storage: encode completion marker: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("storage: flush: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

var _ aggregate.BatchWriter = (*Writer)(nil)
