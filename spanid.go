package prort

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way: one scan phase (INITIALIZE, HOST-DISCOVERY, PORT-SCAN, DETECTION,
// FINALIZE, §4.8) or one service-detection probe attempt (§4.11).
//
// Use a span ID to correlate structured log entries across a phase, and
// use [NewSpanID] again at a finer grain where the caller needs to
// correlate a handful of related events (e.g. a banner grab followed by
// its TLS certificate extraction).
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
