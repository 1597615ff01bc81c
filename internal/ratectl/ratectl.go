//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's Config-driven constructor shape,
// generalized into the token-bucket adaptive rate controller (§4.6):
// "refill rate starts at parallelism-cap x (1 / initial-rtt) and adapts
// each control epoch... halve on errors/RTT growth, 1.5x multiplicative
// increase when stable, floored at min-rate."
//

// Package ratectl implements the adaptive token-bucket rate controller
// that governs the stateless scan paths (§4.6).
package ratectl

import (
	"sync"
	"time"
)

// DefaultEpoch is the controller's default control epoch (§4.6).
const DefaultEpoch = 100 * time.Millisecond

// Controller is a token bucket whose refill rate adapts to observed send
// errors and RTT drift each control epoch. Stateful scan paths are rate
// limited implicitly by the connection pool and are not expected to use
// this type (§4.6).
type Controller struct {
	mu sync.Mutex

	rate     float64 // tokens/sec
	minRate  float64
	maxRate  float64
	tokens   float64
	capacity float64

	epoch        time.Duration
	lastRefill   time.Time
	epochStart   time.Time
	epochErrors  int
	epochTotal   int
	stableEpochs int

	rttBaseline time.Duration
	rttLatest   time.Duration

	timeNow func() time.Time
}

// New returns a [*Controller] seeded with refillRate =
// parallelism x (1/initialRTT), bounded to [minRate, maxRate].
func New(parallelism int, initialRTT time.Duration, minRate, maxRate float64, timeNow func() time.Time) *Controller {
	if timeNow == nil {
		timeNow = time.Now
	}
	rate := float64(parallelism) / initialRTT.Seconds()
	rate = clamp(rate, minRate, maxRate)
	now := timeNow()
	return &Controller{
		rate:       rate,
		minRate:    minRate,
		maxRate:    maxRate,
		tokens:     rate,
		capacity:   rate,
		epoch:      DefaultEpoch,
		lastRefill: now,
		epochStart: now,
		timeNow:    timeNow,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Allow reports whether a probe may be sent now, consuming one token if
// so. Callers that get false should back off (e.g. yield / sleep briefly)
// and retry.
func (c *Controller) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refillLocked()
	if c.tokens < 1 {
		return false
	}
	c.tokens--
	return true
}

func (c *Controller) refillLocked() {
	now := c.timeNow()
	elapsed := now.Sub(c.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	c.tokens += elapsed * c.rate
	if c.tokens > c.capacity {
		c.tokens = c.capacity
	}
	c.lastRefill = now
}

// Observe records the outcome of one send (errored or not) and its RTT,
// feeding the next epoch's rate adaptation decision.
func (c *Controller) Observe(sendErrored bool, rtt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochTotal++
	if sendErrored {
		c.epochErrors++
	}
	c.rttLatest = rtt
	if c.rttBaseline == 0 {
		c.rttBaseline = rtt
	}

	now := c.timeNow()
	if now.Sub(c.epochStart) < c.epoch {
		return
	}
	c.advanceEpochLocked(now)
}

// advanceEpochLocked applies §4.6's adaptation rule and resets epoch
// counters. Must be called with c.mu held.
func (c *Controller) advanceEpochLocked(now time.Time) {
	errorFraction := 0.0
	if c.epochTotal > 0 {
		errorFraction = float64(c.epochErrors) / float64(c.epochTotal)
	}
	rttGrew := c.rttBaseline > 0 &&
		float64(c.rttLatest) > float64(c.rttBaseline)*1.5

	switch {
	case errorFraction > 0.01 || rttGrew:
		c.rate = clamp(c.rate/2, c.minRate, c.maxRate)
		c.stableEpochs = 0
	case c.epochErrors == 0:
		c.stableEpochs++
		if c.stableEpochs >= 2 {
			c.rate = clamp(c.rate*1.5, c.minRate, c.maxRate)
		}
	default:
		c.stableEpochs = 0
	}

	c.capacity = c.rate
	c.rttBaseline = c.rttLatest
	c.epochErrors = 0
	c.epochTotal = 0
	c.epochStart = now
}

// Rate returns the controller's current refill rate in tokens/sec.
func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}
