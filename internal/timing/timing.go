//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's Config-as-value-bundle shape (config.go),
// generalized into the six named timing profiles (§4.7, §6.2).
//

// Package timing holds the six named timing profiles (T0 Paranoid
// through T5 Insane) and expands them into the concrete parameters the
// scheduler and rate controller consume.
package timing

import "time"

// Profile is a named bundle of timing parameters (§3's Timing Profile
// entity): initial-rtt-estimate, min/max RTT, probe timeout, max
// retries, inter-probe delay, parallelism cap, batch-size hint.
type Profile struct {
	Name              string
	InterProbeDelay   time.Duration
	ProbeTimeout      time.Duration
	Parallelism       int
	MaxRetries        int
	InitialRTTEstimate time.Duration
	MinRTT            time.Duration
	MaxRTT            time.Duration
	BatchSizeHint     int
}

// Named profiles T0..T5 (§6.2's table, verbatim).
var (
	T0Paranoid = Profile{
		Name: "T0", InterProbeDelay: 5 * time.Minute, ProbeTimeout: 5 * time.Minute,
		Parallelism: 1, MaxRetries: 3,
		InitialRTTEstimate: 250 * time.Millisecond, MinRTT: 100 * time.Millisecond, MaxRTT: 10 * time.Second,
		BatchSizeHint: 1,
	}
	T1Sneaky = Profile{
		Name: "T1", InterProbeDelay: 15 * time.Second, ProbeTimeout: 15 * time.Second,
		Parallelism: 1, MaxRetries: 3,
		InitialRTTEstimate: 250 * time.Millisecond, MinRTT: 100 * time.Millisecond, MaxRTT: 10 * time.Second,
		BatchSizeHint: 1,
	}
	T2Polite = Profile{
		Name: "T2", InterProbeDelay: 400 * time.Millisecond, ProbeTimeout: time.Second,
		Parallelism: 10, MaxRetries: 3,
		InitialRTTEstimate: 200 * time.Millisecond, MinRTT: 50 * time.Millisecond, MaxRTT: 5 * time.Second,
		BatchSizeHint: 10,
	}
	T3Normal = Profile{
		Name: "T3", InterProbeDelay: 0, ProbeTimeout: time.Second,
		Parallelism: 100, MaxRetries: 3,
		InitialRTTEstimate: 100 * time.Millisecond, MinRTT: 10 * time.Millisecond, MaxRTT: 3 * time.Second,
		BatchSizeHint: 200,
	}
	T4Aggressive = Profile{
		Name: "T4", InterProbeDelay: 0, ProbeTimeout: 500 * time.Millisecond,
		Parallelism: 500, MaxRetries: 2,
		InitialRTTEstimate: 100 * time.Millisecond, MinRTT: 10 * time.Millisecond, MaxRTT: 1500 * time.Millisecond,
		BatchSizeHint: 200,
	}
	T5Insane = Profile{
		Name: "T5", InterProbeDelay: 0, ProbeTimeout: 250 * time.Millisecond,
		Parallelism: 1000, MaxRetries: 1,
		InitialRTTEstimate: 50 * time.Millisecond, MinRTT: 5 * time.Millisecond, MaxRTT: 750 * time.Millisecond,
		BatchSizeHint: 300,
	}
)

// Profiles indexes the six named profiles by name ("T0".."T5").
var Profiles = map[string]Profile{
	"T0": T0Paranoid,
	"T1": T1Sneaky,
	"T2": T2Polite,
	"T3": T3Normal,
	"T4": T4Aggressive,
	"T5": T5Insane,
}

// ByName returns the named profile and true, or the zero Profile and
// false if name is not one of "T0".."T5".
func ByName(name string) (Profile, bool) {
	p, ok := Profiles[name]
	return p, ok
}
