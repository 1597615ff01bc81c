//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: root config.go's Config-as-value-bundle shape, applied
// to the probe database and compiled match engine (§4.11); DB format
// and parsing grounded on SPEC_FULL.md's DOMAIN STACK mapping of
// gopkg.in/yaml.v3.
//

// Package probedb parses the service probe database and matches
// banners against it to recover product/version information (C11).
package probedb

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrProbeDBInvalid is returned by [LoadDB]/[ParseDB]/[NewEngine] when
// the database fails to parse or a rule's regex fails to compile
// (§4.11: "Fails with: ProbeDBInvalid at initialization").
var ErrProbeDBInvalid = errors.New("probedb: invalid probe database")

// MatchRule is one (regex, service-name, product?, version?, os-hint?,
// cpe?) rule (§3's Probe DB Entry).
type MatchRule struct {
	Regex   string `yaml:"regex"`
	Service string `yaml:"service"`
	Product string `yaml:"product,omitempty"`
	Version string `yaml:"version,omitempty"`
	OSHint  string `yaml:"os_hint,omitempty"`
	CPE     string `yaml:"cpe,omitempty"`
}

// Entry is one probe DB entry: a (protocol, ports) filter, an optional
// active probe string to send, and the ordered match rules evaluated
// against a banner (§3's Probe DB Entry; §4.11: "rules are applied in
// DB order; first match wins").
type Entry struct {
	Protocol string      `yaml:"protocol"` // "tcp" or "udp"
	Ports    []int       `yaml:"ports"`
	Probe    string      `yaml:"probe,omitempty"`
	Rules    []MatchRule `yaml:"rules"`
}

// DB is a parsed probe database.
type DB struct {
	Entries []Entry `yaml:"entries"`
}

// ParseDB parses a YAML-encoded probe database.
func ParseDB(data []byte) (*DB, error) {
	var db DB
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeDBInvalid, err)
	}
	return &db, nil
}

// LoadDB reads and parses a probe database from path.
func LoadDB(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeDBInvalid, err)
	}
	return ParseDB(data)
}

// EmbeddedDB returns a small compiled-in default database covering
// common services, used when no probe-db-path is configured.
func EmbeddedDB() *DB {
	return &DB{Entries: []Entry{
		{
			Protocol: "tcp",
			Ports:    []int{22},
			Rules: []MatchRule{
				{Regex: `^SSH-(\d\.\d)-OpenSSH_([\w.]+)`, Service: "ssh", Product: "OpenSSH", Version: "$2"},
				{Regex: `^SSH-(\d\.\d)-`, Service: "ssh"},
			},
		},
		{
			Protocol: "tcp",
			Ports:    []int{80, 8080, 8000},
			Rules: []MatchRule{
				{Regex: `^HTTP/\d\.\d \d{3}`, Service: "http"},
			},
		},
		{
			Protocol: "tcp",
			Ports:    []int{443},
			Rules: []MatchRule{
				{Regex: `^HTTP/\d\.\d \d{3}`, Service: "https"},
			},
		},
		{
			Protocol: "tcp",
			Ports:    []int{21},
			Rules: []MatchRule{
				{Regex: `^220[ -].*FTP`, Service: "ftp"},
			},
		},
		{
			Protocol: "tcp",
			Ports:    []int{25},
			Rules: []MatchRule{
				{Regex: `^220[ -]`, Service: "smtp"},
			},
		},
	}}
}

// ServiceMatch is the recovered service record for a matched banner.
type ServiceMatch struct {
	Service string
	Product string
	Version string
	OSHint  string
	CPE     string
}

type compiledRule struct {
	re   *regexp.Regexp
	rule MatchRule
}

type compiledEntry struct {
	protocol string
	ports    map[int]struct{}
	probe    []byte
	rules    []compiledRule
}

// Engine matches banners against a compiled probe database (§4.11).
// Regexes are compiled exactly once, at [NewEngine] time, and cached in
// a map keyed by pattern string so two entries sharing an identical
// regex never compile it twice.
type Engine struct {
	entries   []compiledEntry
	intensity int
}

// NewEngine compiles db into an [*Engine] with the given intensity
// (0..9, clamped). Intensity 0 means the engine only ever matches
// against the default payload-less read; intensity 9 exercises every
// applicable active probe (§4.11).
func NewEngine(db *DB, intensity int) (*Engine, error) {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 9 {
		intensity = 9
	}

	cache := make(map[string]*regexp.Regexp)
	compile := func(pattern string) (*regexp.Regexp, error) {
		if re, ok := cache[pattern]; ok {
			return re, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		cache[pattern] = re
		return re, nil
	}

	entries := make([]compiledEntry, 0, len(db.Entries))
	for _, e := range db.Entries {
		ce := compiledEntry{protocol: e.Protocol, ports: make(map[int]struct{}, len(e.Ports)), probe: []byte(e.Probe)}
		for _, p := range e.Ports {
			ce.ports[p] = struct{}{}
		}
		for _, r := range e.Rules {
			re, err := compile(r.Regex)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %q: %v", ErrProbeDBInvalid, r.Regex, err)
			}
			ce.rules = append(ce.rules, compiledRule{re: re, rule: r})
		}
		entries = append(entries, ce)
	}

	return &Engine{entries: entries, intensity: intensity}, nil
}

// applicable returns the compiled entries whose (protocol, port)
// filter matches, in DB order.
func (e *Engine) applicable(protocol string, port int) []compiledEntry {
	var out []compiledEntry
	for _, ce := range e.entries {
		if ce.protocol != protocol {
			continue
		}
		if _, ok := ce.ports[port]; ok {
			out = append(out, ce)
		}
	}
	return out
}

// ProbesFor returns the active probe payloads the engine will send for
// (protocol, port), scaled by intensity: at intensity 0 it returns
// none (default payload-less read only); at intensity 9 it returns
// every applicable entry's probe. Entries with no probe string (a
// passive-only banner match) never contribute a payload.
func (e *Engine) ProbesFor(protocol string, port int) [][]byte {
	if e.intensity <= 0 {
		return nil
	}
	applicable := e.applicable(protocol, port)
	n := len(applicable) * e.intensity / 9
	if n == 0 {
		n = 1
	}
	if n > len(applicable) {
		n = len(applicable)
	}
	out := make([][]byte, 0, n)
	for _, ce := range applicable[:n] {
		if len(ce.probe) > 0 {
			out = append(out, ce.probe)
		}
	}
	return out
}

// Match evaluates banner against every rule of every entry whose
// (protocol, port) filter matches, in DB order, returning the first
// match (§4.11: "iterates probes whose (protocol, port) filter matches
// and evaluates their regex rules in order; the first match yields the
// service record").
func (e *Engine) Match(protocol string, port int, banner []byte) (ServiceMatch, bool) {
	for _, ce := range e.applicable(protocol, port) {
		for _, cr := range ce.rules {
			loc := cr.re.FindSubmatchIndex(banner)
			if loc == nil {
				continue
			}
			return ServiceMatch{
				Service: cr.rule.Service,
				Product: expandField(cr.re, banner, loc, cr.rule.Product),
				Version: expandField(cr.re, banner, loc, cr.rule.Version),
				OSHint:  cr.rule.OSHint,
				CPE:     expandField(cr.re, banner, loc, cr.rule.CPE),
			}, true
		}
	}
	return ServiceMatch{}, false
}

// expandField expands $1/$2-style backreferences in field against the
// regex match described by loc, or returns field unchanged if it
// contains no backreferences.
func expandField(re *regexp.Regexp, banner []byte, loc []int, field string) string {
	if field == "" {
		return ""
	}
	return string(re.ExpandString(nil, field, string(banner), loc))
}
