// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package timerange parses and evaluates TAMS time ranges.
//
// A time range is a string "lo_hi" where lo and hi are "seconds:nanoseconds"
// pairs, optionally wrapped in '[' / '(' and ']' / ')' for inclusive or
// exclusive endpoints. Bare ranges default to half-open: "0:0_5:0" means
// [0:0_5:0). Timestamps compare lexicographically on (seconds, nanoseconds).
//
// Segment listing and range deletion filter rows in memory with Overlaps;
// the metadata store keeps the range as an opaque string and never pushes
// the predicate down.
package timerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxNanoseconds is the largest legal nanosecond component.
const MaxNanoseconds = 999_999_999

// ErrInvalid is wrapped by every parse failure so callers can map any
// malformed range to a single validation error.
var ErrInvalid = errors.New("invalid time range")

// Timestamp is a point in media time as a (seconds, nanoseconds) pair.
// Both components are non-negative.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// Compare orders timestamps lexicographically on (Sec, Nsec). It returns
// -1, 0, or 1.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Sec < o.Sec:
		return -1
	case t.Sec > o.Sec:
		return 1
	case t.Nsec < o.Nsec:
		return -1
	case t.Nsec > o.Nsec:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Compare(o) < 0
}

// Seconds returns the timestamp as real seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t.Sec) + float64(t.Nsec)*1e-9
}

// String renders the timestamp as "seconds:nanoseconds".
func (t Timestamp) String() string {
	return strconv.FormatInt(t.Sec, 10) + ":" + strconv.FormatInt(t.Nsec, 10)
}

// Range is a parsed TAMS time range. Lo never exceeds Hi; Parse rejects
// inverted ranges.
type Range struct {
	Lo          Timestamp
	Hi          Timestamp
	LoInclusive bool
	HiInclusive bool
}

// Parse decodes a TAMS time range string. Each endpoint bracket is
// optional and independent; a missing opening bracket means inclusive and
// a missing closing bracket means exclusive.
func Parse(s string) (Range, error) {
	if s == "" {
		return Range{}, fmt.Errorf("%w: empty string", ErrInvalid)
	}

	r := Range{LoInclusive: true, HiInclusive: false}

	switch s[0] {
	case '[':
		r.LoInclusive = true
		s = s[1:]
	case '(':
		r.LoInclusive = false
		s = s[1:]
	}
	if n := len(s); n > 0 {
		switch s[n-1] {
		case ']':
			r.HiInclusive = true
			s = s[:n-1]
		case ')':
			r.HiInclusive = false
			s = s[:n-1]
		}
	}

	lo, hi, ok := strings.Cut(s, "_")
	if !ok {
		return Range{}, fmt.Errorf("%w: missing '_' separator in %q", ErrInvalid, s)
	}

	var err error
	if r.Lo, err = parseTimestamp(lo); err != nil {
		return Range{}, fmt.Errorf("%w: start %q: %v", ErrInvalid, lo, err)
	}
	if r.Hi, err = parseTimestamp(hi); err != nil {
		return Range{}, fmt.Errorf("%w: end %q: %v", ErrInvalid, hi, err)
	}
	if r.Hi.Before(r.Lo) {
		return Range{}, fmt.Errorf("%w: start %s after end %s", ErrInvalid, r.Lo, r.Hi)
	}

	return r, nil
}

// MustParse is Parse for statically known inputs. It panics on error.
func MustParse(s string) Range {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseTimestamp(s string) (Timestamp, error) {
	sec, nsec, ok := strings.Cut(s, ":")
	if !ok {
		return Timestamp{}, errors.New("missing ':' separator")
	}

	t := Timestamp{}
	var err error
	if t.Sec, err = parseComponent(sec); err != nil {
		return Timestamp{}, fmt.Errorf("seconds: %v", err)
	}
	if t.Nsec, err = parseComponent(nsec); err != nil {
		return Timestamp{}, fmt.Errorf("nanoseconds: %v", err)
	}
	if t.Nsec > MaxNanoseconds {
		return Timestamp{}, fmt.Errorf("nanoseconds %d exceed %d", t.Nsec, MaxNanoseconds)
	}
	return t, nil
}

// parseComponent accepts plain non-negative decimal digits. strconv alone
// would admit signs and leading "+", which the grammar forbids.
func parseComponent(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit %q", s[i])
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("value out of range")
	}
	return v, nil
}

// Empty reports whether the range admits no timestamp at all. Parse
// rejects inverted ranges, so only a point range with an exclusive
// endpoint qualifies.
func (r Range) Empty() bool {
	c := r.Lo.Compare(r.Hi)
	if c > 0 {
		return true
	}
	if c == 0 {
		return !(r.LoInclusive && r.HiInclusive)
	}
	return false
}

// Overlaps reports whether r and o share at least one timestamp. When one
// range ends exactly where the other begins, the shared boundary counts
// only if both touching endpoints are inclusive.
func (r Range) Overlaps(o Range) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	if c := r.Lo.Compare(o.Hi); c > 0 || (c == 0 && !(r.LoInclusive && o.HiInclusive)) {
		return false
	}
	if c := o.Lo.Compare(r.Hi); c > 0 || (c == 0 && !(o.LoInclusive && r.HiInclusive)) {
		return false
	}
	return true
}

// Contains reports whether the point t falls inside the range.
func (r Range) Contains(t Timestamp) bool {
	if c := t.Compare(r.Lo); c < 0 || (c == 0 && !r.LoInclusive) {
		return false
	}
	if c := t.Compare(r.Hi); c > 0 || (c == 0 && !r.HiInclusive) {
		return false
	}
	return true
}

// Duration returns hi minus lo in real seconds. Endpoint inclusivity does
// not affect the value.
func (r Range) Duration() float64 {
	return float64(r.Hi.Sec-r.Lo.Sec) + float64(r.Hi.Nsec-r.Lo.Nsec)*1e-9
}

// String renders the canonical form: the default half-open range prints
// bare, anything else prints with explicit brackets. Parse(r.String())
// reproduces r exactly.
func (r Range) String() string {
	body := r.Lo.String() + "_" + r.Hi.String()
	if r.LoInclusive && !r.HiInclusive {
		return body
	}
	prefix, suffix := "(", ")"
	if r.LoInclusive {
		prefix = "["
	}
	if r.HiInclusive {
		suffix = "]"
	}
	return prefix + body + suffix
}
