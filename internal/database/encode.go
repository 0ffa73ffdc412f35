// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

// timeLayout is the canonical timestamp encoding: UTC, fixed nine
// fractional digits. Fixed width keeps lexical order equal to time order,
// which the created-ordered scans rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// decodeTime accepts the driver's native time.Time as well as the string
// encodings this store has written historically.
func decodeTime(v interface{}) (time.Time, error) {
	switch tv := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return tv.UTC(), nil
	case string:
		return parseTimeString(tv)
	case []byte:
		return parseTimeString(string(tv))
	default:
		return time.Time{}, fmt.Errorf("cannot decode %T as timestamp", v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// encodeJSON renders v for storage in a VARCHAR column. Nil-ish values
// store as SQL NULL so absence round-trips.
func encodeJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return string(data), nil
}

func decodeJSON(v interface{}, out interface{}) error {
	s, ok := asString(v)
	if !ok || s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("failed to decode JSON column: %w", err)
	}
	return nil
}

func encodeTags(tags models.Tags) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return encodeJSON(tags)
}

func decodeTags(v interface{}) (models.Tags, error) {
	var tags models.Tags
	if err := decodeJSON(v, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func asString(v interface{}) (string, bool) {
	switch sv := v.(type) {
	case string:
		return sv, true
	case []byte:
		return string(sv), true
	default:
		return "", false
	}
}

func decodeString(v interface{}) string {
	s, _ := asString(v)
	return s
}

func decodeStringPtr(v interface{}) *string {
	s, ok := asString(v)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// decodeInt64 tolerates the integer widths the driver hands back for the
// various DuckDB integer types.
func decodeInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func decodeInt64Ptr(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	n := decodeInt64(v)
	return &n
}

func decodeIntPtr(v interface{}) *int {
	if v == nil {
		return nil
	}
	n := int(decodeInt64(v))
	return &n
}

func decodeBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int32:
		return b != 0
	case string:
		return b == "true" || b == "t" || b == "1"
	default:
		return false
	}
}

func decodeUUID(v interface{}) (uuid.UUID, error) {
	s, ok := asString(v)
	if !ok || s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid stored UUID %q: %w", s, err)
	}
	return id, nil
}

// nullable wraps a pointer for insertion: nil pointers store as SQL NULL.
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// toAnySlice widens a typed slice for predicate IN arguments.
func toAnySlice[T any](vals []T) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// chunk splits vals into runs of at most n, for bounded IN lists.
func chunk[T any](vals []T, n int) [][]T {
	if n <= 0 {
		n = 500
	}
	var out [][]T
	for len(vals) > n {
		out = append(out, vals[:n])
		vals = vals[n:]
	}
	if len(vals) > 0 {
		out = append(out, vals)
	}
	return out
}

// nullableString treats both nil and empty as NULL so optional text
// columns stay sparse.
func nullableString(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}
