// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package objectstore

import (
	"fmt"
	"strings"
	"time"
)

// SegmentKey computes the canonical object-store key for an object ID:
//
//	{prefix}/{YYYY}/{MM}/{DD}/{object_id}
//
// The date components come from the allocation time in UTC. Keys are
// immutable once bytes are written under them; segment rows persist the
// key they were allocated so later reads never have to re-derive it.
func SegmentKey(prefix string, allocated time.Time, objectID string) string {
	u := allocated.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", prefix, u.Year(), int(u.Month()), u.Day(), objectID)
}

// ObjectIDFromKey extracts the trailing object ID from a segment key.
// Returns the input unchanged when it carries no path separators, so
// legacy rows that stored bare object IDs keep working.
func ObjectIDFromKey(key string) string {
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
