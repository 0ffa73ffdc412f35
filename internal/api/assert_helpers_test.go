// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import "testing"

// Shared assertion helpers. t.Helper() keeps failures pointing at the
// calling line.

func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

func checkIntEqual(t *testing.T, fieldName string, got, want int64) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

func checkLenEqual(t *testing.T, name string, length, want int) {
	t.Helper()
	if length != want {
		t.Errorf("%s: expected %d items, got %d", name, want, length)
	}
}

func checkTrue(t *testing.T, name string, cond bool) {
	t.Helper()
	if !cond {
		t.Errorf("%s should be true", name)
	}
}

func checkFalse(t *testing.T, name string, cond bool) {
	t.Helper()
	if cond {
		t.Errorf("%s should be false", name)
	}
}
