// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"testing"

	"github.com/tomtom215/tamstore/internal/models"
)

// Test assertion helpers with "check" prefix to avoid conflicts with existing helpers.
// Each helper encapsulates common validation patterns.
// Using t.Helper() ensures error messages point to the calling line.

// checkNoError fails the test if err is not nil
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// checkError fails the test if err is nil
func checkError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// checkErrorCode fails unless err carries the given taxonomy code
func checkErrorCode(t *testing.T, err error, want models.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	svc, ok := models.AsServiceError(err)
	if !ok {
		t.Fatalf("expected %s error, got untyped: %v", want, err)
	}
	if svc.Code != want {
		t.Fatalf("expected %s error, got %s: %v", want, svc.Code, err)
	}
}

// checkStringEqual checks that got equals want
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkStringNotEmpty checks that value is not empty
func checkStringNotEmpty(t *testing.T, fieldName, value string) {
	t.Helper()
	if value == "" {
		t.Errorf("%s should not be empty", fieldName)
	}
}

// checkIntEqual checks that got equals want
func checkIntEqual(t *testing.T, fieldName string, got, want int64) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkLenEqual checks that a collection has exactly want items
func checkLenEqual(t *testing.T, name string, length, want int) {
	t.Helper()
	if length != want {
		t.Errorf("%s: expected %d items, got %d", name, want, length)
	}
}

// checkSliceNotEmpty checks that slice length > 0
func checkSliceNotEmpty(t *testing.T, name string, length int) {
	t.Helper()
	if length == 0 {
		t.Errorf("%s should not be empty", name)
	}
}

// checkSliceEmpty checks that slice length == 0
func checkSliceEmpty(t *testing.T, name string, length int) {
	t.Helper()
	if length != 0 {
		t.Errorf("%s should be empty, got %d items", name, length)
	}
}

// checkTrue fails unless the condition holds
func checkTrue(t *testing.T, name string, cond bool) {
	t.Helper()
	if !cond {
		t.Errorf("%s should be true", name)
	}
}

// checkFalse fails if the condition holds
func checkFalse(t *testing.T, name string, cond bool) {
	t.Helper()
	if cond {
		t.Errorf("%s should be false", name)
	}
}
