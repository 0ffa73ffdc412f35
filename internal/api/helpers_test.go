// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean string", "flows/abc", "flows/abc"},
		{"newline escaped", "line1\nline2", "line1\\x0aline2"},
		{"carriage return escaped", "a\rb", "a\\x0db"},
		{"tab escaped", "a\tb", "a\\x09b"},
		{"delete escaped", "a\x7fb", "a\\x7fb"},
		{"unicode preserved", "café", "café"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkStringEqual(t, "sanitized", sanitizeLogValue(tt.input), tt.want)
		})
	}
}

func TestGenerateETag(t *testing.T) {
	// FNV-1a 32-bit known vectors.
	checkStringEqual(t, "empty etag", generateETag(nil), "811c9dc5")
	checkStringEqual(t, "single byte etag", generateETag([]byte("a")), "e40c292c")

	first := generateETag([]byte(`{"status":"success"}`))
	second := generateETag([]byte(`{"status":"success"}`))
	checkStringEqual(t, "deterministic etag", first, second)

	if generateETag([]byte("a")) == generateETag([]byte("b")) {
		t.Error("Expected different payloads to produce different ETags")
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 0, defaultPageLimit},
		{"explicit", "page=3&limit=50", 3, 50},
		{"negative page floors", "page=-2", 0, defaultPageLimit},
		{"zero limit ignored", "limit=0", 0, defaultPageLimit},
		{"negative limit ignored", "limit=-5", 0, defaultPageLimit},
		{"oversize limit clamps", "limit=5000", 0, maxPageLimit},
		{"garbage limit ignored", "limit=abc", 0, defaultPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/flows?"+tt.query, nil)
			page, limit := parsePagination(r)
			checkIntEqual(t, "page", page, tt.wantPage)
			checkIntEqual(t, "limit", limit, tt.wantLimit)
		})
	}
}

func TestTrimPage(t *testing.T) {
	rows, hasMore := trimPage([]int{1, 2, 3}, 2)
	checkLenEqual(t, "trimmed rows", len(rows), 2)
	checkTrue(t, "overflow detected", hasMore)

	rows, hasMore = trimPage([]int{1, 2}, 2)
	checkLenEqual(t, "exact rows", len(rows), 2)
	checkFalse(t, "no overflow", hasMore)

	rows, hasMore = trimPage(nil, 2)
	checkLenEqual(t, "empty rows", len(rows), 0)
	checkFalse(t, "empty overflow", hasMore)
}

func TestPageInfo(t *testing.T) {
	info := pageInfo(2, 25, 10, true)
	checkIntEqual(t, "page", info.Page, 2)
	checkIntEqual(t, "limit", info.Limit, 25)
	checkIntEqual(t, "count", info.Count, 10)
	checkTrue(t, "has more", info.HasMore)
}

func TestWritePagingHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	writePagingHeaders(w, 2, 25, true)
	checkStringEqual(t, "limit header", w.Header().Get("X-Paging-Limit"), "25")
	checkStringEqual(t, "next key header", w.Header().Get("X-Paging-NextKey"), "3")

	w = httptest.NewRecorder()
	writePagingHeaders(w, 0, 100, false)
	checkStringEqual(t, "limit header", w.Header().Get("X-Paging-Limit"), "100")
	checkStringEqual(t, "next key absent", w.Header().Get("X-Paging-NextKey"), "")
}

func TestGetBoolParam(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"cascade=true", true},
		{"cascade=1", true},
		{"cascade=false", false},
		{"cascade=yes", false},
		{"", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/sources/x?"+tt.query, nil)
		if got := getBoolParam(r, "cascade"); got != tt.want {
			t.Errorf("getBoolParam(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestGetIntParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/flows?limit=42", nil)
	checkIntEqual(t, "present", getIntParam(r, "limit", 7), 42)
	checkIntEqual(t, "absent", getIntParam(r, "page", 7), 7)

	r = httptest.NewRequest("GET", "/flows?limit=many", nil)
	checkIntEqual(t, "garbage", getIntParam(r, "limit", 7), 7)
}

func TestGetStringPtrParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/flows?label=studio", nil)
	got := getStringPtrParam(r, "label")
	if got == nil || *got != "studio" {
		t.Errorf("Expected pointer to %q, got %v", "studio", got)
	}
	if getStringPtrParam(r, "missing") != nil {
		t.Error("Expected nil for absent parameter")
	}
}
