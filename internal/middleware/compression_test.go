// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompression_GzipsWhenAccepted(t *testing.T) {
	body := strings.Repeat(`{"object_id":"abc","timerange":"[0:0_1:0)"}`, 50)
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}

	req := httptest.NewRequest(http.MethodGet, "/flows/x/segments", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compression(handler)(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("response is not valid gzip: %v", err)
	}
	defer gz.Close()

	decoded, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	if string(decoded) != body {
		t.Error("decompressed body does not match original")
	}
}

func TestCompression_PassthroughWithoutAcceptEncoding(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Compression(handler)(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("expected no encoding header, got %q", got)
	}
	if rec.Body.String() != "plain" {
		t.Errorf("expected uncompressed body, got %q", rec.Body.String())
	}
}

func TestCompression_PreservesStatusCode(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND"}}`))
	}

	req := httptest.NewRequest(http.MethodGet, "/sources/missing", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compression(handler)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 through compression, got %d", rec.Code)
	}
}
