// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/tamstore/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewChiMiddlewareDefaults(t *testing.T) {
	m := NewChiMiddleware(nil)

	checkIntEqual(t, "requests", m.requests, 600)
	if m.window != time.Minute {
		t.Errorf("Expected one-minute window, got %v", m.window)
	}
	checkTrue(t, "rate limit enabled", m.rateLimit)
	if m.cors == nil {
		t.Fatal("Expected a CORS handler")
	}
}

func TestRateLimitDisabledPassthrough(t *testing.T) {
	cfg := &config.Config{}
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.RequestsPerMinute = 1

	handler := NewChiMiddleware(cfg).RateLimit()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/flows", nil))
		checkHTTPStatus(t, w, http.StatusOK)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	cfg := &config.Config{}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMinute = 2

	handler := NewChiMiddleware(cfg).RateLimit()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/flows", nil))
		checkHTTPStatus(t, w, http.StatusOK)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/flows", nil))
	checkHTTPStatus(t, w, http.StatusTooManyRequests)
}

func TestCORSWildcard(t *testing.T) {
	handler := NewChiMiddleware(nil).CORS()(okHandler())

	r := httptest.NewRequest("OPTIONS", "/flows", nil)
	r.Header.Set("Origin", "https://studio.example.com")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	checkStringEqual(t, "allow origin",
		w.Header().Get("Access-Control-Allow-Origin"), "*")
}

func TestCORSExplicitOrigin(t *testing.T) {
	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{"https://studio.example.com"}
	handler := NewChiMiddleware(cfg).CORS()(okHandler())

	r := httptest.NewRequest("GET", "/flows", nil)
	r.Header.Set("Origin", "https://studio.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	checkStringEqual(t, "allowed origin",
		w.Header().Get("Access-Control-Allow-Origin"), "https://studio.example.com")

	r = httptest.NewRequest("GET", "/flows", nil)
	r.Header.Set("Origin", "https://other.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	checkStringEqual(t, "denied origin",
		w.Header().Get("Access-Control-Allow-Origin"), "")
}
