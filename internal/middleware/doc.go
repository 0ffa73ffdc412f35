// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package middleware provides the HTTP middleware the API router composes
// around every route group.
//
// The pieces here use the func(http.HandlerFunc) http.HandlerFunc shape;
// the router adapts them to chi's func(http.Handler) http.Handler with a
// one-line wrapper. Ordering matters: RequestID runs first so the request
// and correlation IDs are in the context before anything logs, and
// PrometheusMetrics wraps the response writer so it sees the final status
// code.
//
// CORS and rate limiting are not defined here; the router takes those
// directly from go-chi/cors and go-chi/httprate.
package middleware
