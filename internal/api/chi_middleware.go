// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/tamstore/internal/config"
)

// ChiMiddleware builds the router-level middleware from configuration:
// CORS (global, so OPTIONS preflight works on every route) and per-IP
// rate limiting on the API route groups.
type ChiMiddleware struct {
	cors      func(http.Handler) http.Handler
	requests  int
	window    time.Duration
	rateLimit bool
}

// NewChiMiddleware derives the middleware set from the process config.
func NewChiMiddleware(cfg *config.Config) *ChiMiddleware {
	origins := []string{"*"}
	requests := 600
	enabled := true
	if cfg != nil {
		if len(cfg.CORS.AllowedOrigins) > 0 {
			origins = cfg.CORS.AllowedOrigins
		}
		if cfg.RateLimit.RequestsPerMinute > 0 {
			requests = cfg.RateLimit.RequestsPerMinute
		}
		enabled = cfg.RateLimit.Enabled
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders: []string{"ETag", "X-Request-ID", "X-Paging-Limit", "X-Paging-NextKey"},
		MaxAge:         86400,
	})

	return &ChiMiddleware{
		cors:      corsHandler,
		requests:  requests,
		window:    time.Minute,
		rateLimit: enabled,
	}
}

// CORS returns the global CORS middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a per-IP rate limiter, or a no-op when disabled.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if !m.rateLimit {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.requests,
		m.window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
