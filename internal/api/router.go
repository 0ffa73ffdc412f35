// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/middleware"
)

// Router assembles the HTTP route tree.
type Router struct {
	handler *Handler
	chiMW   *ChiMiddleware
}

// NewRouter builds a router around the given handlers.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{
		handler: handler,
		chiMW:   NewChiMiddleware(cfg),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler shape for r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup wires every route. Health and metrics sit outside the rate
// limiter so probes and scrapers never compete with API traffic; HEAD is
// served on every GET route via chi's GetHead.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMW.CORS())
	r.Use(chimiddleware.GetHead)

	h := router.handler

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Route("/service", func(r chi.Router) {
			r.Get("/", h.GetService)
			r.Route("/storage-backends", func(r chi.Router) {
				r.Get("/", h.ListStorageBackends)
				r.Post("/", h.CreateStorageBackend)
				r.Put("/{backendID}", h.UpdateStorageBackend)
				r.Delete("/{backendID}", h.DeleteStorageBackend)
			})
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.Post("/", h.CreateSource)

			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", h.GetSource)
				r.Delete("/", h.DeleteSource)

				r.Get("/tags", h.GetSourceTags)
				r.Put("/tags", h.PutSourceTags)
				r.Delete("/tags", h.DeleteSourceTags)
				r.Get("/tags/{name}", h.GetSourceTag)
				r.Put("/tags/{name}", h.PutSourceTag)
				r.Delete("/tags/{name}", h.DeleteSourceTag)

				r.Get("/description", h.GetSourceDescription)
				r.Put("/description", h.PutSourceDescription)
				r.Delete("/description", h.DeleteSourceDescription)

				r.Get("/label", h.GetSourceLabel)
				r.Put("/label", h.PutSourceLabel)
				r.Delete("/label", h.DeleteSourceLabel)

				r.Get("/source_collection", h.GetSourceCollection)
				r.Put("/source_collection", h.PutSourceCollection)
			})
		})

		r.Route("/flows", func(r chi.Router) {
			r.Get("/", h.ListFlows)
			r.Post("/", h.CreateFlow)

			r.Route("/{flowID}", func(r chi.Router) {
				r.Get("/", h.GetFlow)
				r.Put("/", h.UpdateFlow)
				r.Delete("/", h.DeleteFlow)

				r.Get("/tags", h.GetFlowTags)
				r.Put("/tags", h.PutFlowTags)
				r.Delete("/tags", h.DeleteFlowTags)
				r.Get("/tags/{name}", h.GetFlowTag)
				r.Put("/tags/{name}", h.PutFlowTag)
				r.Delete("/tags/{name}", h.DeleteFlowTag)

				r.Get("/description", h.GetFlowDescription)
				r.Put("/description", h.PutFlowDescription)
				r.Delete("/description", h.DeleteFlowDescription)

				r.Get("/label", h.GetFlowLabel)
				r.Put("/label", h.PutFlowLabel)
				r.Delete("/label", h.DeleteFlowLabel)

				r.Get("/read_only", h.GetFlowReadOnly)
				r.Put("/read_only", h.PutFlowReadOnly)
				r.Delete("/read_only", h.DeleteFlowReadOnly)

				r.Get("/max_bit_rate", h.GetFlowMaxBitRate)
				r.Put("/max_bit_rate", h.PutFlowMaxBitRate)
				r.Delete("/max_bit_rate", h.DeleteFlowMaxBitRate)

				r.Get("/avg_bit_rate", h.GetFlowAvgBitRate)
				r.Put("/avg_bit_rate", h.PutFlowAvgBitRate)
				r.Delete("/avg_bit_rate", h.DeleteFlowAvgBitRate)

				r.Get("/flow_collection", h.GetFlowCollection)
				r.Put("/flow_collection", h.PutFlowCollection)
				r.Delete("/flow_collection", h.DeleteFlowCollection)

				r.Post("/storage", h.AllocateStorage)

				r.Get("/segments", h.ListSegments)
				r.Post("/segments", h.CreateSegment)
				r.Delete("/segments", h.DeleteSegments)
			})
		})

		r.Route("/objects", func(r chi.Router) {
			r.Get("/", h.ListObjects)
			r.Get("/{objectID}", h.GetObject)
			r.Delete("/{objectID}", h.DeleteObject)
		})

		r.Route("/flow-delete-requests", func(r chi.Router) {
			r.Get("/", h.ListDeleteRequests)
			r.Post("/", h.CreateDeleteRequest)
			r.Get("/{requestID}", h.GetDeleteRequest)
		})
	})

	return r
}
