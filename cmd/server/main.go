// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package main is the entry point for the Tamstore server application.
//
// Tamstore is a self-hosted time-addressable media store. It keeps flow and
// segment metadata in DuckDB, media payloads in any S3-compatible object
// store, and serves the TAMS v7 REST API over HTTP.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Metadata store: Open DuckDB with endpoint failover (local file, s3://, or in-memory)
//  3. Object store: Build the MinIO client with a circuit breaker and ensure the bucket
//  4. Storage backends: Seed or load the backend registry (a default always exists)
//  5. Repositories: Sources, flows, segments, objects, delete requests, error audit trail
//  6. Supervision tree: suture v4 root with a worker layer and an API layer
//  7. HTTP server: TAMS v7 REST API with Prometheus metrics and health probes
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (OBJECT_ENDPOINT_URL, METADATA_ENDPOINTS, ...)
//   - Config file (config.yaml, or TAMS_CONFIG_PATH)
//   - Built-in defaults
//
// # Deployment Modes
//
// A full deployment pairs DuckDB metadata with an S3-compatible payload store:
//   - OBJECT_ENDPOINT_URL: Object store endpoint (e.g., minio:9000)
//   - OBJECT_ACCESS_KEY / OBJECT_SECRET_KEY: Credentials used for presigning
//   - OBJECT_BUCKET: Bucket holding segment payloads (default: tams)
//
// Without OBJECT_ENDPOINT_URL the server runs metadata-only: every catalog
// operation works, but segment uploads and presigned URLs return 503 until an
// object store is configured.
//
// Metadata endpoints fail over in order; the first endpoint that opens wins:
//
//	export METADATA_ENDPOINTS=/var/lib/tamstore/meta.duckdb,s3://tams-meta/meta.duckdb
//
// Empty METADATA_ENDPOINTS opens a private in-memory database, which suits
// development and tests but loses the catalog on restart.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections and drains in-flight requests
//   - Stops the deletion worker, reverting claimed batches to pending
//   - Flushes the error audit buffer
//   - Checkpoints and closes the DuckDB catalog
//
// # Example Usage
//
// Development with MinIO:
//
//	export OBJECT_ENDPOINT_URL=localhost:9000
//	export OBJECT_ACCESS_KEY=minioadmin
//	export OBJECT_SECRET_KEY=minioadmin
//	./tamstore
//
// Production with durable metadata and AWS S3:
//
//	export METADATA_ENDPOINTS=/var/lib/tamstore/meta.duckdb
//	export OBJECT_ENDPOINT_URL=https://s3.eu-west-1.amazonaws.com
//	export OBJECT_USE_SSL=true
//	export OBJECT_REGION=eu-west-1
//	export OBJECT_ACCESS_KEY=...
//	export OBJECT_SECRET_KEY=...
//	export OBJECT_BUCKET=my-tams-payloads
//	./tamstore
//
// Docker:
//
//	docker run -d \
//	  -e OBJECT_ENDPOINT_URL=minio:9000 \
//	  -e OBJECT_ACCESS_KEY=minioadmin \
//	  -e OBJECT_SECRET_KEY=minioadmin \
//	  -p 4010:4010 \
//	  ghcr.io/tomtom215/tamstore
//
// # Port 4010
//
// The default port 4010 follows the TAMS reference deployment, so clients
// and OpenAPI tooling configured against it connect unchanged.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/tamstore/internal/api"
	"github.com/tomtom215/tamstore/internal/audit"
	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/database"
	"github.com/tomtom215/tamstore/internal/deletes"
	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/objectstore"
	"github.com/tomtom215/tamstore/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Tamstore with supervisor tree")

	// Log configuration status - the object store is optional (metadata-only mode)
	if cfg.ObjectStore.EndpointURL != "" {
		logging.Info().
			Str("object_endpoint", cfg.ObjectStore.EndpointURL).
			Str("bucket", cfg.ObjectStore.Bucket).
			Str("schema", cfg.Metadata.Schema).
			Int("metadata_endpoints", len(cfg.Metadata.Endpoints)).
			Msg("Configuration loaded")
	} else {
		logging.Info().
			Bool("object_store", false).
			Str("schema", cfg.Metadata.Schema).
			Int("metadata_endpoints", len(cfg.Metadata.Endpoints)).
			Msg("Configuration loaded (metadata-only mode)")
	}

	// Open the metadata store, trying each configured endpoint in order
	db, err := database.New(&cfg.Metadata)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open metadata store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing metadata store")
		}
	}()
	defer func() {
		// Fold the WAL into the database file so the next start recovers fast.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Final checkpoint failed")
		}
	}()
	logging.Info().Str("endpoint", db.ActiveEndpoint()).Msg("Metadata store initialized")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the object store client. Construction does no network I/O; the
	// bucket probe may fail on a cold deployment and the circuit breaker
	// retries on first use.
	var store *objectstore.Store
	if cfg.ObjectStore.EndpointURL != "" {
		store, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStore.EndpointURL,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Region:    cfg.ObjectStore.Region,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to build object store client")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logging.Warn().Err(err).Str("bucket", store.Bucket()).Msg("Failed to ensure object bucket (will retry)")
		} else {
			logging.Info().Str("bucket", store.Bucket()).Msg("Object store connected")
		}
	} else {
		logging.Warn().Msg("OBJECT_ENDPOINT_URL not set - segment uploads and presigned URLs disabled")
	}

	// Seed or load the storage backend registry. Flow allocation resolves
	// the default backend, so the catalog must hold one before serving.
	backends := database.NewStorageBackendRepo(db)
	err = backends.EnsureDefault(ctx,
		cfg.TAMS.DefaultStorageBackendID,
		storageProvider(cfg.ObjectStore.EndpointURL),
		cfg.ObjectStore.Region,
		"primary")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed storage backend registry")
	}

	// Build repositories around the shared referential-integrity checker
	integrity := database.NewIntegrity(db)
	objects := database.NewObjectRepo(db, integrity)

	// Keep the interface nil when no store is configured; a typed nil would
	// defeat the repository's nil check.
	var payloads database.PayloadStore
	if store != nil {
		payloads = store
	}

	repos := api.Repos{
		Sources:  database.NewSourceRepo(db, integrity),
		Flows:    database.NewFlowRepo(db, integrity),
		Objects:  objects,
		Segments: database.NewSegmentRepo(db, integrity, objects, payloads),
		Deletes:  database.NewFlowDeleteRequestRepo(db),
		Backends: backends,
	}

	// Persist high-severity API errors to DuckDB for operator forensics.
	// Failure here degrades to in-log errors only, never blocks startup.
	auditStore := audit.NewDuckDBStore(db.Conn(), db.Schema())
	var recorder *audit.Recorder
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to create error audit table - audit trail disabled")
	} else {
		recorder = audit.NewRecorder(auditStore, 0)
		defer func() {
			if err := recorder.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit recorder")
			}
		}()
		logging.Info().Msg("Error audit trail initialized with DuckDB persistence")
	}

	handler := api.NewHandler(db, repos, store, cfg, recorder)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Worker layer services
	worker := deletes.NewWorker(repos.Deletes, repos.Segments, cfg.Deletes)
	tree.AddWorker(worker)
	logging.Info().
		Dur("poll_interval", cfg.Deletes.PollInterval).
		Int("batch_size", cfg.Deletes.BatchSize).
		Msg("Flow delete worker added to supervisor tree")

	// API layer services
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Tamstore stopped gracefully")
}

// storageProvider labels the seeded default backend after the configured
// endpoint. The label is advisory; clients read it from the service
// endpoint to pick upload strategies.
func storageProvider(endpointURL string) string {
	if strings.Contains(endpointURL, "amazonaws.com") {
		return "aws"
	}
	return "minio"
}
