// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
Package main is the entry point for the Tamstore server application.

Tamstore is a self-hosted time-addressable media store implementing the TAMS
v7 API. Media flows are addressed by identity and timerange rather than by
file: the catalog (sources, flows, segments, objects) lives in DuckDB while
segment payloads live in any S3-compatible object store and move via
presigned URLs, so media bytes never pass through this server.

# Application Architecture

The server implements a layered architecture with Suture v4 process supervision:

	RootSupervisor ("tamstore")
	├── WorkerSupervisor ("worker-layer")
	│   └── Flow delete worker (async segment deletion)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (TAMS v7 REST API)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Metadata store: DuckDB with ordered endpoint failover
 4. Object store: MinIO client wrapped in a gobreaker circuit breaker
 5. Storage backends: Registry seeded with a default backend
 6. Repositories: Sources, flows, segments, objects, delete requests
 7. Error audit trail: High-severity API errors persisted to DuckDB
 8. Supervisor tree: Suture v4 process supervision
 9. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_HOST=0.0.0.0            # Listen address
	HTTP_PORT=4010               # HTTP server port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Metadata store (DuckDB)
	METADATA_ENDPOINTS=          # Comma-separated, tried in order; empty = in-memory
	METADATA_SCHEMA=tams         # Schema holding the catalog tables
	METADATA_MAX_MEMORY=2GB      # DuckDB memory ceiling
	METADATA_ACCESS_KEY=         # Required for s3:// metadata endpoints
	METADATA_SECRET_KEY=

	# Object store (S3-compatible)
	OBJECT_ENDPOINT_URL=         # e.g. minio:9000; empty = metadata-only mode
	OBJECT_ACCESS_KEY=
	OBJECT_SECRET_KEY=
	OBJECT_BUCKET=tams
	OBJECT_USE_SSL=false
	OBJECT_REGION=

	# Store behavior
	TAMS_STORAGE_PATH=tams       # Key prefix for segment payloads
	PRESIGN_TTL_SECONDS=3600     # Presigned URL lifetime
	ASYNC_DELETE_THRESHOLD=500   # Segment count above which deletion goes async
	ALLOCATION_DEFAULT_LIMIT=10  # Default presigned PUT URLs per allocation
	ALLOCATION_MAX_LIMIT=100     # Cap on presigned PUT URLs per allocation

	# Deletion worker
	DELETE_POLL_INTERVAL=5s      # How often the worker looks for pending requests
	DELETE_BATCH_SIZE=100        # Segments deleted per claim
	DELETE_RATE_PER_SECOND=0     # Throttle; 0 = unlimited

	# Request admission
	RATELIMIT_ENABLED=true
	RATE_LIMIT_REQUESTS=600      # Requests per minute per client IP
	CORS_ORIGINS=*               # Comma-separated allowed origins

# Deployment Modes

Tamstore runs in two modes depending on OBJECT_ENDPOINT_URL:

	# Full deployment: catalog + payloads
	export OBJECT_ENDPOINT_URL=minio:9000
	export OBJECT_ACCESS_KEY=minioadmin OBJECT_SECRET_KEY=minioadmin
	./tamstore

	# Metadata-only: catalog operations work, media operations return 503
	./tamstore

Metadata endpoints fail over in order, so a durable deployment can name a
local file first and an s3:// replica second:

	export METADATA_ENDPOINTS=/var/lib/tamstore/meta.duckdb,s3://tams-meta/meta.duckdb

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (HTTP_SHUTDOWN_TIMEOUT)
 3. Stops the deletion worker, reverting claimed batches to pending
 4. Flushes the error audit buffer
 5. Checkpoints and closes the DuckDB catalog
 6. Reports any services that failed to stop

# Usage Examples

Development (in-memory catalog, local MinIO):

	export OBJECT_ENDPOINT_URL=localhost:9000
	export OBJECT_ACCESS_KEY=minioadmin OBJECT_SECRET_KEY=minioadmin
	go run ./cmd/server

Production (durable catalog, AWS S3):

	export METADATA_ENDPOINTS=/var/lib/tamstore/meta.duckdb
	export OBJECT_ENDPOINT_URL=https://s3.eu-west-1.amazonaws.com
	export OBJECT_USE_SSL=true OBJECT_REGION=eu-west-1
	export OBJECT_ACCESS_KEY=... OBJECT_SECRET_KEY=...
	export OBJECT_BUCKET=my-tams-payloads
	./tamstore

Docker:

	docker run -d \
	  -e OBJECT_ENDPOINT_URL=minio:9000 \
	  -e OBJECT_ACCESS_KEY=minioadmin \
	  -e OBJECT_SECRET_KEY=minioadmin \
	  -p 4010:4010 \
	  ghcr.io/tomtom215/tamstore

# API Surface

The API follows TAMS v7 and is organized into categories:

  - Service: Store description, storage backend registry (CRUD)
  - Sources: Read-only listing plus tag, description, and label facets
  - Flows: Full CRUD, facets, collections, read-only marking
  - Storage: Presigned upload allocation (POST /flows/{id}/storage)
  - Segments: Registration, timerange listing, timerange deletion
  - Objects: Payload metadata with flow reference tracking
  - Delete requests: Async deletion tracking (list, create, get)
  - Operations: /health, /health/ready, and Prometheus /metrics

# See Also

  - internal/config: Configuration loading and validation
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/database: DuckDB repositories and referential integrity
  - internal/objectstore: S3 adapter, circuit breaker, presigning
  - internal/deletes: Async flow deletion worker
*/
package main
