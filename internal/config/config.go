// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package config

import (
	"time"
)

// Config holds all process configuration loaded from defaults, an optional
// YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Stores:
//     - Metadata: DuckDB endpoints holding the entity graph
//     - ObjectStore: S3-compatible store holding segment payload bytes
//
//  2. Behavior:
//     - TAMS: storage key prefix, presign TTL, allocation limits, the
//       async-delete promotion threshold
//     - Deletes: async deletion worker pacing
//
//  3. Surface:
//     - Server: HTTP listener and timeouts
//     - RateLimit, CORS: request admission
//
//  4. Observability:
//     - Logging: log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Metadata    MetadataConfig    `koanf:"metadata"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	TAMS        TAMSConfig        `koanf:"tams"`
	Deletes     DeletesConfig     `koanf:"deletes"`
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
	CORS        CORSConfig        `koanf:"cors"`
}

// ServerConfig holds the HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 4010)
//   - HTTP_READ_TIMEOUT: Request read deadline (default: 30s)
//   - HTTP_WRITE_TIMEOUT: Response write deadline (default: 60s)
//   - HTTP_SHUTDOWN_TIMEOUT: Graceful drain window on SIGTERM (default: 30s)
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error, fatal, panic (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetadataConfig holds the DuckDB metadata-store settings. Endpoints are
// DuckDB DSNs tried in listed order; the first that connects wins and the
// list rotates on connection loss. An empty list means a private in-memory
// database.
//
// Environment Variables:
//   - METADATA_ENDPOINTS: Comma-separated DSN list (e.g. /data/tams.duckdb)
//   - METADATA_ACCESS_KEY / METADATA_SECRET_KEY: Applied as DuckDB
//     s3_access_key_id / s3_secret_access_key for s3-resident databases
//   - METADATA_BUCKET: Bucket prefix for s3 DSNs
//   - METADATA_SCHEMA: Schema created and selected at init (default: tams)
//   - METADATA_MAX_MEMORY: DuckDB memory_limit (default: 2GB)
//   - METADATA_THREADS: DuckDB threads, 0 = runtime.NumCPU() (default: 0)
type MetadataConfig struct {
	Endpoints []string `koanf:"endpoints"`
	AccessKey string   `koanf:"access_key"`
	SecretKey string   `koanf:"secret_key"`
	Bucket    string   `koanf:"bucket"`
	Schema    string   `koanf:"schema"`
	MaxMemory string   `koanf:"max_memory"`
	Threads   int      `koanf:"threads"`
}

// ObjectStoreConfig holds the S3-compatible object-store settings.
//
// Environment Variables:
//   - OBJECT_ENDPOINT_URL: Endpoint, with or without scheme (e.g. minio:9000)
//   - OBJECT_ACCESS_KEY / OBJECT_SECRET_KEY: Static credentials
//   - OBJECT_BUCKET: Payload bucket, created at startup if absent (default: tams)
//   - OBJECT_USE_SSL: TLS to the endpoint (default: false)
//   - OBJECT_REGION: Region advertised in get_urls metadata
type ObjectStoreConfig struct {
	EndpointURL string `koanf:"endpoint_url"`
	AccessKey   string `koanf:"access_key"`
	SecretKey   string `koanf:"secret_key"`
	Bucket      string `koanf:"bucket"`
	UseSSL      bool   `koanf:"use_ssl"`
	Region      string `koanf:"region"`
}

// TAMSConfig holds store-wide behavior settings.
//
// Environment Variables:
//   - TAMS_STORAGE_PATH: Object key prefix (default: tams)
//   - PRESIGN_TTL_SECONDS: Lifetime of minted GET/PUT URLs (default: 3600)
//   - ASYNC_DELETE_THRESHOLD: Segment-row count above which a range delete
//     is promoted to an async FlowDeleteRequest (default: 500)
//   - DEFAULT_STORAGE_BACKEND_ID: UUID of the backend marked default; empty
//     means one is synthesized from the object-store settings at startup
//   - ALLOCATION_DEFAULT_LIMIT: Upload slots minted when a storage request
//     names neither object_ids nor limit (default: 10)
//   - ALLOCATION_MAX_LIMIT: Hard cap per storage request (default: 100)
type TAMSConfig struct {
	StoragePath             string `koanf:"storage_path"`
	PresignTTLSeconds       int    `koanf:"presign_ttl_seconds"`
	AsyncDeleteThreshold    int    `koanf:"async_delete_threshold"`
	DefaultStorageBackendID string `koanf:"default_storage_backend_id"`
	AllocationDefaultLimit  int    `koanf:"allocation_default_limit"`
	AllocationMaxLimit      int    `koanf:"allocation_max_limit"`
}

// DeletesConfig paces the async deletion worker.
//
// Environment Variables:
//   - DELETE_POLL_INTERVAL: Idle sleep between queue polls (default: 5s)
//   - DELETE_BATCH_SIZE: Segment rows deleted per batch (default: 100)
//   - DELETE_RATE_PER_SECOND: Batch rate limit, 0 = unlimited (default: 0)
type DeletesConfig struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	BatchSize     int           `koanf:"batch_size"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// RateLimitConfig bounds per-client request rates.
//
// Environment Variables:
//   - RATELIMIT_ENABLED: Master toggle (default: true)
//   - RATE_LIMIT_REQUESTS: Requests per minute per client IP (default: 600)
type RateLimitConfig struct {
	Enabled           bool `koanf:"enabled"`
	RequestsPerMinute int  `koanf:"requests_per_minute"`
}

// CORSConfig controls cross-origin access to the REST surface.
//
// Environment Variables:
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}
