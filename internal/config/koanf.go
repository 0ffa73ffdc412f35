// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tamstore/config.yaml",
	"/etc/tamstore/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "TAMS_CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4010,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metadata: MetadataConfig{
			Endpoints: []string{}, // empty = private in-memory database
			Bucket:    "",
			Schema:    "tams",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		ObjectStore: ObjectStoreConfig{
			EndpointURL: "",
			Bucket:      "tams",
			UseSSL:      false,
			Region:      "",
		},
		TAMS: TAMSConfig{
			StoragePath:             "tams",
			PresignTTLSeconds:       3600,
			AsyncDeleteThreshold:    500,
			DefaultStorageBackendID: "", // synthesized at startup when empty
			AllocationDefaultLimit:  10,
			AllocationMaxLimit:      100,
		},
		Deletes: DeletesConfig{
			PollInterval:  5 * time.Second,
			BatchSize:     100,
			RatePerSecond: 0, // Unlimited
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// OBJECT_ENDPOINT_URL -> objectstore.endpoint_url
	// ASYNC_DELETE_THRESHOLD -> tams.async_delete_threshold
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"metadata.endpoints",
	"cors.allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// The recognized names match the process-wide options from the deployment
// guide, so METADATA_ENDPOINTS and friends keep working verbatim.
//
// Examples:
//   - METADATA_ENDPOINTS -> metadata.endpoints
//   - OBJECT_ENDPOINT_URL -> objectstore.endpoint_url
//   - TAMS_STORAGE_PATH -> tams.storage_path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Metadata store mappings
		"metadata_endpoints":  "metadata.endpoints",
		"metadata_access_key": "metadata.access_key",
		"metadata_secret_key": "metadata.secret_key",
		"metadata_bucket":     "metadata.bucket",
		"metadata_schema":     "metadata.schema",
		"metadata_max_memory": "metadata.max_memory",
		"metadata_threads":    "metadata.threads",

		// Object store mappings
		"object_endpoint_url": "objectstore.endpoint_url",
		"object_access_key":   "objectstore.access_key",
		"object_secret_key":   "objectstore.secret_key",
		"object_bucket":       "objectstore.bucket",
		"object_use_ssl":      "objectstore.use_ssl",
		"object_region":       "objectstore.region",

		// TAMS behavior mappings
		"tams_storage_path":          "tams.storage_path",
		"presign_ttl_seconds":        "tams.presign_ttl_seconds",
		"async_delete_threshold":     "tams.async_delete_threshold",
		"default_storage_backend_id": "tams.default_storage_backend_id",
		"allocation_default_limit":   "tams.allocation_default_limit",
		"allocation_max_limit":       "tams.allocation_max_limit",

		// Deletion worker mappings
		"delete_poll_interval":   "deletes.poll_interval",
		"delete_batch_size":      "deletes.batch_size",
		"delete_rate_per_second": "deletes.rate_per_second",

		// Rate limit mappings
		"ratelimit_enabled":   "ratelimit.enabled",
		"rate_limit_requests": "ratelimit.requests_per_minute",

		// CORS mappings
		"cors_origins": "cors.allowed_origins",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
