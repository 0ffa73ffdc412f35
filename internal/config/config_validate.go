// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true, "panic": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateMetadata(); err != nil {
		return err
	}

	if err := c.validateObjectStore(); err != nil {
		return err
	}

	if err := c.validateTAMS(); err != nil {
		return err
	}

	if err := c.validateDeletes(); err != nil {
		return err
	}

	return c.validateRateLimit()
}

// validateServer validates the HTTP listener settings
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// validateLogging validates log level and format
func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, got: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}

// validateMetadata validates the metadata-store settings
func (c *Config) validateMetadata() error {
	if c.Metadata.Schema == "" {
		return fmt.Errorf("METADATA_SCHEMA is required")
	}
	if c.Metadata.Threads < 0 {
		return fmt.Errorf("METADATA_THREADS must not be negative, got: %d", c.Metadata.Threads)
	}
	for _, endpoint := range c.Metadata.Endpoints {
		if strings.TrimSpace(endpoint) == "" {
			return fmt.Errorf("METADATA_ENDPOINTS contains an empty entry")
		}
	}

	// s3-resident databases need credentials to open at all.
	if c.hasS3MetadataEndpoint() && (c.Metadata.AccessKey == "" || c.Metadata.SecretKey == "") {
		return fmt.Errorf("METADATA_ACCESS_KEY and METADATA_SECRET_KEY are required for s3 metadata endpoints")
	}
	return nil
}

func (c *Config) hasS3MetadataEndpoint() bool {
	for _, endpoint := range c.Metadata.Endpoints {
		if strings.HasPrefix(endpoint, "s3://") {
			return true
		}
	}
	return false
}

// validateObjectStore validates the object-store settings. The endpoint is
// optional overall (a metadata-only deployment), but once set it must be
// usable for presigning, which needs credentials.
func (c *Config) validateObjectStore() error {
	if c.ObjectStore.EndpointURL == "" {
		return nil
	}

	if err := validateObjectEndpoint(c.ObjectStore.EndpointURL); err != nil {
		return fmt.Errorf("OBJECT_ENDPOINT_URL is invalid: %w", err)
	}
	if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
		return fmt.Errorf("OBJECT_ACCESS_KEY and OBJECT_SECRET_KEY are required when OBJECT_ENDPOINT_URL is set")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("OBJECT_BUCKET is required when OBJECT_ENDPOINT_URL is set")
	}

	// A scheme on the endpoint must agree with OBJECT_USE_SSL.
	if strings.HasPrefix(c.ObjectStore.EndpointURL, "http://") && c.ObjectStore.UseSSL {
		return fmt.Errorf("OBJECT_USE_SSL=true disagrees with http:// endpoint")
	}
	if strings.HasPrefix(c.ObjectStore.EndpointURL, "https://") && !c.ObjectStore.UseSSL {
		return fmt.Errorf("OBJECT_USE_SSL=false disagrees with https:// endpoint")
	}
	return nil
}

// validateObjectEndpoint accepts host:port with an optional http/https scheme.
func validateObjectEndpoint(raw string) error {
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required (e.g., minio:9000, s3.eu-west-1.amazonaws.com)")
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("should be base URL only, remove path: %s", parsed.Path)
	}
	return nil
}

// validateTAMS validates store-wide behavior settings
func (c *Config) validateTAMS() error {
	if c.TAMS.StoragePath == "" {
		return fmt.Errorf("TAMS_STORAGE_PATH is required")
	}
	if strings.HasPrefix(c.TAMS.StoragePath, "/") || strings.HasSuffix(c.TAMS.StoragePath, "/") {
		return fmt.Errorf("TAMS_STORAGE_PATH must not have leading or trailing slashes, got: %s", c.TAMS.StoragePath)
	}
	if c.TAMS.PresignTTLSeconds < 1 || c.TAMS.PresignTTLSeconds > 604800 {
		return fmt.Errorf("PRESIGN_TTL_SECONDS must be between 1 and 604800 (7 days), got: %d", c.TAMS.PresignTTLSeconds)
	}
	if c.TAMS.AsyncDeleteThreshold < 1 {
		return fmt.Errorf("ASYNC_DELETE_THRESHOLD must be at least 1, got: %d", c.TAMS.AsyncDeleteThreshold)
	}
	if c.TAMS.AllocationDefaultLimit < 1 {
		return fmt.Errorf("ALLOCATION_DEFAULT_LIMIT must be at least 1, got: %d", c.TAMS.AllocationDefaultLimit)
	}
	if c.TAMS.AllocationMaxLimit < c.TAMS.AllocationDefaultLimit {
		return fmt.Errorf("ALLOCATION_MAX_LIMIT (%d) must be at least ALLOCATION_DEFAULT_LIMIT (%d)",
			c.TAMS.AllocationMaxLimit, c.TAMS.AllocationDefaultLimit)
	}
	return nil
}

// validateDeletes validates the async deletion worker settings
func (c *Config) validateDeletes() error {
	if c.Deletes.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("DELETE_POLL_INTERVAL must be at least 100ms, got: %s", c.Deletes.PollInterval)
	}
	if c.Deletes.BatchSize < 1 || c.Deletes.BatchSize > 10000 {
		return fmt.Errorf("DELETE_BATCH_SIZE must be between 1 and 10000, got: %d", c.Deletes.BatchSize)
	}
	if c.Deletes.RatePerSecond < 0 {
		return fmt.Errorf("DELETE_RATE_PER_SECOND must not be negative, got: %f", c.Deletes.RatePerSecond)
	}
	return nil
}

// validateRateLimit validates request admission settings
func (c *Config) validateRateLimit() error {
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1 when rate limiting is enabled, got: %d", c.RateLimit.RequestsPerMinute)
	}
	return nil
}
