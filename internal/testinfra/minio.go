// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/tamstore/internal/objectstore"
)

const (
	// DefaultMinIOImage is the upstream MinIO server image.
	DefaultMinIOImage = "minio/minio:latest"

	// DefaultMinIOPort is MinIO's S3 API port.
	DefaultMinIOPort = "9000"

	// DefaultMinIOAccessKey and DefaultMinIOSecretKey are the root
	// credentials seeded into the test container.
	DefaultMinIOAccessKey = "tamstore-test"
	DefaultMinIOSecretKey = "tamstore-test-secret"
)

// MinIOContainer is a running MinIO server for integration tests.
type MinIOContainer struct {
	testcontainers.Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MinIOOption configures the MinIO container.
type MinIOOption func(*minioConfig)

type minioConfig struct {
	image        string
	accessKey    string
	secretKey    string
	startTimeout time.Duration
}

// WithMinIOImage overrides the Docker image, for pinning a version.
func WithMinIOImage(image string) MinIOOption {
	return func(c *minioConfig) {
		c.image = image
	}
}

// WithMinIOCredentials overrides the root credentials.
func WithMinIOCredentials(accessKey, secretKey string) MinIOOption {
	return func(c *minioConfig) {
		c.accessKey = accessKey
		c.secretKey = secretKey
	}
}

// WithMinIOStartTimeout bounds the wait for the server to come up.
func WithMinIOStartTimeout(timeout time.Duration) MinIOOption {
	return func(c *minioConfig) {
		c.startTimeout = timeout
	}
}

// NewMinIOContainer starts a MinIO server and waits for its health
// endpoint.
//
//	minio, err := NewMinIOContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer minio.Terminate(ctx)
//
//	store, err := objectstore.New(minio.StoreConfig("segments"))
func NewMinIOContainer(ctx context.Context, opts ...MinIOOption) (*MinIOContainer, error) {
	cfg := &minioConfig{
		image:        DefaultMinIOImage,
		accessKey:    DefaultMinIOAccessKey,
		secretKey:    DefaultMinIOSecretKey,
		startTimeout: 60 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMinIOPort + "/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     cfg.accessKey,
			"MINIO_ROOT_PASSWORD": cfg.secretKey,
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMinIOPort+"/tcp"),
			wait.ForHTTP("/minio/health/live").WithPort(DefaultMinIOPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMinIOPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MinIOContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: cfg.accessKey,
		SecretKey: cfg.secretKey,
	}, nil
}

// StoreConfig builds an objectstore configuration pointing at this
// container.
func (c *MinIOContainer) StoreConfig(bucket string) objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    bucket,
		UseSSL:    false,
	}
}

// Terminate stops and removes the container.
func (c *MinIOContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}

// Logs drains the container log for debugging failed runs.
func (c *MinIOContainer) Logs(ctx context.Context) (string, error) {
	reader, err := c.Container.Logs(ctx)
	if err != nil {
		return "", fmt.Errorf("get logs: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil && len(data) == 0 {
		return "", fmt.Errorf("read logs: %w", err)
	}
	return string(data), nil
}
