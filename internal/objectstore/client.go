// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
)

// DefaultPresignTTL is the presigned URL lifetime when the caller does not
// override it.
const DefaultPresignTTL = 3600 * time.Second

// Config holds the settings needed to reach one S3-compatible endpoint.
type Config struct {
	// Endpoint is host:port, with an optional http/https scheme prefix.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// ObjectInfo is the subset of HEAD metadata the store consumes.
type ObjectInfo struct {
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// Store is the object-store adapter. It owns one minio client against one
// bucket; all network calls run through the circuit breaker. The adapter is
// safe for concurrent use.
type Store struct {
	client  *minio.Client
	bucket  string
	region  string
	breaker *breaker
}

// New builds a Store from the given config. It validates the endpoint shape
// but performs no network I/O; call EnsureBucket to probe connectivity.
func New(cfg Config) (*Store, error) {
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	}
	if cfg.Region != "" {
		opts.Region = cfg.Region
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		breaker: newBreaker("object-store"),
	}, nil
}

// splitEndpoint strips an optional scheme from the endpoint and reconciles
// it with the useSSL flag. minio.New wants a bare host:port.
func splitEndpoint(raw string, useSSL bool) (endpoint string, secure bool) {
	secure = useSSL
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimPrefix(raw, "https://"), true
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimPrefix(raw, "http://"), false
	default:
		return raw, secure
	}
}

// Bucket returns the bucket this adapter operates on.
func (s *Store) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the configured bucket when it does not exist yet.
// Called once at startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.breaker.execute(func() (any, error) {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}
		return nil, s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	if err != nil {
		return fmt.Errorf("failed to ensure bucket %s: %w", s.bucket, err)
	}
	logging.Debug().Str("bucket", s.bucket).Msg("Object store bucket ready")
	return nil
}

// Ping probes the bucket without mutating anything. Readiness checks use
// it to tell an unreachable endpoint from a missing bucket.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.breaker.execute(func() (any, error) {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("bucket %s does not exist", s.bucket)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("object store ping failed: %w", err)
	}
	return nil
}

// Put writes bytes under a key. Storage allocation refuses read-only
// flows before a key is ever minted, so Put itself does not guard
// against overwrites.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	_, err := s.breaker.execute(func() (any, error) {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		return nil, err
	})
	metrics.RecordObjectStoreOperation("put", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Get reads the full payload under a key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	result, err := s.breaker.execute(func() (any, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := obj.Close(); closeErr != nil {
				logging.Warn().Err(closeErr).Str("key", key).Msg("Failed to close object reader")
			}
		}()
		// GetObject is lazy; the first read surfaces NoSuchKey.
		return io.ReadAll(obj)
	})
	metrics.RecordObjectStoreOperation("get", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	data, _ := result.([]byte)
	return data, nil
}

// Delete removes the bytes under a key. Deleting a missing key is not an
// error; S3 semantics treat it as a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.breaker.execute(func() (any, error) {
		return nil, s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	})
	metrics.RecordObjectStoreOperation("delete", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a key currently holds bytes.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Head fetches object metadata without the payload.
func (s *Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	start := time.Now()
	result, err := s.breaker.execute(func() (any, error) {
		info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return nil, err
		}
		return &ObjectInfo{
			Size:         info.Size,
			ContentType:  info.ContentType,
			LastModified: info.LastModified,
			ETag:         info.ETag,
		}, nil
	})
	metrics.RecordObjectStoreOperation("head", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	info, _ := result.(*ObjectInfo)
	return info, nil
}

// List returns up to maxKeys keys under a prefix, in lexical order.
// maxKeys <= 0 means no limit.
func (s *Store) List(ctx context.Context, prefix string, maxKeys int) ([]string, error) {
	start := time.Now()
	result, err := s.breaker.execute(func() (any, error) {
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var keys []string
		for info := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if info.Err != nil {
				return nil, info.Err
			}
			keys = append(keys, info.Key)
			if maxKeys > 0 && len(keys) >= maxKeys {
				break
			}
		}
		return keys, nil
	})
	metrics.RecordObjectStoreOperation("list", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	keys, _ := result.([]string)
	return keys, nil
}

// Copy duplicates bytes from one key to another inside the bucket.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	start := time.Now()
	_, err := s.breaker.execute(func() (any, error) {
		_, err := s.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
			minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey})
		return nil, err
	})
	metrics.RecordObjectStoreOperation("copy", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// PresignGet mints a presigned download URL for a key. URLs are never
// cached; every call produces a fresh signature valid for the full TTL.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		metrics.RecordObjectStoreOperation("presign", err, 0)
		return "", fmt.Errorf("failed to presign GET for %s: %w", key, err)
	}
	metrics.RecordPresignedURL("GET")
	return u.String(), nil
}

// PresignPut mints a presigned upload URL for a key.
func (s *Store) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		metrics.RecordObjectStoreOperation("presign", err, 0)
		return "", fmt.Errorf("failed to presign PUT for %s: %w", key, err)
	}
	metrics.RecordPresignedURL("PUT")
	return u.String(), nil
}
