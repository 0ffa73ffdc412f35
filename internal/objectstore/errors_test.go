// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/minio/minio-go/v7"
	gobreaker "github.com/sony/gobreaker/v2"
)

// timeoutErr satisfies net.Error for classification tests.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "nil error",
			err:  nil,
			want: KindOther,
		},
		{
			name: "breaker open",
			err:  gobreaker.ErrOpenState,
			want: KindUnavailable,
		},
		{
			name: "breaker half-open saturated",
			err:  gobreaker.ErrTooManyRequests,
			want: KindUnavailable,
		},
		{
			name: "wrapped breaker open",
			err:  fmt.Errorf("failed to put object x: %w", gobreaker.ErrOpenState),
			want: KindUnavailable,
		},
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: KindNetwork,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: KindNetwork,
		},
		{
			name: "net timeout",
			err:  timeoutErr{},
			want: KindNetwork,
		},
		{
			name: "no such key",
			err:  minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404},
			want: KindNotFound,
		},
		{
			name: "no such bucket",
			err:  minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404},
			want: KindNotFound,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("failed to head object x: %w", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}),
			want: KindNotFound,
		},
		{
			name: "access denied",
			err:  minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403},
			want: KindAuth,
		},
		{
			name: "bad signature",
			err:  minio.ErrorResponse{Code: "SignatureDoesNotMatch", StatusCode: 403},
			want: KindAuth,
		},
		{
			name: "status fallback 404",
			err:  minio.ErrorResponse{Code: "SomethingElse", StatusCode: 404},
			want: KindNotFound,
		},
		{
			name: "status fallback 503",
			err:  minio.ErrorResponse{Code: "SlowDown", StatusCode: 503},
			want: KindNetwork,
		},
		{
			name: "unclassified error",
			err:  errors.New("boom"),
			want: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := fmt.Errorf("failed to head object x: %w", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	if !IsNotFound(notFound) {
		t.Error("IsNotFound() = false for wrapped NoSuchKey, want true")
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true, want false")
	}
	if IsNotFound(errors.New("boom")) {
		t.Error("IsNotFound() = true for unclassified error, want false")
	}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "breaker open", err: gobreaker.ErrOpenState, want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "not found", err: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindOther, "other"},
		{KindNotFound, "not_found"},
		{KindAuth, "auth"},
		{KindNetwork, "network"},
		{KindUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{name: "bare host honors flag", raw: "minio:9000", useSSL: false, wantHost: "minio:9000", wantSecure: false},
		{name: "bare host ssl", raw: "minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: true},
		{name: "http scheme overrides flag", raw: "http://minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: false},
		{name: "https scheme overrides flag", raw: "https://s3.example.com", useSSL: false, wantHost: "s3.example.com", wantSecure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, secure := splitEndpoint(tt.raw, tt.useSSL)
			if host != tt.wantHost || secure != tt.wantSecure {
				t.Errorf("splitEndpoint(%q, %v) = (%q, %v), want (%q, %v)",
					tt.raw, tt.useSSL, host, secure, tt.wantHost, tt.wantSecure)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Endpoint: "minio:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "tams"},
			wantErr: false,
		},
		{
			name:    "missing endpoint",
			cfg:     Config{Bucket: "tams"},
			wantErr: true,
		},
		{
			name:    "missing bucket",
			cfg:     Config{Endpoint: "minio:9000"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if store.Bucket() != tt.cfg.Bucket {
				t.Errorf("Bucket() = %q, want %q", store.Bucket(), tt.cfg.Bucket)
			}
		})
	}
}
