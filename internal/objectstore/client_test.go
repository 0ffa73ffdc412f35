// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// presignStore builds a Store whose endpoint is unroutable. Presigning is
// local HMAC computation when the region is pinned, so no test below may
// touch a method that performs network I/O.
func presignStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{
		Endpoint:  "127.0.0.1:1",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Bucket:    "tams-test",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	return store
}

func TestPresignGet(t *testing.T) {
	store := presignStore(t)
	ctx := context.Background()

	signed, err := store.PresignGet(ctx, "tams/2026/03/07/obj-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet() error = %v, want nil", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("PresignGet() returned unparseable URL %q: %v", signed, err)
	}
	if u.Host != "127.0.0.1:1" {
		t.Errorf("presigned host = %q, want %q", u.Host, "127.0.0.1:1")
	}
	if !strings.Contains(u.Path, "tams-test") || !strings.Contains(u.Path, "obj-1") {
		t.Errorf("presigned path %q missing bucket or key", u.Path)
	}

	query := u.Query()
	if query.Get("X-Amz-Signature") == "" {
		t.Error("presigned URL missing X-Amz-Signature")
	}
	if got := query.Get("X-Amz-Expires"); got != "900" {
		t.Errorf("X-Amz-Expires = %q, want %q", got, "900")
	}
}

func TestPresignPut(t *testing.T) {
	store := presignStore(t)
	ctx := context.Background()

	signed, err := store.PresignPut(ctx, "tams/2026/03/07/obj-2", time.Hour)
	if err != nil {
		t.Fatalf("PresignPut() error = %v, want nil", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("PresignPut() returned unparseable URL %q: %v", signed, err)
	}
	query := u.Query()
	if query.Get("X-Amz-Signature") == "" {
		t.Error("presigned URL missing X-Amz-Signature")
	}
	if got := query.Get("X-Amz-Expires"); got != "3600" {
		t.Errorf("X-Amz-Expires = %q, want %q", got, "3600")
	}
}

func TestPresignDefaultTTL(t *testing.T) {
	store := presignStore(t)
	ctx := context.Background()

	// Zero and negative TTLs fall back to the default lifetime.
	for _, ttl := range []time.Duration{0, -time.Minute} {
		signed, err := store.PresignGet(ctx, "obj-3", ttl)
		if err != nil {
			t.Fatalf("PresignGet(ttl=%v) error = %v, want nil", ttl, err)
		}
		u, err := url.Parse(signed)
		if err != nil {
			t.Fatalf("PresignGet(ttl=%v) returned unparseable URL: %v", ttl, err)
		}
		if got := u.Query().Get("X-Amz-Expires"); got != "3600" {
			t.Errorf("PresignGet(ttl=%v) X-Amz-Expires = %q, want %q", ttl, got, "3600")
		}
	}
}

func TestPresignURLsDifferPerMethod(t *testing.T) {
	store := presignStore(t)
	ctx := context.Background()

	get, err := store.PresignGet(ctx, "obj-4", time.Hour)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	put, err := store.PresignPut(ctx, "obj-4", time.Hour)
	if err != nil {
		t.Fatalf("PresignPut() error = %v", err)
	}
	if get == put {
		t.Error("GET and PUT presigned URLs are identical, want distinct signatures")
	}
}

func TestBreakerPassthrough(t *testing.T) {
	b := newBreaker("test-passthrough")

	result, err := b.execute(func() (any, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("execute() error = %v, want nil", err)
	}
	if result != "payload" {
		t.Errorf("execute() result = %v, want %q", result, "payload")
	}

	wantErr := errors.New("backend down")
	_, err = b.execute(func() (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("execute() error = %v, want %v", err, wantErr)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker("test-opens")

	calls := 0
	fail := func() (any, error) {
		calls++
		return nil, fmt.Errorf("simulated failure %d", calls)
	}

	// The trip condition needs ten observed requests at a 60% failure
	// rate; ten straight failures satisfies both.
	for i := 0; i < 10; i++ {
		if _, err := b.execute(fail); err == nil {
			t.Fatalf("execute() call %d error = nil, want failure", i+1)
		}
	}

	_, err := b.execute(fail)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("execute() after trip error = %v, want ErrOpenState", err)
	}
	if calls != 10 {
		t.Errorf("wrapped fn ran %d times, want 10 (open breaker must not invoke it)", calls)
	}
}

func TestBreakerStateConversions(t *testing.T) {
	states := []struct {
		state      gobreaker.State
		wantString string
		wantFloat  float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}

	for _, tt := range states {
		if got := stateToString(tt.state); got != tt.wantString {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.wantString)
		}
		if got := stateToFloat(tt.state); got != tt.wantFloat {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.wantFloat)
		}
	}
}
