// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package objectstore

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/minio/minio-go/v7"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrorKind classifies adapter failures. The adapter never maps into the
// service taxonomy itself; callers translate kinds into taxonomy codes.
type ErrorKind int

const (
	// KindOther is any failure the adapter cannot classify further.
	KindOther ErrorKind = iota

	// KindNotFound means the key or bucket does not exist.
	KindNotFound

	// KindAuth means the store rejected the credentials or signature.
	KindAuth

	// KindNetwork means the endpoint was unreachable or the call timed out.
	KindNetwork

	// KindUnavailable means the circuit breaker rejected the call before
	// it reached the endpoint.
	KindUnavailable
)

// String returns the kind label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// Classify inspects an adapter error and returns its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return KindUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	// errors.As unwraps; minio.ToErrorResponse does not see wrapped errors.
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return KindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "CredentialsNotSupported":
			return KindAuth
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return KindNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return KindNetwork
		}
	}

	return KindOther
}

// IsNotFound reports whether the error means the key does not exist.
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == KindNotFound
}

// IsUnavailable reports whether the error means the endpoint could not be
// reached at all, either directly or because the breaker is open.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	k := Classify(err)
	return k == KindNetwork || k == KindUnavailable
}
