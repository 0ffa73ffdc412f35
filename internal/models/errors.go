// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a canonical error kind. Repositories translate
// adapter failures into exactly one of these codes before returning; the
// HTTP layer serializes the code without reinterpreting it.
type ErrorCode string

const (
	// CodeNotFound is an entity lookup miss (HTTP 404).
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict is a referential-integrity block, such as deleting a
	// source with dependent flows when cascade is false, or deleting an
	// object that flows still reference (HTTP 409).
	CodeConflict ErrorCode = "CONFLICT"

	// CodeForbidden is a read_only violation or an otherwise immutable
	// delete (HTTP 403).
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeValidation is a malformed field: bad UUID, timestamp, time range,
	// MIME type, format URN, or a missing required field (HTTP 422).
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeBadRequest is a semantically invalid combination, such as
	// allocating storage for an object ID that already exists or setting a
	// field the flow variant does not carry (HTTP 400).
	CodeBadRequest ErrorCode = "BAD_REQUEST"

	// CodeStorageUnavailable means the object store or metadata store was
	// unreachable after failover (HTTP 503).
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// CodeStorageError means an underlying store reported a non-recoverable
	// failure (HTTP 500).
	CodeStorageError ErrorCode = "STORAGE_ERROR"

	// CodeInternal is an unexpected failure (HTTP 500).
	CodeInternal ErrorCode = "INTERNAL"
)

// Severity grades an error for logging and audit. High and critical
// errors are additionally persisted as audit records.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ServiceError is the canonical error carried across component boundaries.
// It wraps an optional cause for errors.Is/errors.As chains.
type ServiceError struct {
	Code     ErrorCode
	Severity Severity
	Field    string // field path for validation errors, empty otherwise
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to its default HTTP status.
func (e *ServiceError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case CodeStorageError, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError converts the error to its wire representation.
func (e *ServiceError) ToAPIError() *APIError {
	apiErr := &APIError{
		Code:    string(e.Code),
		Message: e.Message,
	}
	if e.Field != "" {
		apiErr.Details = map[string]interface{}{"field": e.Field}
	}
	return apiErr
}

// NewNotFound reports an entity lookup miss.
func NewNotFound(entity, id string) *ServiceError {
	return &ServiceError{
		Code:     CodeNotFound,
		Severity: SeverityLow,
		Message:  fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewConflict reports a referential-integrity block.
func NewConflict(message string) *ServiceError {
	return &ServiceError{
		Code:     CodeConflict,
		Severity: SeverityMedium,
		Message:  message,
	}
}

// NewForbidden reports a read_only or immutability violation.
func NewForbidden(message string) *ServiceError {
	return &ServiceError{
		Code:     CodeForbidden,
		Severity: SeverityMedium,
		Message:  message,
	}
}

// NewValidation reports a malformed field value.
func NewValidation(field, message string) *ServiceError {
	return &ServiceError{
		Code:     CodeValidation,
		Severity: SeverityLow,
		Field:    field,
		Message:  message,
	}
}

// NewBadRequest reports a semantically invalid request.
func NewBadRequest(message string) *ServiceError {
	return &ServiceError{
		Code:     CodeBadRequest,
		Severity: SeverityLow,
		Message:  message,
	}
}

// NewStorageUnavailable reports an unreachable store after failover.
func NewStorageUnavailable(err error) *ServiceError {
	return &ServiceError{
		Code:     CodeStorageUnavailable,
		Severity: SeverityCritical,
		Message:  "storage unavailable",
		Err:      err,
	}
}

// NewStorageError reports a non-recoverable store failure.
func NewStorageError(err error) *ServiceError {
	return &ServiceError{
		Code:     CodeStorageError,
		Severity: SeverityHigh,
		Message:  "storage operation failed",
		Err:      err,
	}
}

// NewInternal reports an unexpected failure.
func NewInternal(err error) *ServiceError {
	return &ServiceError{
		Code:     CodeInternal,
		Severity: SeverityHigh,
		Message:  "internal error",
		Err:      err,
	}
}

// AsServiceError extracts a ServiceError from an error chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HTTPStatusOf returns the HTTP status for any error; non-taxonomy errors
// map to 500.
func HTTPStatusOf(err error) int {
	if se, ok := AsServiceError(err); ok {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// SeverityOf returns the severity for any error; non-taxonomy errors are
// graded high.
func SeverityOf(err error) Severity {
	if se, ok := AsServiceError(err); ok {
		return se.Severity
	}
	return SeverityHigh
}
