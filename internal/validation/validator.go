// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package validation provides struct validation using go-playground/validator v10
// plus the standalone domain validators every write path calls before touching
// a repository.
//
// Features:
//   - Singleton validator instance (thread-safe, caches struct info)
//   - Custom tags for TAMS values: tams_uuid, tams_timerange, content_format,
//     mime_type, iso8601
//   - Error translation to the VALIDATION_ERROR wire format
//   - Uses WithRequiredStructEnabled option (v11+ compatibility)
//
// Example usage:
//
//	type SegmentRequest struct {
//	    ObjectID  string `validate:"required,tams_uuid"`
//	    TimeRange string `validate:"required,tams_timerange"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    respondError(w, err.ToServiceError())
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/timerange"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	// uuidPattern is deliberately stricter than the validator built-in:
	// lowercase hex only, versions 1-5, RFC 4122 variant.
	uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

	// mimePattern follows the RFC 6838 restricted-name class for
	// type/subtype with an optional +suffix.
	mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9!#$&^_.-]{0,126}/[a-zA-Z0-9][a-zA-Z0-9!#$&^_.-]{0,126}(\+[a-zA-Z0-9!#$&^_.-]{1,127})?$`)
)

// timestampLayouts are tried in order. The timezone designator is optional.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ValidationError represents a single field validation error with structured information.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError represents a collection of validation errors.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	var messages []string
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}

	return strings.Join(messages, "; ")
}

// ToServiceError converts the collection to a single taxonomy error carrying
// the first failing field path.
func (ve *RequestValidationError) ToServiceError() *models.ServiceError {
	if len(ve.errors) == 0 {
		return models.NewValidation("", "validation failed")
	}
	first := ve.errors[0]
	return models.NewValidation(first.field, ve.Error())
}

// GetValidator returns the singleton validator instance.
// The validator is initialized once with custom validators and options.
// This function is thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for empty tag names or nil funcs, so the
		// returned errors are impossible here.
		_ = validate.RegisterValidation("tams_uuid", func(fl validator.FieldLevel) bool {
			return uuidPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("tams_timerange", func(fl validator.FieldLevel) bool {
			_, err := timerange.Parse(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("content_format", func(fl validator.FieldLevel) bool {
			return isContentFormat(fl.Field().String())
		})
		_ = validate.RegisterValidation("mime_type", func(fl validator.FieldLevel) bool {
			return mimePattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
			_, err := parseTimestamp(fl.Field().String())
			return err == nil
		})
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, or *RequestValidationError if validation fails.
func ValidateStruct(s interface{}) *RequestValidationError {
	v := GetValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// Unexpected error type - wrap it
		return &RequestValidationError{
			errors: []ValidationError{
				{
					field:   "unknown",
					tag:     "unknown",
					message: err.Error(),
				},
			},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required":       "%s is required",
	"tams_uuid":      "%s must be a lowercase RFC 4122 UUID",
	"tams_timerange": "%s must be a valid time range such as 0:0_3600:0",
	"content_format": "%s must be one of the accepted content format URNs",
	"mime_type":      "%s must be a valid media type such as video/mp2t",
	"iso8601":        "%s must be an ISO 8601 timestamp",
	"datetime":       "%s must be a valid date/time in RFC3339 format",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}

	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max validation with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind().String() == "string"

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

func isContentFormat(s string) bool {
	for _, f := range models.ContentFormats {
		if s == f {
			return true
		}
	}
	return false
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Standalone domain validators. Repositories never see a value these have
// not accepted; each failure carries the offending field path.

// UUID checks a lowercase RFC 4122 UUID string.
func UUID(field, value string) error {
	if !uuidPattern.MatchString(value) {
		return models.NewValidation(field, fmt.Sprintf("%q is not a valid UUID", value))
	}
	return nil
}

// Timestamp checks an ISO 8601 timestamp with optional timezone and returns
// the parsed time.
func Timestamp(field, value string) (time.Time, error) {
	t, err := parseTimestamp(value)
	if err != nil {
		return time.Time{}, models.NewValidation(field, fmt.Sprintf("%q is not an ISO 8601 timestamp", value))
	}
	return t, nil
}

// ContentFormat checks membership of the closed format URN set.
func ContentFormat(field, value string) error {
	if !isContentFormat(value) {
		return models.NewValidation(field, fmt.Sprintf("%q is not an accepted content format", value))
	}
	return nil
}

// MIMEType checks a type/subtype media type with optional +suffix.
func MIMEType(field, value string) error {
	if !mimePattern.MatchString(value) {
		return models.NewValidation(field, fmt.Sprintf("%q is not a valid media type", value))
	}
	return nil
}

// TimeRange parses a TAMS time range, mapping failures to the taxonomy.
func TimeRange(field, value string) (timerange.Range, error) {
	r, err := timerange.Parse(value)
	if err != nil {
		return timerange.Range{}, models.NewValidation(field, err.Error())
	}
	return r, nil
}
