// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
	"github.com/tomtom215/tamstore/internal/middleware"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/validation"
)

// maxPageLimit caps the limit query parameter on list endpoints.
const maxPageLimit = 1000

// defaultPageLimit applies when the limit query parameter is absent.
const defaultPageLimit = 100

// sanitizeLogValue removes control characters from strings before they
// reach a log line, so a crafted request cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends an envelope response. Presigned URLs ride inside many
// payloads and expire, so nothing the API returns is cacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	etag := generateETag(data)
	w.Header().Set("ETag", etag)

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondData sends a success envelope around data, stamping the
// server-side processing time measured from start.
func respondData(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondServiceError is the single point where taxonomy errors become
// HTTP. It derives the status from the error code, records the error
// metric, persists high and critical severities to the audit trail, and
// serializes the error envelope. Errors outside the taxonomy are wrapped
// as internal.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := models.AsServiceError(err)
	if !ok {
		se = models.NewInternal(err)
	}

	event := logging.Ctx(r.Context()).Warn()
	if se.Severity == models.SeverityHigh || se.Severity == models.SeverityCritical {
		event = logging.Ctx(r.Context()).Error()
	}
	event.
		Str("code", string(se.Code)).
		Str("severity", string(se.Severity)).
		Str("method", r.Method).
		Str("path", sanitizeLogValue(r.URL.Path)).
		Str("error", sanitizeLogValue(se.Error())).
		Msg("API error")

	metrics.RecordAPIError(string(se.Code), string(se.Severity))

	if h.audit != nil && (se.Severity == models.SeverityHigh || se.Severity == models.SeverityCritical) {
		h.audit.Record(string(se.Code), string(se.Severity), r.Method, r.URL.Path,
			middleware.GetRequestID(r.Context()), se.Message)
	}

	respondJSON(w, se.HTTPStatus(), &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: se.ToAPIError(),
	})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewBadRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// validateRequest runs struct-tag validation, translated into the taxonomy.
func validateRequest(v interface{}) error {
	if ve := validation.ValidateStruct(v); ve != nil {
		return ve.ToServiceError()
	}
	return nil
}

// parseUUIDParam extracts and validates a UUID path parameter.
func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if err := validation.UUID(name, raw); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.NewValidation(name, err.Error())
	}
	return id, nil
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getBoolParam reads a boolean query parameter; absent or malformed
// values read as false.
func getBoolParam(r *http.Request, key string) bool {
	value := r.URL.Query().Get(key)
	return value == "true" || value == "1"
}

// getStringPtrParam reads an optional query parameter as a *string,
// nil when absent.
func getStringPtrParam(r *http.Request, key string) *string {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil
	}
	return &value
}

// parsePagination reads page and limit query parameters. Page floors at 0;
// limit defaults to 100 and clamps to 1000.
func parsePagination(r *http.Request) (page, limit int) {
	page = getIntParam(r, "page", 0)
	if page < 0 {
		page = 0
	}
	limit = getIntParam(r, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// trimPage reports whether rows holds more than a full page (handlers
// fetch limit+1 to detect a next page) and trims the overflow row.
func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

// pageInfo assembles the pagination block for a list response.
func pageInfo(page, limit, count int, hasMore bool) models.PaginationInfo {
	return models.PaginationInfo{
		Page:    page,
		Limit:   limit,
		Count:   count,
		HasMore: hasMore,
	}
}

// writePagingHeaders mirrors the pagination block onto response headers so
// clients can walk pages without parsing the body. Headers must be set
// before the body is written.
func writePagingHeaders(w http.ResponseWriter, page, limit int, hasMore bool) {
	w.Header().Set("X-Paging-Limit", strconv.Itoa(limit))
	if hasMore {
		w.Header().Set("X-Paging-NextKey", strconv.Itoa(page+1))
	}
}
