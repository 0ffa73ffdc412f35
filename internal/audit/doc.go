// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package audit persists high-severity API errors for forensic review.
//
// Every taxonomy error graded high or critical that reaches the HTTP
// layer becomes an error_audit row: event ID, timestamp, taxonomy code,
// severity, request method and path, request ID, and message. Low and
// medium severities only appear in the structured log.
//
// Persistence runs off the request path. The Recorder buffers events on
// a channel and a single goroutine writes them; a full buffer drops the
// event with a warning rather than stalling a response.
package audit
