// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package deletes runs the asynchronous flow-deletion worker.
//
// Large segment deletions are enqueued as durable FlowDeleteRequest rows
// instead of running inside the HTTP request. One worker per process
// drains the queue: it claims the oldest pending request (an atomic
// conditional flip to in_progress), deletes the flow's matching segments
// in paced batches, and marks the request completed, or failed with the
// stored cause. Failed requests are not retried automatically.
//
// The worker is cancellable. On shutdown any request still in_progress
// reverts to pending, and a fresh worker re-claims it; batch deletion is
// idempotent, so a replayed drain simply finds fewer rows.
package deletes
