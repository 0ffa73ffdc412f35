// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
Package objectstore is the S3-compatible object-store adapter.

It provides CRUD on opaque keys inside a fixed bucket plus presigned URL
minting, with no knowledge of sources, flows, or segments. Payload bytes
never pass through the store process on the normal path: clients upload
and download directly against presigned URLs minted here.

All calls run through a circuit breaker so a failing endpoint sheds load
quickly instead of stacking timeouts. Errors are classified into not-found,
auth, network, and other (errors.go); callers own the mapping to the
service error taxonomy.

Presigned URLs are never cached: every mint produces a fresh signature
with the full configured TTL.

Key layout (keys.go):

	{storage_path}/{YYYY}/{MM}/{DD}/{object_id}

The date is the allocation date. Keys never embed a flow ID, so one
object can serve many flows.
*/
package objectstore
