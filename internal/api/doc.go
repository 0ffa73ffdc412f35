// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package api serves the store's REST surface over a Chi router.
//
// Every endpoint responds with the models.APIResponse envelope: successful
// calls carry the payload in data, failures carry an error object whose
// code comes from the models taxonomy. The HTTP status is derived from the
// taxonomy code in exactly one place (respondServiceError); handlers never
// pick statuses for repository errors themselves.
//
// Resources:
//
//	/service                    store description and storage-backend catalog
//	/sources                    source CRUD plus tag/label/description
//	                            sub-fields and collection membership
//	/flows                      flow CRUD, sub-fields, storage allocation,
//	                            segment registration and listing
//	/objects                    payload records with reverse references
//	/flow-delete-requests       async deletion queue
//	/health, /health/ready      liveness and readiness probes
//	/metrics                    Prometheus exposition
//
// Scalar sub-fields (label, description, read_only, max_bit_rate,
// avg_bit_rate) take their bare JSON value as the PUT body, e.g.
// `"new label"` or `true`; tags take a JSON object, collection sub-fields a
// JSON array. Sub-field PUT and DELETE return 204 with no body.
//
// Segment registration accepts either application/json (metadata only,
// bytes already uploaded through a presigned PUT) or multipart/form-data
// with a segment_data JSON field and an optional file part carrying inline
// payload bytes.
//
// Presigned URLs are minted fresh on every read and never cached, so all
// responses carry Cache-Control: no-cache.
package api
