// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package models defines the data structures used throughout Tamstore.
//
// The entity graph follows the TAMS v7 content model:
//
//	Source ──< Flow ──< FlowSegment >── Object
//
// A Source is a logical capture or asset. A Flow is a timed stream belonging
// to one Source, in one of five variants (video, audio, data, image, multi)
// selected by its format URN. A FlowSegment anchors one Object (an immutable
// payload in the object store) to a Flow over a TAMS time range. Objects are
// shared: many Flows may reference the same Object through the
// flow_object_references join table, and an Object cannot be deleted while
// any reference exists.
//
// The package also carries the API response envelope (api_responses.go) and
// the canonical service error taxonomy (errors.go) that repositories raise
// and the HTTP layer serializes.
package models
