// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"

	"github.com/google/uuid"
)

// Segment is a time-anchored reference from a Flow to one Object. The
// logical key within a flow is (flow_id, object_id, timerange); duplicate
// registration of the same tuple is rejected.
//
// StoragePath records the object-store key the bytes were written under at
// allocation time, so reads can presign against the exact key without
// re-deriving it. GetURLs is never persisted: presigned URLs expire, so the
// read path synthesizes them fresh on every request.
type Segment struct {
	ObjectID  string    `json:"object_id" validate:"required"`
	FlowID    uuid.UUID `json:"-"`
	TimeRange string    `json:"timerange" validate:"required"`

	TSOffset      *string `json:"ts_offset,omitempty"`
	LastDuration  *string `json:"last_duration,omitempty"`
	SampleOffset  *int64  `json:"sample_offset,omitempty"`
	SampleCount   *int64  `json:"sample_count,omitempty"`
	KeyFrameCount *int64  `json:"key_frame_count,omitempty"`

	StoragePath string    `json:"-"`
	Created     time.Time `json:"-"`

	// Derived on read.
	GetURLs []GetURL `json:"get_urls,omitempty"`
}

// GetURL is a fresh presigned download URL decorated with the metadata of
// the storage backend it points into.
type GetURL struct {
	URL              string `json:"url"`
	StorageID        string `json:"storage_id,omitempty"`
	StoreType        string `json:"store_type,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Region           string `json:"region,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
	StoreProduct     string `json:"store_product,omitempty"`
	Presigned        bool   `json:"presigned"`
	Label            string `json:"label,omitempty"`
	Controlled       bool   `json:"controlled"`
}

// FlowStorageRequest is the body of POST /flows/{id}/storage (allocation
// phase). Either ObjectIDs names the keys to allocate, or Limit fresh IDs
// are minted.
type FlowStorageRequest struct {
	ObjectIDs []string   `json:"object_ids,omitempty"`
	Limit     int        `json:"limit,omitempty" validate:"gte=0"`
	StorageID *uuid.UUID `json:"storage_id,omitempty"`
}

// FlowStorageResponse returns one upload slot per allocated object.
type FlowStorageResponse struct {
	MediaObjects []MediaObject `json:"media_objects"`
}

// MediaObject is a single allocated upload slot.
type MediaObject struct {
	ObjectID string       `json:"object_id"`
	PutURL   PresignedPut `json:"put_url"`
}

// PresignedPut carries the presigned upload URL and any headers the client
// must echo on the PUT.
type PresignedPut struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}
