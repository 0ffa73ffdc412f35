// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"

	"github.com/google/uuid"
)

// Content format URNs. The format field on Sources and Flows is drawn from
// this closed set and selects the Flow variant.
const (
	FormatVideo = "urn:x-nmos:format:video"
	FormatAudio = "urn:x-nmos:format:audio"
	FormatData  = "urn:x-nmos:format:data"
	FormatImage = "urn:x-tam:format:image"
	FormatMulti = "urn:x-nmos:format:multi"
)

// ContentFormats is the closed set of accepted format URNs.
var ContentFormats = []string{FormatVideo, FormatAudio, FormatData, FormatImage, FormatMulti}

// Tags is a free-form string-to-string annotation map carried by Sources
// and Flows. Stored as a JSON column.
type Tags map[string]string

// Source is a logical capture or asset record. Flows reference it through
// their source_id; a Source with dependent Flows can only be deleted with
// cascade=true.
type Source struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	Format      string    `json:"format" validate:"required"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        Tags      `json:"tags,omitempty"`

	// SourceCollection lists the collections this source belongs to, in
	// order. CollectedBy is the reverse edge: collector source IDs.
	SourceCollection []CollectionItem `json:"source_collection,omitempty"`
	CollectedBy      []uuid.UUID      `json:"collected_by,omitempty"`

	Created         time.Time `json:"created"`
	MetadataUpdated time.Time `json:"metadata_updated"`
	CreatedBy       *string   `json:"created_by,omitempty"`
	UpdatedBy       *string   `json:"updated_by,omitempty"`
}

// CollectionItem is one entry of an ordered collection membership list.
type CollectionItem struct {
	CollectionID uuid.UUID `json:"collection_id" validate:"required"`
	Label        string    `json:"label,omitempty"`
}

// SourceFilters narrow source listings.
type SourceFilters struct {
	Label  string
	Format string
}

// SourceCollectionEntry is a row of the source_collections join table.
type SourceCollectionEntry struct {
	CollectionID uuid.UUID `json:"collection_id"`
	SourceID     uuid.UUID `json:"source_id"`
	Label        string    `json:"label,omitempty"`
	Description  string    `json:"description,omitempty"`
	Created      time.Time `json:"created"`
	CreatedBy    *string   `json:"created_by,omitempty"`
}
