// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlowVariant tags the five Flow shapes. The variant is derived from the
// Flow's format URN, never from which optional fields happen to be set.
type FlowVariant string

const (
	FlowVideo FlowVariant = "video"
	FlowAudio FlowVariant = "audio"
	FlowData  FlowVariant = "data"
	FlowImage FlowVariant = "image"
	FlowMulti FlowVariant = "multi"
)

// VariantForFormat maps a format URN to its Flow variant.
func VariantForFormat(format string) (FlowVariant, error) {
	switch format {
	case FormatVideo:
		return FlowVideo, nil
	case FormatAudio:
		return FlowAudio, nil
	case FormatData:
		return FlowData, nil
	case FormatImage:
		return FlowImage, nil
	case FormatMulti:
		return FlowMulti, nil
	default:
		return "", fmt.Errorf("unknown content format %q", format)
	}
}

// Rational is an exact fraction, used for segment durations.
type Rational struct {
	Numerator   int64 `json:"numerator" validate:"required"`
	Denominator int64 `json:"denominator" validate:"required,gt=0"`
}

// Flow is a timed stream belonging to a Source. The common header is shared
// by all five variants; the variant-specific attribute blocks are populated
// only for the matching format and rejected on any other (a BadRequest, not
// a validation error, because the field is well-formed but unsupported).
//
// Deleting a Flow cascades to its Segments but never to Objects: the
// payload rows and bytes outlive every flow that references them.
type Flow struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	SourceID uuid.UUID `json:"source_id" validate:"required"`
	Format   string    `json:"format" validate:"required"`
	Codec    string    `json:"codec" validate:"required"`

	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
	Tags        Tags    `json:"tags,omitempty"`

	// ReadOnly freezes the flow: every mutation of the flow or its
	// segments is refused with Forbidden while set. GET-URL synthesis is
	// not a mutation and stays available.
	ReadOnly bool `json:"read_only"`

	MetadataVersion string    `json:"metadata_version,omitempty"`
	Generation      int       `json:"generation" validate:"gte=0"`
	SegmentDuration *Rational `json:"segment_duration,omitempty"`
	Container       *string   `json:"container,omitempty"`
	MaxBitRate      *int64    `json:"max_bit_rate,omitempty"`
	AvgBitRate      *int64    `json:"avg_bit_rate,omitempty"`

	Created         time.Time `json:"created"`
	MetadataUpdated time.Time `json:"metadata_updated"`
	SegmentsUpdated time.Time `json:"segments_updated"`
	CreatedBy       *string   `json:"created_by,omitempty"`
	UpdatedBy       *string   `json:"updated_by,omitempty"`

	// Video and image essence.
	FrameWidth    *int64  `json:"frame_width,omitempty"`
	FrameHeight   *int64  `json:"frame_height,omitempty"`
	FrameRate     *string `json:"frame_rate,omitempty"`
	InterlaceMode *string `json:"interlace_mode,omitempty"`
	Colorspace    *string `json:"colorspace,omitempty"`

	// Audio essence.
	SampleRate    *int64 `json:"sample_rate,omitempty"`
	BitsPerSample *int64 `json:"bits_per_sample,omitempty"`
	Channels      *int64 `json:"channels,omitempty"`

	// Multi essence: ordered member flows and the reverse edge.
	FlowCollection []uuid.UUID `json:"flow_collection,omitempty"`
	CollectedBy    []uuid.UUID `json:"collected_by,omitempty"`
}

// Variant returns the tagged variant for this flow's format.
func (f *Flow) Variant() (FlowVariant, error) {
	return VariantForFormat(f.Format)
}

// ValidateVariant checks variant-specific requirements: required essence
// fields must be present and positive, and essence fields belonging to a
// different variant must be absent.
func (f *Flow) ValidateVariant() error {
	variant, err := f.Variant()
	if err != nil {
		return NewValidation("format", err.Error())
	}

	switch variant {
	case FlowVideo, FlowImage:
		if f.FrameWidth == nil || *f.FrameWidth <= 0 {
			return NewValidation("frame_width", "must be a positive integer")
		}
		if f.FrameHeight == nil || *f.FrameHeight <= 0 {
			return NewValidation("frame_height", "must be a positive integer")
		}
		if err := f.rejectAudioFields(); err != nil {
			return err
		}
		if err := f.rejectMultiFields(); err != nil {
			return err
		}
	case FlowAudio:
		if f.SampleRate == nil || *f.SampleRate <= 0 {
			return NewValidation("sample_rate", "must be a positive integer")
		}
		if f.BitsPerSample == nil || *f.BitsPerSample <= 0 {
			return NewValidation("bits_per_sample", "must be a positive integer")
		}
		if f.Channels == nil || *f.Channels <= 0 {
			return NewValidation("channels", "must be a positive integer")
		}
		if err := f.rejectVideoFields(); err != nil {
			return err
		}
		if err := f.rejectMultiFields(); err != nil {
			return err
		}
	case FlowData:
		if err := f.rejectVideoFields(); err != nil {
			return err
		}
		if err := f.rejectAudioFields(); err != nil {
			return err
		}
		if err := f.rejectMultiFields(); err != nil {
			return err
		}
	case FlowMulti:
		if err := f.rejectVideoFields(); err != nil {
			return err
		}
		if err := f.rejectAudioFields(); err != nil {
			return err
		}
	}

	return nil
}

func (f *Flow) rejectVideoFields() error {
	switch {
	case f.FrameWidth != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support frame_width", f.Format))
	case f.FrameHeight != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support frame_height", f.Format))
	case f.FrameRate != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support frame_rate", f.Format))
	case f.InterlaceMode != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support interlace_mode", f.Format))
	case f.Colorspace != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support colorspace", f.Format))
	}
	return nil
}

func (f *Flow) rejectAudioFields() error {
	switch {
	case f.SampleRate != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support sample_rate", f.Format))
	case f.BitsPerSample != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support bits_per_sample", f.Format))
	case f.Channels != nil:
		return NewBadRequest(fmt.Sprintf("flow format %s does not support channels", f.Format))
	}
	return nil
}

func (f *Flow) rejectMultiFields() error {
	if len(f.FlowCollection) > 0 {
		return NewBadRequest(fmt.Sprintf("flow format %s does not support flow_collection", f.Format))
	}
	return nil
}

// FlowFilters narrow flow listings.
type FlowFilters struct {
	SourceID    *uuid.UUID
	Format      string
	Codec       string
	Label       string
	FrameWidth  *int64
	FrameHeight *int64
	// TimeRange keeps only flows with at least one segment overlapping it.
	TimeRange string
}

// FlowCollectionEntry is a row of the flow_collections join table.
type FlowCollectionEntry struct {
	CollectionID uuid.UUID `json:"collection_id"`
	FlowID       uuid.UUID `json:"flow_id"`
	Label        string    `json:"label,omitempty"`
	Description  string    `json:"description,omitempty"`
	Created      time.Time `json:"created"`
	CreatedBy    *string   `json:"created_by,omitempty"`
}
