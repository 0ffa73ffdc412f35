// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestFlowCRUD(t *testing.T) {
	env := setupTestEnv(t)

	src := env.createSource(t, models.FormatVideo)
	body := newVideoFlowBody(src.ID)

	w := env.do(t, http.MethodPost, "/flows", body)
	checkHTTPStatus(t, w, http.StatusCreated)

	var created models.Flow
	decodeData(t, w, &created)
	if created.FrameWidth == nil || *created.FrameWidth != 1920 {
		t.Errorf("Expected frame_width 1920, got %v", created.FrameWidth)
	}

	w = env.do(t, http.MethodPost, "/flows", body)
	checkErrorEnvelope(t, w, http.StatusConflict, models.CodeConflict)

	w = env.do(t, http.MethodGet, "/flows/"+body.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusOK)

	var fetched models.Flow
	decodeData(t, w, &fetched)
	checkStringEqual(t, "codec", fetched.Codec, "video/h264")
	if fetched.SourceID != src.ID {
		t.Errorf("Expected source_id %s, got %s", src.ID, fetched.SourceID)
	}

	// Whole-record update.
	label := "main program"
	fetched.Label = &label
	w = env.do(t, http.MethodPut, "/flows/"+body.ID.String(), fetched)
	checkHTTPStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/flows/"+body.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &fetched)
	if fetched.Label == nil || *fetched.Label != label {
		t.Errorf("Expected label %q after update, got %v", label, fetched.Label)
	}

	w = env.do(t, http.MethodDelete, "/flows/"+body.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/flows/"+body.ID.String(), nil)
	checkErrorEnvelope(t, w, http.StatusNotFound, models.CodeNotFound)
}

func TestFlowCreateValidation(t *testing.T) {
	env := setupTestEnv(t)
	src := env.createSource(t, models.FormatVideo)

	missingCodec := newVideoFlowBody(src.ID)
	missingCodec.Codec = ""

	missingEssence := newVideoFlowBody(src.ID)
	missingEssence.FrameWidth = nil

	crossVariant := newVideoFlowBody(src.ID)
	sampleRate := int64(48000)
	crossVariant.SampleRate = &sampleRate

	orphan := newVideoFlowBody(uuid.New())

	badFormat := newVideoFlowBody(src.ID)
	badFormat.Format = "urn:x-nmos:format:telepathy"

	tests := []struct {
		name       string
		body       models.Flow
		wantStatus int
		wantCode   models.ErrorCode
	}{
		{"missing codec", missingCodec, http.StatusUnprocessableEntity, models.CodeValidation},
		{"video without frame dimensions", missingEssence, http.StatusUnprocessableEntity, models.CodeValidation},
		{"audio essence on video flow", crossVariant, http.StatusBadRequest, models.CodeBadRequest},
		{"unknown source", orphan, http.StatusUnprocessableEntity, models.CodeValidation},
		{"unknown format URN", badFormat, http.StatusUnprocessableEntity, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/flows", tt.body)
			checkErrorEnvelope(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestFlowReadOnly(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	base := "/flows/" + flow.ID.String()

	w := env.do(t, http.MethodPut, base+"/read_only", true)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodGet, base+"/read_only", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var readOnly bool
	decodeData(t, w, &readOnly)
	checkTrue(t, "read_only", readOnly)

	// Every mutation is refused while frozen.
	w = env.do(t, http.MethodPut, base, flow)
	checkErrorEnvelope(t, w, http.StatusForbidden, models.CodeForbidden)

	w = env.do(t, http.MethodPut, base+"/label", "renamed")
	checkErrorEnvelope(t, w, http.StatusForbidden, models.CodeForbidden)

	w = env.do(t, http.MethodPut, base+"/tags/env", "studio")
	checkErrorEnvelope(t, w, http.StatusForbidden, models.CodeForbidden)

	// Reads stay available.
	w = env.do(t, http.MethodGet, base, nil)
	checkHTTPStatus(t, w, http.StatusOK)

	// Unfreezing is the one mutation a frozen flow accepts.
	w = env.do(t, http.MethodDelete, base+"/read_only", nil)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodPut, base+"/label", "renamed")
	checkHTTPStatus(t, w, http.StatusNoContent)
}

func TestFlowBitRates(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	base := "/flows/" + flow.ID.String()

	for _, field := range []string{"max_bit_rate", "avg_bit_rate"} {
		t.Run(field, func(t *testing.T) {
			w := env.do(t, http.MethodPut, base+"/"+field, 8000)
			checkHTTPStatus(t, w, http.StatusNoContent)

			w = env.do(t, http.MethodGet, base+"/"+field, nil)
			checkHTTPStatus(t, w, http.StatusOK)
			var rate *int64
			decodeData(t, w, &rate)
			if rate == nil || *rate != 8000 {
				t.Errorf("Expected %s 8000, got %v", field, rate)
			}

			w = env.do(t, http.MethodPut, base+"/"+field, -1)
			checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)

			w = env.do(t, http.MethodDelete, base+"/"+field, nil)
			checkHTTPStatus(t, w, http.StatusNoContent)

			w = env.do(t, http.MethodGet, base+"/"+field, nil)
			checkHTTPStatus(t, w, http.StatusOK)
			rate = nil
			decodeData(t, w, &rate)
			if rate != nil {
				t.Errorf("Expected cleared %s, got %d", field, *rate)
			}
		})
	}
}

func TestFlowCollectionSync(t *testing.T) {
	env := setupTestEnv(t)

	src := env.createSource(t, models.FormatMulti)
	multi := models.Flow{
		ID:       uuid.New(),
		SourceID: src.ID,
		Format:   models.FormatMulti,
		Codec:    "application/mp2t",
	}
	w := env.do(t, http.MethodPost, "/flows", multi)
	checkHTTPStatus(t, w, http.StatusCreated)

	video := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/flow_collection", multi.ID)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var members []uuid.UUID
	decodeData(t, w, &members)
	checkLenEqual(t, "initial members", len(members), 0)

	w = env.do(t, http.MethodPut, path, []uuid.UUID{video.ID})
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &members)
	checkLenEqual(t, "synced members", len(members), 1)
	if members[0] != video.ID {
		t.Errorf("Expected member %s, got %s", video.ID, members[0])
	}

	// Non-multi flows refuse the field.
	w = env.do(t, http.MethodPut, fmt.Sprintf("/flows/%s/flow_collection", video.ID), []uuid.UUID{multi.ID})
	checkErrorEnvelope(t, w, http.StatusBadRequest, models.CodeBadRequest)

	w = env.do(t, http.MethodDelete, path, nil)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &members)
	checkLenEqual(t, "cleared members", len(members), 0)
}

func TestFlowListFilters(t *testing.T) {
	env := setupTestEnv(t)

	srcA := env.createSource(t, models.FormatVideo)
	srcB := env.createSource(t, models.FormatAudio)

	videoFlow := newVideoFlowBody(srcA.ID)
	w := env.do(t, http.MethodPost, "/flows", videoFlow)
	checkHTTPStatus(t, w, http.StatusCreated)

	audioFlow := newAudioFlowBody(srcB.ID)
	w = env.do(t, http.MethodPost, "/flows", audioFlow)
	checkHTTPStatus(t, w, http.StatusCreated)

	var list models.FlowListResponse

	w = env.do(t, http.MethodGet, "/flows", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "all flows", len(list.Flows), 2)

	w = env.do(t, http.MethodGet, "/flows?format="+models.FormatAudio, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "audio flows", len(list.Flows), 1)
	if list.Flows[0].ID != audioFlow.ID {
		t.Errorf("Expected flow %s, got %s", audioFlow.ID, list.Flows[0].ID)
	}

	w = env.do(t, http.MethodGet, "/flows?source_id="+srcA.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "flows by source", len(list.Flows), 1)

	w = env.do(t, http.MethodGet, "/flows?frame_width=1920", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "flows by frame width", len(list.Flows), 1)

	// Timerange filter keeps only flows with overlapping segments.
	env.registerSegment(t, videoFlow.ID, "obj-filter-a", "[0:0_10:0)")
	w = env.do(t, http.MethodGet, "/flows?timerange=[5:0_6:0)", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "flows overlapping range", len(list.Flows), 1)
	if list.Flows[0].ID != videoFlow.ID {
		t.Errorf("Expected flow %s, got %s", videoFlow.ID, list.Flows[0].ID)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"malformed timerange", "timerange=backwards"},
		{"malformed source_id", "source_id=xyz"},
		{"non-integer frame_width", "frame_width=wide"},
		{"unknown format URN", "format=urn:bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/flows?"+tt.query, nil)
			checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)
		})
	}
}
