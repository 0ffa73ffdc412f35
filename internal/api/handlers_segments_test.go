// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestSegmentRegisterJSON(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	body := map[string]interface{}{
		"object_id": "seg-json-1",
		"timerange": "[0:0_10:0)",
	}
	w := env.do(t, http.MethodPost, path, body)
	checkHTTPStatus(t, w, http.StatusCreated)

	var created models.Segment
	decodeData(t, w, &created)
	checkStringEqual(t, "object_id", created.ObjectID, "seg-json-1")

	// Registration materialized the object row with a flow reference.
	w = env.do(t, http.MethodGet, "/objects/seg-json-1", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var obj models.Object
	decodeData(t, w, &obj)
	checkLenEqual(t, "object references", len(obj.ReferencedByFlows), 1)

	// The same object may appear on another flow, but re-registering the
	// identical (object, timerange) pair on this flow is refused.
	w = env.do(t, http.MethodPost, path, body)
	checkErrorEnvelope(t, w, http.StatusBadRequest, models.CodeBadRequest)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "segments", len(list.Segments), 1)
}

func TestSegmentRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantCode   models.ErrorCode
	}{
		{
			name:       "missing object_id",
			body:       map[string]interface{}{"timerange": "[0:0_10:0)"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   models.CodeValidation,
		},
		{
			name:       "missing timerange",
			body:       map[string]interface{}{"object_id": "seg-x"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   models.CodeValidation,
		},
		{
			name:       "malformed timerange",
			body:       map[string]interface{}{"object_id": "seg-x", "timerange": "10 until 20"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, path, tt.body)
			checkErrorEnvelope(t, w, tt.wantStatus, tt.wantCode)
		})
	}

	// Registration against an unknown flow is a 404.
	w := env.do(t, http.MethodPost, fmt.Sprintf("/flows/%s/segments", uuid.New()),
		map[string]interface{}{"object_id": "seg-x", "timerange": "[0:0_10:0)"})
	checkErrorEnvelope(t, w, http.StatusNotFound, models.CodeNotFound)

	// A frozen flow refuses registrations.
	w = env.do(t, http.MethodPut, fmt.Sprintf("/flows/%s/read_only", flow.ID), true)
	checkHTTPStatus(t, w, http.StatusNoContent)
	w = env.do(t, http.MethodPost, path,
		map[string]interface{}{"object_id": "seg-frozen", "timerange": "[0:0_10:0)"})
	checkErrorEnvelope(t, w, http.StatusForbidden, models.CodeForbidden)
}

// multipartSegment builds a multipart registration request with the given
// segment_data JSON and optional inline payload.
func multipartSegment(t *testing.T, segmentData string, payload []byte) (string, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("segment_data", segmentData); err != nil {
		t.Fatalf("Failed to write segment_data field: %v", err)
	}
	if payload != nil {
		fw, err := mw.CreateFormFile("file", "segment.ts")
		if err != nil {
			t.Fatalf("Failed to create file part: %v", err)
		}
		if _, err := fw.Write(payload); err != nil {
			t.Fatalf("Failed to write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return mw.FormDataContentType(), buf.Bytes()
}

func TestSegmentRegisterMultipartInline(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	payload := []byte("fake transport stream bytes")
	contentType, body := multipartSegment(t,
		`{"object_id":"seg-inline-1","timerange":"[0:0_5:0)"}`, payload)

	w := env.doRaw(t, http.MethodPost, path, contentType, body)
	checkHTTPStatus(t, w, http.StatusCreated)

	// The payload landed in the object store under the derived key.
	env.payloads.mu.Lock()
	puts := env.payloads.puts
	var storedKey string
	for key, data := range env.payloads.objects {
		if bytes.Equal(data, payload) {
			storedKey = key
		}
	}
	env.payloads.mu.Unlock()

	checkIntEqual(t, "payload puts", int64(puts), 1)
	if !strings.HasPrefix(storedKey, "tams/") || !strings.HasSuffix(storedKey, "seg-inline-1") {
		t.Errorf("Unexpected storage key %q", storedKey)
	}

	// The object row recorded the inline payload size.
	w = env.do(t, http.MethodGet, "/objects/seg-inline-1", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var obj models.Object
	decodeData(t, w, &obj)
	checkIntEqual(t, "object size", obj.Size, int64(len(payload)))
}

func TestSegmentRegisterMultipartMetadataOnly(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	// No file part: same as a JSON registration.
	contentType, body := multipartSegment(t,
		`{"object_id":"seg-meta-1","timerange":"[0:0_5:0)"}`, nil)
	w := env.doRaw(t, http.MethodPost, path, contentType, body)
	checkHTTPStatus(t, w, http.StatusCreated)

	env.payloads.mu.Lock()
	puts := env.payloads.puts
	env.payloads.mu.Unlock()
	checkIntEqual(t, "payload puts", int64(puts), 0)

	// Missing segment_data field is a validation error.
	contentType, body = multipartSegment(t, "", nil)
	w = env.doRaw(t, http.MethodPost, path, contentType, body)
	checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)

	// Broken segment_data JSON is a bad request.
	contentType, body = multipartSegment(t, "{not json", nil)
	w = env.doRaw(t, http.MethodPost, path, contentType, body)
	checkErrorEnvelope(t, w, http.StatusBadRequest, models.CodeBadRequest)
}

func TestSegmentList(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	env.registerSegment(t, flow.ID, "seg-list-1", "[0:0_10:0)")
	env.registerSegment(t, flow.ID, "seg-list-2", "[10:0_20:0)")
	env.registerSegment(t, flow.ID, "seg-list-3", "[20:0_30:0)")

	w := env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "all segments", len(list.Segments), 3)

	// Ordered by range start.
	checkStringEqual(t, "first segment", list.Segments[0].ObjectID, "seg-list-1")
	checkStringEqual(t, "last segment", list.Segments[2].ObjectID, "seg-list-3")

	// Range-scoped listing keeps overlapping segments only.
	w = env.do(t, http.MethodGet, path+"?timerange=[5:0_15:0)", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	decodeData(t, w, &list)
	checkLenEqual(t, "overlapping segments", len(list.Segments), 2)

	// Without an object store no GET URLs are synthesized.
	for _, seg := range list.Segments {
		checkLenEqual(t, "get_urls", len(seg.GetURLs), 0)
	}

	w = env.do(t, http.MethodGet, path+"?timerange=nonsense", nil)
	checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/flows/%s/segments", uuid.New()), nil)
	checkErrorEnvelope(t, w, http.StatusNotFound, models.CodeNotFound)
}

func TestSegmentListPresignedURLs(t *testing.T) {
	env := setupTestEnvWithStore(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	// Inline registration derives the storage key without probing the
	// endpoint, keeping this test free of network I/O.
	contentType, body := multipartSegment(t,
		`{"object_id":"seg-url-1","timerange":"[0:0_5:0)"}`, []byte("payload"))
	w := env.doRaw(t, http.MethodPost, path, contentType, body)
	checkHTTPStatus(t, w, http.StatusCreated)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "segments", len(list.Segments), 1)
	checkLenEqual(t, "get_urls", len(list.Segments[0].GetURLs), 1)

	getURL := list.Segments[0].GetURLs[0]
	checkTrue(t, "presigned", getURL.Presigned)
	checkTrue(t, "controlled", getURL.Controlled)
	if !strings.Contains(getURL.URL, "X-Amz-Signature=") {
		t.Errorf("Expected a presigned URL, got %q", getURL.URL)
	}
	if !strings.Contains(getURL.URL, "seg-url-1") {
		t.Errorf("Expected URL to address the object key, got %q", getURL.URL)
	}
	checkStringEqual(t, "store type", getURL.StoreType, models.StoreTypeHTTPObjectStore)
	if getURL.StorageID == "" {
		t.Error("Expected the default backend ID on the GET URL")
	}

	// Listings are never cacheable: every response presigns fresh URLs.
	checkStringEqual(t, "cache-control", w.Header().Get("Cache-Control"), "no-cache")
}

func TestSegmentDeleteSync(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	env.registerSegment(t, flow.ID, "seg-del-1", "[0:0_10:0)")
	env.registerSegment(t, flow.ID, "seg-del-2", "[10:0_20:0)")

	// Two segments sit under the async threshold of three: inline delete.
	w := env.do(t, http.MethodDelete, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var result models.SegmentDeleteResponse
	decodeData(t, w, &result)
	checkIntEqual(t, "segments_deleted", result.SegmentsDeleted, 2)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "remaining segments", len(list.Segments), 0)

	// Objects survive segment deletion.
	w = env.do(t, http.MethodGet, "/objects/seg-del-1", nil)
	checkHTTPStatus(t, w, http.StatusOK)
}

func TestSegmentDeleteRangeScoped(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	env.registerSegment(t, flow.ID, "seg-rng-1", "[0:0_10:0)")
	env.registerSegment(t, flow.ID, "seg-rng-2", "[10:0_20:0)")

	w := env.do(t, http.MethodDelete, path+"?timerange=[0:0_10:0)", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var result models.SegmentDeleteResponse
	decodeData(t, w, &result)
	checkIntEqual(t, "segments_deleted", result.SegmentsDeleted, 1)

	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "remaining segments", len(list.Segments), 1)
	checkStringEqual(t, "survivor", list.Segments[0].ObjectID, "seg-rng-2")

	w = env.do(t, http.MethodDelete, path+"?timerange=gibberish", nil)
	checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)
}

func TestSegmentDeletePromotesToAsync(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	// Four segments exceed the test threshold of three, so the delete is
	// queued instead of run inline.
	for i := 0; i < 4; i++ {
		env.registerSegment(t, flow.ID, fmt.Sprintf("seg-async-%d", i),
			fmt.Sprintf("[%d:0_%d:0)", i*10, (i+1)*10))
	}

	w := env.do(t, http.MethodDelete, path, nil)
	checkHTTPStatus(t, w, http.StatusAccepted)
	var request models.FlowDeleteRequest
	decodeData(t, w, &request)
	checkStringEqual(t, "status", request.Status, models.DeleteStatusPending)
	if request.FlowID != flow.ID {
		t.Errorf("Expected flow_id %s, got %s", flow.ID, request.FlowID)
	}

	// Segments are untouched until the worker drains the request.
	w = env.do(t, http.MethodGet, path, nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var list models.SegmentListResponse
	decodeData(t, w, &list)
	checkLenEqual(t, "segments pending async delete", len(list.Segments), 4)

	// The queued request is visible on the delete-requests surface.
	w = env.do(t, http.MethodGet, "/flow-delete-requests/"+request.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusOK)
}

func TestSegmentDeleteReadOnlyFlow(t *testing.T) {
	env := setupTestEnv(t)
	flow := env.createVideoFlow(t)
	path := fmt.Sprintf("/flows/%s/segments", flow.ID)

	env.registerSegment(t, flow.ID, "seg-ro-1", "[0:0_10:0)")

	w := env.do(t, http.MethodPut, fmt.Sprintf("/flows/%s/read_only", flow.ID), true)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodDelete, path, nil)
	checkErrorEnvelope(t, w, http.StatusForbidden, models.CodeForbidden)
}
