// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/database"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/objectstore"
)

// testDBSemaphore serializes DuckDB usage across the package. Concurrent
// CGO database creation can hang in CI, so one env lives at a time and the
// slot is held until the test completes.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the database.New call itself.
var testDBMutex sync.Mutex

// testEnv is a full HTTP stack over an in-memory metadata store. The
// handler's object store is nil unless the env was built with
// setupTestEnvWithStore; segment payload writes always land in an
// in-process double so no test dials a network endpoint.
type testEnv struct {
	db       *database.DB
	repos    Repos
	handler  *Handler
	router   http.Handler
	payloads *payloadStoreDouble
	cfg      *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		TAMS: config.TAMSConfig{
			StoragePath:            "tams",
			PresignTTLSeconds:      300,
			AsyncDeleteThreshold:   3,
			AllocationDefaultLimit: 2,
			AllocationMaxLimit:     5,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupEnv(t, nil)
}

// setupTestEnvWithStore builds the env around a real object-store adapter
// pointed at a dead endpoint. Presigned URL generation is local signing
// (the client region is set, so no bucket-location lookup happens) which
// is exactly the slice of the adapter these tests exercise.
func setupTestEnvWithStore(t *testing.T) *testEnv {
	t.Helper()

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  "127.0.0.1:1",
		AccessKey: "tamstore-test",
		SecretKey: "tamstore-test-secret",
		Bucket:    "tamstore-test",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("Failed to create object store adapter: %v", err)
	}
	return setupEnv(t, store)
}

func setupEnv(t *testing.T, store *objectstore.Store) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.MetadataConfig{
		Endpoints: []string{":memory:"},
		MaxMemory: "1GB",
	}

	type result struct {
		db  *database.DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := database.New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	var db *database.DB
	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		db = res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
	}
	t.Cleanup(func() { _ = db.Close() })

	payloads := newPayloadStoreDouble()
	integrity := database.NewIntegrity(db)
	objects := database.NewObjectRepo(db, integrity)
	repos := Repos{
		Sources:  database.NewSourceRepo(db, integrity),
		Flows:    database.NewFlowRepo(db, integrity),
		Objects:  objects,
		Segments: database.NewSegmentRepo(db, integrity, objects, payloads),
		Deletes:  database.NewFlowDeleteRequestRepo(db),
		Backends: database.NewStorageBackendRepo(db),
	}
	if err := repos.Backends.EnsureDefault(context.Background(), "", "minio", "us-east-1", "primary"); err != nil {
		t.Fatalf("Failed to seed default storage backend: %v", err)
	}

	appCfg := testConfig()
	handler := NewHandler(db, repos, store, appCfg, nil)
	router := NewRouter(handler, appCfg).Setup()

	return &testEnv{
		db:       db,
		repos:    repos,
		handler:  handler,
		router:   router,
		payloads: payloads,
		cfg:      appCfg,
	}
}

// payloadStoreDouble is an in-process stand-in for the segment payload
// store. Head misses answer with the minio error shape the real adapter
// surfaces.
type payloadStoreDouble struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newPayloadStoreDouble() *payloadStoreDouble {
	return &payloadStoreDouble{objects: make(map[string][]byte)}
}

func (s *payloadStoreDouble) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.puts++
	return nil
}

func (s *payloadStoreDouble) Head(_ context.Context, key string) (*objectstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	return &objectstore.ObjectInfo{Size: int64(len(data))}, nil
}

// Request plumbing. Every call goes through the full router so middleware,
// URL params, and content negotiation behave as in production.

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) doRaw(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// testEnvelope mirrors the response envelope with the data left raw so
// each test can decode its own payload type.
type testEnvelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()

	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response envelope: %v (body: %s)", err, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()

	env := decodeEnvelope(t, w)
	if env.Status != "success" {
		t.Fatalf("Expected success envelope, got %q (body: %s)", env.Status, w.Body.String())
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("Failed to decode response data: %v (data: %s)", err, string(env.Data))
	}
}

func checkHTTPStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d (body: %s)", want, w.Code, w.Body.String())
	}
}

// checkErrorEnvelope asserts the response is an error envelope carrying the
// given taxonomy code.
func checkErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode models.ErrorCode) {
	t.Helper()

	checkHTTPStatus(t, w, wantStatus)
	env := decodeEnvelope(t, w)
	if env.Status != "error" {
		t.Errorf("Expected error envelope, got %q", env.Status)
	}
	if env.Error == nil {
		t.Fatalf("Expected error detail in envelope (body: %s)", w.Body.String())
	}
	if env.Error.Code != string(wantCode) {
		t.Errorf("Expected error code %s, got %s", wantCode, env.Error.Code)
	}
}

// Fixture builders. Timestamps are left zero; the repositories stamp them.

func newSourceBody(format string) models.Source {
	return models.Source{
		ID:     uuid.New(),
		Format: format,
	}
}

func newVideoFlowBody(sourceID uuid.UUID) models.Flow {
	width, height := int64(1920), int64(1080)
	rate := "25/1"
	return models.Flow{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Format:      models.FormatVideo,
		Codec:       "video/h264",
		FrameWidth:  &width,
		FrameHeight: &height,
		FrameRate:   &rate,
	}
}

func newAudioFlowBody(sourceID uuid.UUID) models.Flow {
	sampleRate, bits, channels := int64(48000), int64(16), int64(2)
	return models.Flow{
		ID:            uuid.New(),
		SourceID:      sourceID,
		Format:        models.FormatAudio,
		Codec:         "audio/aac",
		SampleRate:    &sampleRate,
		BitsPerSample: &bits,
		Channels:      &channels,
	}
}

// createSource posts a new source through the API and fails the test on
// anything but 201.
func (env *testEnv) createSource(t *testing.T, format string) models.Source {
	t.Helper()

	body := newSourceBody(format)
	w := env.do(t, http.MethodPost, "/sources", body)
	checkHTTPStatus(t, w, http.StatusCreated)

	var created models.Source
	decodeData(t, w, &created)
	return created
}

// createVideoFlow posts a video flow under a fresh source.
func (env *testEnv) createVideoFlow(t *testing.T) models.Flow {
	t.Helper()

	src := env.createSource(t, models.FormatVideo)
	body := newVideoFlowBody(src.ID)
	w := env.do(t, http.MethodPost, "/flows", body)
	checkHTTPStatus(t, w, http.StatusCreated)

	var created models.Flow
	decodeData(t, w, &created)
	return created
}

// registerSegment posts a metadata-only segment registration.
func (env *testEnv) registerSegment(t *testing.T, flowID uuid.UUID, objectID, timeRange string) {
	t.Helper()

	body := map[string]interface{}{
		"object_id": objectID,
		"timerange": timeRange,
	}
	w := env.do(t, http.MethodPost, fmt.Sprintf("/flows/%s/segments", flowID), body)
	checkHTTPStatus(t, w, http.StatusCreated)
}
