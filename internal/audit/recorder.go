// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/logging"
)

const (
	defaultBufferSize = 256
	writeTimeout      = 5 * time.Second
)

// Recorder persists events asynchronously so the HTTP error path never
// waits on the audit table. Events are dropped with a warning when the
// buffer is full.
type Recorder struct {
	store  Store
	events chan *Event

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts the write goroutine over the given store.
func NewRecorder(store Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		store:  store,
		events: make(chan *Event, bufferSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues one event. It assigns the event ID and timestamp and
// never blocks.
func (r *Recorder) Record(code, severity, method, path, requestID, message string) {
	event := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Code:      code,
		Severity:  severity,
		Method:    method,
		Path:      path,
		RequestID: requestID,
		Message:   message,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.events <- event:
	default:
		logging.Warn().Str("code", code).Msg("Audit buffer full, dropping event")
	}
}

// run drains the event channel until Close.
func (r *Recorder) run() {
	defer r.wg.Done()
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Str("code", event.Code).Msg("Failed to persist audit event")
		}
		cancel()
	}
}

// Close flushes buffered events and stops the writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}
