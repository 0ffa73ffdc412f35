// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package deletes

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/database"
	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
	"github.com/tomtom215/tamstore/internal/models"
)

// revertTimeout bounds the shutdown cleanup that returns claimed requests
// to the queue once the serve context is gone.
const revertTimeout = 10 * time.Second

// Worker drains the flow-delete-request queue. It implements
// suture.Service; the supervisor restarts it if the drain loop ever
// returns with an error.
type Worker struct {
	requests *database.FlowDeleteRequestRepo
	segments *database.SegmentRepo
	cfg      config.DeletesConfig
	limiter  *rate.Limiter
}

// NewWorker builds a worker over the given repositories. A zero
// RatePerSecond leaves batches unpaced.
func NewWorker(requests *database.FlowDeleteRequestRepo, segments *database.SegmentRepo, cfg config.DeletesConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	pace := rate.Inf
	if cfg.RatePerSecond > 0 {
		pace = rate.Limit(cfg.RatePerSecond)
	}

	return &Worker{
		requests: requests,
		segments: segments,
		cfg:      cfg,
		limiter:  rate.NewLimiter(pace, 1),
	}
}

// Serve implements suture.Service. It blocks until the context is
// canceled, claiming and draining requests as they arrive.
func (w *Worker) Serve(ctx context.Context) error {
	logging.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Float64("rate_per_second", w.cfg.RatePerSecond).
		Msg("Starting flow delete worker")

	// Claims orphaned by an unclean stop go back to the queue first.
	if reverted, err := w.requests.RevertInProgress(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to revert orphaned delete requests")
	} else if reverted > 0 {
		logging.Info().Int64("count", reverted).Msg("Reverted orphaned delete requests to pending")
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.drainPending(ctx)
		w.refreshPendingGauge(ctx)

		select {
		case <-ctx.Done():
			w.revertOnShutdown()
			logging.Info().Msg("Flow delete worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// drainPending claims and drains requests until the queue is empty or the
// context is canceled.
func (w *Worker) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		req, err := w.requests.ClaimOldestPending(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to claim delete request")
			return
		}
		if req == nil {
			return
		}
		w.drain(ctx, req)
	}
}

// drain deletes the request's segments in paced batches and records the
// terminal state. A canceled context leaves the request in_progress for
// the shutdown revert.
func (w *Worker) drain(ctx context.Context, req *models.FlowDeleteRequest) {
	logging.Info().
		Str("request_id", req.ID.String()).
		Str("flow_id", req.FlowID.String()).
		Str("timerange", req.TimeRange).
		Msg("Draining flow delete request")

	start := time.Now()
	var total int64

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		deleted, err := w.segments.DeleteBatch(ctx, req.FlowID, req.TimeRange, w.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Error().Err(err).
				Str("request_id", req.ID.String()).
				Int64("segments_deleted", total).
				Msg("Flow delete request failed")
			if markErr := w.requests.MarkFailed(ctx, req.ID, err.Error(), total); markErr != nil {
				logging.Error().Err(markErr).Str("request_id", req.ID.String()).
					Msg("Failed to record delete request failure")
			}
			metrics.RecordDeleteRequestTerminal("failed")
			return
		}
		if deleted == 0 {
			break
		}

		total += deleted
		metrics.RecordSegmentsDeleted("async", deleted)
		if err := w.requests.SetProgress(ctx, req.ID, total); err != nil {
			logging.Warn().Err(err).Str("request_id", req.ID.String()).
				Msg("Failed to record drain progress")
		}
	}

	if err := w.requests.MarkCompleted(ctx, req.ID, total); err != nil {
		logging.Error().Err(err).Str("request_id", req.ID.String()).
			Msg("Failed to record delete request completion")
		return
	}
	metrics.RecordDeleteRequestTerminal("completed")
	metrics.DeleteDrainDuration.Observe(time.Since(start).Seconds())

	logging.Info().
		Str("request_id", req.ID.String()).
		Int64("segments_deleted", total).
		Dur("took", time.Since(start)).
		Msg("Flow delete request completed")
}

// revertOnShutdown returns any in_progress claim to pending so the next
// run re-claims it. The serve context is already canceled, so this runs
// on its own deadline.
func (w *Worker) revertOnShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), revertTimeout)
	defer cancel()

	reverted, err := w.requests.RevertInProgress(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to revert in-progress delete requests on shutdown")
		return
	}
	if reverted > 0 {
		logging.Info().Int64("count", reverted).Msg("Reverted in-progress delete requests to pending")
	}
}

func (w *Worker) refreshPendingGauge(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	pending, err := w.requests.CountByStatus(ctx, models.DeleteStatusPending)
	if err != nil {
		return
	}
	metrics.DeleteRequestsPending.Set(float64(pending))
}

// String identifies the worker in supervisor logs.
func (w *Worker) String() string {
	return "flow-delete-worker"
}
