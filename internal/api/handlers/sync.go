package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

// SyncRunner runs one feed synchronization.
type SyncRunner interface {
	Run(ctx context.Context) (models.SyncResult, error)
}

// SyncHandler serves the manual sync trigger and the retry queue
// status.
type SyncHandler struct {
	runner SyncRunner
	queue  *retry.Queue
	log    *zap.Logger
}

// NewSyncHandler wires the sync endpoints.
func NewSyncHandler(runner SyncRunner, queue *retry.Queue, log *zap.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, queue: queue, log: log}
}

// TriggerSync runs the pipeline synchronously and reports the counts.
// A run already in flight gets a 409.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, errs.ErrSyncInProgress) {
			respondError(w, r, http.StatusConflict, "conflict", "sync already running")
			return
		}
		h.log.Error("manual sync failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "sync failed")
		return
	}

	respondData(w, r, http.StatusOK, result)
}

// QueueStatus reports the pending failed operations.
func (h *SyncHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.queue.Status())
}
