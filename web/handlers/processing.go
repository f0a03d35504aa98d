package handlers

import (
	"net/http"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// ProcessingHandler exposes the background processing queue over HTTP.
type ProcessingHandler struct {
	processor *engine.Processor
}

// NewProcessingHandler creates a new ProcessingHandler instance.
func NewProcessingHandler(processor *engine.Processor) *ProcessingHandler {
	return &ProcessingHandler{processor: processor}
}

// PostProcess handles POST /api/memory/process. The task is queued and the
// response returns immediately; the caller never waits on processing.
func (h *ProcessingHandler) PostProcess(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required", nil)
		return
	}
	priority, err := types.ParsePriority(req.Priority)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid priority", err)
		return
	}

	task := &types.ProcessingTask{
		UserID:         req.UserID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Priority:       priority,
		MemoryID:       req.MemoryID,
	}

	if !h.processor.Enqueue(task) {
		// Queue full is a degraded mode, not a client error: the next
		// message will trigger another enqueue.
		respondJSON(w, http.StatusAccepted, EnqueueResponse{
			Accepted: false,
			Message:  "queue full, task dropped",
		})
		return
	}

	respondJSON(w, http.StatusAccepted, EnqueueResponse{
		Accepted: true,
		TaskID:   task.ID,
	})
}

// PostProcessBatch handles POST /api/memory/process/batch. Unlike the
// single enqueue it runs synchronously and returns aggregate counts.
func (h *ProcessingHandler) PostProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Payloads) == 0 {
		respondError(w, http.StatusBadRequest, "payloads are required", nil)
		return
	}

	tasks := make([]*types.ProcessingTask, 0, len(req.Payloads))
	for _, p := range req.Payloads {
		if p.UserID <= 0 || p.Message == "" {
			respondError(w, http.StatusBadRequest, "each payload requires user_id and message", nil)
			return
		}
		priority, err := types.ParsePriority(p.Priority)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid priority", err)
			return
		}
		tasks = append(tasks, &types.ProcessingTask{
			UserID:         p.UserID,
			Message:        p.Message,
			ConversationID: p.ConversationID,
			Priority:       priority,
			MemoryID:       p.MemoryID,
			EnqueuedAt:     time.Now(),
		})
	}

	result := h.processor.ProcessBatch(r.Context(), tasks)
	respondJSON(w, http.StatusOK, BatchResponse{
		SuccessCount:     result.SuccessCount,
		FailureCount:     result.FailureCount,
		SkippedCount:     result.SkippedCount,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
		UserGroups:       result.UserGroups,
	})
}

// GetMetrics handles GET /api/memory/process/metrics.
func (h *ProcessingHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.processor.Metrics())
}
