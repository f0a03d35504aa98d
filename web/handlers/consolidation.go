package handlers

import (
	"io"
	"net/http"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
)

// ConsolidationHandler exposes the duplicate consolidation batch over HTTP.
type ConsolidationHandler struct {
	consolidator *engine.Consolidator
}

// NewConsolidationHandler creates a new ConsolidationHandler instance.
func NewConsolidationHandler(consolidator *engine.Consolidator) *ConsolidationHandler {
	return &ConsolidationHandler{consolidator: consolidator}
}

// PostConsolidate handles POST /api/memory/consolidate - runs a
// consolidation sweep and returns the summary report. An empty body runs a
// real global sweep.
func (h *ConsolidationHandler) PostConsolidate(w http.ResponseWriter, r *http.Request) {
	var req ConsolidationRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	report, err := h.consolidator.Run(r.Context(), engine.ConsolidationOptions{
		DryRun: req.DryRun,
		UserID: req.UserID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "consolidation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
