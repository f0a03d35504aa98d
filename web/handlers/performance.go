package handlers

import (
	"net/http"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
)

// PerformanceHandler serves the aggregated performance report.
type PerformanceHandler struct {
	monitor *engine.PerformanceMonitor
}

// NewPerformanceHandler creates a new PerformanceHandler instance.
func NewPerformanceHandler(monitor *engine.PerformanceMonitor) *PerformanceHandler {
	return &PerformanceHandler{monitor: monitor}
}

// GetReport handles GET /api/performance - returns per-operation stats,
// recommendations and alerts.
func (h *PerformanceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Report())
}
