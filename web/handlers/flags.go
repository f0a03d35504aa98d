package handlers

import (
	"net/http"
	"strconv"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/flags"
)

// FlagsHandler serves feature rollout state queries.
type FlagsHandler struct {
	controller *flags.Controller
}

// NewFlagsHandler creates a new FlagsHandler instance.
func NewFlagsHandler(controller *flags.Controller) *FlagsHandler {
	return &FlagsHandler{controller: controller}
}

// GetFlags handles GET /api/users/{user_id}/flags - returns every feature's
// enablement for the user plus the global rollout percentages.
func (h *FlagsHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("user_id"))
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid user id", err)
		return
	}

	respondJSON(w, http.StatusOK, FlagsResponse{
		UserID:             userID,
		Features:           h.controller.AllStates(userID),
		RolloutPercentages: h.controller.Percentages(),
	})
}
