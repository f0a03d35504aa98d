package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// AnalysisHandler serves relationship analysis and clustering queries.
type AnalysisHandler struct {
	store         storage.Store
	relationships *engine.RelationshipEngine
	monitor       *engine.PerformanceMonitor
	cfg           config.EngineConfig
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
func NewAnalysisHandler(store storage.Store, relationships *engine.RelationshipEngine, monitor *engine.PerformanceMonitor, cfg config.EngineConfig) *AnalysisHandler {
	return &AnalysisHandler{
		store:         store,
		relationships: relationships,
		monitor:       monitor,
		cfg:           cfg,
	}
}

// GetAnalysis handles GET /api/memories/{id}/analysis - returns everything
// the engine knows about one memory: stored relationships, atomic facts,
// and the related-memory graph walk.
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	memoryID := r.PathValue("id")
	if memoryID == "" {
		respondError(w, http.StatusBadRequest, "memory id is required", nil)
		return
	}

	mem, err := h.store.Get(ctx, memoryID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "memory not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load memory", err)
		return
	}

	rels, err := h.store.ListForMemory(ctx, memoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load relationships", err)
		return
	}

	facts, err := h.store.ListByMemory(ctx, memoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load facts", err)
		return
	}

	pool, err := h.store.List(ctx, storage.ListOptions{
		UserID:     mem.UserID,
		ActiveOnly: true,
		Limit:      h.cfg.MaxCandidatePool,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load candidate pool", err)
		return
	}
	related := h.relationships.RelatedMemories(mem, pool, h.cfg.RelatedMaxDepth)

	if err := h.store.IncrementAccessCount(ctx, memoryID); err != nil {
		// Access counting is best-effort; the analysis itself succeeded.
		respondAnalysis(w, memoryID, rels, facts, related)
		return
	}

	h.monitor.Track(engine.OpRetrieval, time.Since(start), true)
	respondAnalysis(w, memoryID, rels, facts, related)
}

func respondAnalysis(w http.ResponseWriter, memoryID string, rels []types.MemoryRelationship, facts []types.AtomicFact, related []types.RelatedMemory) {
	if rels == nil {
		rels = []types.MemoryRelationship{}
	}
	if facts == nil {
		facts = []types.AtomicFact{}
	}
	if related == nil {
		related = []types.RelatedMemory{}
	}
	respondJSON(w, http.StatusOK, AnalysisResponse{
		MemoryID:        memoryID,
		Relationships:   rels,
		AtomicFacts:     facts,
		RelatedMemories: related,
	})
}

// GetClusters handles GET /api/users/{user_id}/clusters - groups a user's
// active memories into semantic clusters.
func (h *AnalysisHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := strconv.Atoi(r.PathValue("user_id"))
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid user id", err)
		return
	}

	memories, err := h.store.List(ctx, storage.ListOptions{
		UserID:     userID,
		ActiveOnly: true,
		Limit:      h.cfg.MaxCandidatePool,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load memories", err)
		return
	}

	clusters := h.relationships.BuildClusters(memories)
	summaries := make([]ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, ClusterSummary{
			ID:             c.ID,
			Type:           string(c.ClusterType),
			MemoriesCount:  len(c.MemberIDs),
			CoherenceScore: c.CoherenceScore,
			LastUpdated:    c.LastUpdated.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(w, http.StatusOK, ClustersResponse{
		UserID:   userID,
		Clusters: summaries,
	})
}
