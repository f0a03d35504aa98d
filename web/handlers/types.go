package handlers

import (
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EnqueueRequest is the request format for POST /api/memory/process.
type EnqueueRequest struct {
	UserID         int    `json:"user_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Priority       string `json:"priority,omitempty"`
	MemoryID       string `json:"memory_id,omitempty"`
}

// EnqueueResponse acknowledges a queued task. Processing happens in the
// background; the task ID is only useful for correlating event broadcasts.
type EnqueueResponse struct {
	Accepted bool   `json:"accepted"`
	TaskID   string `json:"task_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BatchRequest is the request format for POST /api/memory/process/batch.
type BatchRequest struct {
	Payloads []EnqueueRequest `json:"payloads"`
}

// BatchResponse aggregates a synchronous batch run.
type BatchResponse struct {
	SuccessCount     int `json:"success_count"`
	FailureCount     int `json:"failure_count"`
	SkippedCount     int `json:"skipped_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
	UserGroups       int `json:"user_groups"`
}

// AnalysisResponse is the response format for the relationship analysis
// query: everything the engine knows about one memory.
type AnalysisResponse struct {
	MemoryID        string                     `json:"memory_id"`
	Relationships   []types.MemoryRelationship `json:"relationships"`
	AtomicFacts     []types.AtomicFact         `json:"atomic_facts"`
	RelatedMemories []types.RelatedMemory      `json:"related_memories"`
}

// ClusterSummary is one cluster in the clustering query response.
type ClusterSummary struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	MemoriesCount  int     `json:"memories_count"`
	CoherenceScore float64 `json:"coherence_score"`
	LastUpdated    string  `json:"last_updated"`
}

// ClustersResponse is the response format for the clustering query.
type ClustersResponse struct {
	UserID   int              `json:"user_id"`
	Clusters []ClusterSummary `json:"clusters"`
}

// ConsolidationRequest is the request format for the consolidation trigger.
type ConsolidationRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
	UserID int  `json:"user_id,omitempty"`
}

// FlagsResponse is the response format for the feature flag query.
type FlagsResponse struct {
	UserID             int             `json:"user_id"`
	Features           map[string]bool `json:"features"`
	RolloutPercentages map[string]int  `json:"rollout_percentages"`
}

// BreakerProbeRequest is the request format for the breaker probe hook.
// Action "trigger_failure" records a simulated downstream failure; anything
// else runs a no-op probe.
type BreakerProbeRequest struct {
	Action string `json:"action,omitempty"`
}

// BreakerProbeResponse reports breaker state after a probe.
type BreakerProbeResponse struct {
	CircuitBreakerActive bool   `json:"circuit_breaker_active"`
	State                string `json:"state"`
	ResponseTimeMs       int64  `json:"response_time_ms"`
	FailureCount         uint32 `json:"failure_count"`
	FallbackUsed         bool   `json:"fallback_used"`
}
