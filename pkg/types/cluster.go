package types

import "time"

// SemanticCluster groups related memory entries into a coherence-scored set.
// Clusters are recomputed from scratch on each request; they carry no
// incremental state.
type SemanticCluster struct {
	ID string `json:"id"`

	// ClusterType is the dominant memory category of the members.
	ClusterType MemoryCategory `json:"cluster_type"`

	MemberIDs []string `json:"member_ids"`

	// CoherenceScore is the average pairwise similarity of the members,
	// in [0, 1]. Single-member clusters score 1.
	CoherenceScore float64 `json:"coherence_score"`

	LastUpdated time.Time `json:"last_updated"`
}
