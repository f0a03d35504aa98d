package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// BuildClusters groups memories into coherence-scored semantic clusters.
// Clustering is recomputed from scratch on every call and is deterministic
// for unchanged input: members are processed in stable ID order and assigned
// greedily to the best-matching existing cluster.
func (e *RelationshipEngine) BuildClusters(memories []*types.MemoryEntry) []types.SemanticCluster {
	active := make([]*types.MemoryEntry, 0, len(memories))
	for _, m := range memories {
		if m != nil && m.IsActive {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return nil
	}

	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	type workingCluster struct {
		members []*types.MemoryEntry
	}

	var clusters []*workingCluster
	for _, mem := range active {
		best := -1
		bestScore := 0.0
		for i, cl := range clusters {
			score := e.clusterAffinity(mem, cl.members)
			if score >= e.cfg.ClusterThreshold && score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best >= 0 {
			clusters[best].members = append(clusters[best].members, mem)
		} else {
			clusters = append(clusters, &workingCluster{members: []*types.MemoryEntry{mem}})
		}
	}

	now := time.Now()
	out := make([]types.SemanticCluster, 0, len(clusters))
	for i, cl := range clusters {
		ids := make([]string, len(cl.members))
		for j, m := range cl.members {
			ids[j] = m.ID
		}
		out = append(out, types.SemanticCluster{
			// Deterministic IDs: the same input yields the same clusters.
			ID:             fmt.Sprintf("cluster-%d-%s", i, cl.members[0].ID),
			ClusterType:    dominantCategory(cl.members),
			MemberIDs:      ids,
			CoherenceScore: e.coherence(cl.members),
			LastUpdated:    now,
		})
	}
	return out
}

// clusterAffinity scores how well a memory fits an existing cluster: the
// average stemmed-term containment against current members, with a bonus for
// matching the cluster's dominant category.
func (e *RelationshipEngine) clusterAffinity(mem *types.MemoryEntry, members []*types.MemoryEntry) float64 {
	if len(members) == 0 {
		return 0
	}

	memTerms := termSet(mem)
	total := 0.0
	for _, m := range members {
		total += containment(memTerms, termSet(m))
	}
	score := total / float64(len(members))

	if mem.Category == dominantCategory(members) {
		score += 0.1
	}
	return score
}

// coherence is the average pairwise stemmed-term containment of members.
// Single-member clusters are perfectly coherent.
func (e *RelationshipEngine) coherence(members []*types.MemoryEntry) float64 {
	if len(members) < 2 {
		return 1.0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += containment(termSet(members[i]), termSet(members[j]))
			pairs++
		}
	}
	return clamp01(total / float64(pairs))
}

// dominantCategory returns the most common member category, breaking ties by
// the enum's declaration order for determinism.
func dominantCategory(members []*types.MemoryEntry) types.MemoryCategory {
	counts := make(map[types.MemoryCategory]int)
	for _, m := range members {
		counts[m.Category]++
	}

	best := members[0].Category
	bestCount := 0
	for _, cat := range types.AllCategories() {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	return best
}
