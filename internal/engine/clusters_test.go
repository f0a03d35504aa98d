package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

func TestBuildClusters_Empty(t *testing.T) {
	e := NewRelationshipEngine(testEngineConfig())

	assert.Empty(t, e.BuildClusters(nil))

	inactive := mem("a", "I love running")
	inactive.IsActive = false
	assert.Empty(t, e.BuildClusters([]*types.MemoryEntry{inactive}))
}

func TestBuildClusters_GroupsRelatedContent(t *testing.T) {
	e := NewRelationshipEngine(testEngineConfig())

	running1 := mem("m1", "I love running in the morning")
	running2 := mem("m2", "Morning running keeps me energized")
	baking := mem("m3", "Baking sourdough bread relaxes me on weekends")

	clusters := e.BuildClusters([]*types.MemoryEntry{running1, running2, baking})
	require.Len(t, clusters, 2)

	byFirst := map[string]types.SemanticCluster{}
	for _, c := range clusters {
		byFirst[c.MemberIDs[0]] = c
	}

	runCluster, ok := byFirst["m1"]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"m1", "m2"}, runCluster.MemberIDs)
	assert.Greater(t, runCluster.CoherenceScore, 0.0)

	bakeCluster, ok := byFirst["m3"]
	require.True(t, ok)
	assert.Equal(t, []string{"m3"}, bakeCluster.MemberIDs)
	assert.Equal(t, 1.0, bakeCluster.CoherenceScore)
}

func TestBuildClusters_Deterministic(t *testing.T) {
	e := NewRelationshipEngine(testEngineConfig())

	pool := []*types.MemoryEntry{
		mem("m1", "I love running in the morning"),
		mem("m2", "Morning running keeps me energized"),
		mem("m3", "Baking sourdough bread relaxes me on weekends"),
	}
	// Same input in a different order clusters identically.
	reversed := []*types.MemoryEntry{pool[2], pool[1], pool[0]}

	first := e.BuildClusters(pool)
	second := e.BuildClusters(reversed)
	require.Equal(t, len(first), len(second))

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].MemberIDs, second[i].MemberIDs)
		assert.Equal(t, first[i].CoherenceScore, second[i].CoherenceScore)
	}
}

func TestBuildClusters_DominantCategory(t *testing.T) {
	e := NewRelationshipEngine(testEngineConfig())

	a := mem("m1", "I love running in the morning")
	a.Category = types.CategoryPreference
	b := mem("m2", "Morning running keeps me energized")
	b.Category = types.CategoryPreference

	clusters := e.BuildClusters([]*types.MemoryEntry{a, b})
	require.Len(t, clusters, 1)
	assert.Equal(t, types.CategoryPreference, clusters[0].ClusterType)
}
