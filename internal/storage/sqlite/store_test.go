package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func sampleMemory(id string, userID int) *types.MemoryEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.MemoryEntry{
		ID:              id,
		UserID:          userID,
		Content:         "I love running in the morning",
		Category:        types.CategoryPreference,
		ImportanceScore: 0.7,
		AccessCount:     2,
		Labels:          []string{"exercise"},
		Keywords:        []string{"running", "morning"},
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := sampleMemory("mem-1", 1)
	mem.SemanticHash = "abc123"
	require.NoError(t, s.Store(ctx, mem))

	got, err := s.Get(ctx, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, mem.ID, got.ID)
	assert.Equal(t, mem.Content, got.Content)
	assert.Equal(t, types.CategoryPreference, got.Category)
	assert.Equal(t, mem.Labels, got.Labels)
	assert.Equal(t, mem.Keywords, got.Keywords)
	assert.Equal(t, "abc123", got.SemanticHash)
	assert.True(t, got.IsActive)
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := sampleMemory("mem-1", 1)
	require.NoError(t, s.Store(ctx, mem))

	mem.Content = "I love running in the evening"
	mem.ImportanceScore = 0.9
	require.NoError(t, s.Store(ctx, mem))

	got, err := s.Get(ctx, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, "I love running in the evening", got.Content)
	assert.InDelta(t, 0.9, got.ImportanceScore, 1e-9)
}

func TestStore_RejectsInvalidCategory(t *testing.T) {
	s := newTestStore(t)

	mem := sampleMemory("mem-1", 1)
	mem.Category = "mood"
	assert.ErrorIs(t, s.Store(context.Background(), mem), storage.ErrInvalidInput)
}

func TestStore_ListFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := sampleMemory("older", 1)
	older.CreatedAt = time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	newer := sampleMemory("newer", 1)
	inactive := sampleMemory("inactive", 1)
	inactive.IsActive = false
	otherUser := sampleMemory("other", 2)

	for _, m := range []*types.MemoryEntry{older, newer, inactive, otherUser} {
		require.NoError(t, s.Store(ctx, m))
	}

	got, err := s.List(ctx, storage.ListOptions{UserID: 1, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ID, "newest first")
	assert.Equal(t, "older", got[1].ID)

	limited, err := s.List(ctx, storage.ListOptions{UserID: 1, ActiveOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "newer", limited[0].ID)
}

func TestStore_DeactivateAndIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := sampleMemory("mem-1", 1)
	require.NoError(t, s.Store(ctx, mem))

	require.NoError(t, s.IncrementAccessCount(ctx, "mem-1"))
	require.NoError(t, s.Deactivate(ctx, "mem-1"))

	got, err := s.Get(ctx, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.AccessCount)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.Deactivate(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, s.IncrementAccessCount(ctx, "missing"), storage.ErrNotFound)
}

func TestStore_ApplyMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := sampleMemory("mem-1", 1)
	require.NoError(t, s.Store(ctx, mem))

	mem.Labels = []string{"exercise", "habit"}
	mem.ImportanceScore = 0.95
	mem.AccessCount = 9
	mem.UpdateCount = 1
	mem.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.ApplyMerge(ctx, mem))

	got, err := s.Get(ctx, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"exercise", "habit"}, got.Labels)
	assert.InDelta(t, 0.95, got.ImportanceScore, 1e-9)
	assert.Equal(t, 9, got.AccessCount)
	assert.Equal(t, 1, got.UpdateCount)

	missing := sampleMemory("missing", 1)
	assert.ErrorIs(t, s.ApplyMerge(ctx, missing), storage.ErrNotFound)
}

func TestStore_ReplaceForMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleMemory("mem-1", 1)))

	now := time.Now().UTC().Truncate(time.Second)
	first := []types.AtomicFact{
		{ID: "f1", MemoryEntryID: "mem-1", FactType: types.FactPreference, Content: "loves running", Confidence: 0.9, CreatedAt: now},
		{ID: "f2", MemoryEntryID: "mem-1", FactType: types.FactEvent, Content: "ran this morning", Confidence: 0.7, CreatedAt: now},
	}
	require.NoError(t, s.ReplaceForMemory(ctx, "mem-1", first))

	second := []types.AtomicFact{
		{ID: "f3", MemoryEntryID: "mem-1", FactType: types.FactGoal, Content: "wants to run a marathon", Confidence: 0.8, CreatedAt: now},
	}
	require.NoError(t, s.ReplaceForMemory(ctx, "mem-1", second))

	got, err := s.ListByMemory(ctx, "mem-1")
	require.NoError(t, err)
	require.Len(t, got, 1, "replace semantics: old facts are gone")
	assert.Equal(t, "f3", got[0].ID)
	assert.Equal(t, types.FactGoal, got[0].FactType)
}

func TestStore_RelationshipIdempotentCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleMemory("a", 1)))
	require.NoError(t, s.Store(ctx, sampleMemory("b", 1)))

	rel := &types.MemoryRelationship{
		ID:             "r1",
		SourceMemoryID: "a",
		TargetMemoryID: "b",
		Type:           types.RelContradicts,
		Strength:       0.75,
		Confidence:     0.6,
		Context:        "negation cue on one side",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Create(ctx, rel))

	// Re-detection inserts the same edge again; the unique index swallows it.
	dup := *rel
	dup.ID = "r2"
	require.NoError(t, s.Create(ctx, &dup))

	got, err := s.ListBySource(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, types.RelContradicts, got[0].Type)

	both, err := s.ListForMemory(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, both, 1)
}
