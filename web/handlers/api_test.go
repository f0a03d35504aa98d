package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/flags"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// memStore is a minimal in-memory storage.Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	memories map[string]*types.MemoryEntry
	facts    map[string][]types.AtomicFact
	rels     map[string]types.MemoryRelationship
}

func newMemStore() *memStore {
	return &memStore{
		memories: make(map[string]*types.MemoryEntry),
		facts:    make(map[string][]types.AtomicFact),
		rels:     make(map[string]types.MemoryRelationship),
	}
}

func (s *memStore) Store(ctx context.Context, mem *types.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *mem
	s.memories[mem.ID] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*types.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.MemoryEntry
	for _, m := range s.memories {
		if opts.UserID != 0 && m.UserID != opts.UserID {
			continue
		}
		if opts.ActiveOnly && !m.IsActive {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *memStore) ApplyMerge(ctx context.Context, primary *types.MemoryEntry) error {
	return s.Store(ctx, primary)
}

func (s *memStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	m.IsActive = false
	return nil
}

func (s *memStore) IncrementAccessCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	m.AccessCount++
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) ReplaceForMemory(ctx context.Context, memoryID string, facts []types.AtomicFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[memoryID] = append([]types.AtomicFact(nil), facts...)
	return nil
}

func (s *memStore) ListByMemory(ctx context.Context, memoryID string) ([]types.AtomicFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.AtomicFact(nil), s.facts[memoryID]...), nil
}

func (s *memStore) Create(ctx context.Context, rel *types.MemoryRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rel.SourceMemoryID + "|" + rel.TargetMemoryID + "|" + string(rel.Type)
	if _, exists := s.rels[key]; !exists {
		s.rels[key] = *rel
	}
	return nil
}

func (s *memStore) ListBySource(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.MemoryRelationship
	for _, r := range s.rels {
		if r.SourceMemoryID == memoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ListForMemory(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.MemoryRelationship
	for _, r := range s.rels {
		if r.SourceMemoryID == memoryID || r.TargetMemoryID == memoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DuplicateThreshold: 0.85,
		ElaborationFloor:   0.4,
		ContradictionFloor: 0.15,
		SharedKeywordFloor: 2,
		TemporalWindow:     72 * time.Hour,
		ClusterThreshold:   0.3,
		TokenCacheSize:     64,
		MaxCandidatePool:   200,
		RelatedMaxDepth:    2,
	}
}

func seedMemory(t *testing.T, store *memStore, id string, userID int, content string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.Store(context.Background(), &types.MemoryEntry{
		ID:        id,
		UserID:    userID,
		Content:   content,
		Category:  types.CategoryPreference,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func newStartedProcessor(t *testing.T, store *memStore) *engine.Processor {
	t.Helper()
	p := engine.NewProcessor(
		store,
		engine.NewRelationshipEngine(testEngineConfig()),
		engine.NewCircuitBreaker(config.BreakerConfig{MaxFailures: 5, CoolDown: time.Minute}),
		engine.NewPerformanceMonitor(),
		nil,
		config.ProcessorConfig{NumWorkers: 1, QueueSize: 16, BatchConcurrency: 2, ShutdownTimeout: 5 * time.Second},
		testEngineConfig(),
	)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestPostProcess_Accepted(t *testing.T) {
	store := newMemStore()
	h := NewProcessingHandler(newStartedProcessor(t, store))

	w := postJSON(t, h.PostProcess, "/api/memory/process", EnqueueRequest{
		UserID:   1,
		Message:  "I love running in the morning",
		Priority: "high",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp EnqueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.NotEmpty(t, resp.TaskID)
}

func TestPostProcess_Validation(t *testing.T) {
	store := newMemStore()
	h := NewProcessingHandler(newStartedProcessor(t, store))

	tests := []struct {
		name string
		req  EnqueueRequest
	}{
		{"missing user", EnqueueRequest{Message: "hello"}},
		{"missing message", EnqueueRequest{UserID: 1}},
		{"unknown priority", EnqueueRequest{UserID: 1, Message: "hello", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h.PostProcess, "/api/memory/process", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPostProcessBatch(t *testing.T) {
	store := newMemStore()
	seedMemory(t, store, "m1", 1, "I love running in the morning")
	h := NewProcessingHandler(newStartedProcessor(t, store))

	w := postJSON(t, h.PostProcessBatch, "/api/memory/process/batch", BatchRequest{
		Payloads: []EnqueueRequest{
			{UserID: 1, Message: "first message"},
			{UserID: 2, Message: "second message"},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 0, resp.FailureCount)
	assert.Equal(t, 2, resp.UserGroups)
}

func TestPostProcessBatch_EmptyPayloads(t *testing.T) {
	store := newMemStore()
	h := NewProcessingHandler(newStartedProcessor(t, store))

	w := postJSON(t, h.PostProcessBatch, "/api/memory/process/batch", BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	store := newMemStore()
	h := NewAnalysisHandler(store, engine.NewRelationshipEngine(testEngineConfig()),
		engine.NewPerformanceMonitor(), testEngineConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/memories/missing/analysis", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()
	h.GetAnalysis(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalysis_ReturnsGraph(t *testing.T) {
	store := newMemStore()
	seedMemory(t, store, "m1", 1, "I am allergic to peanuts")
	seedMemory(t, store, "m2", 1, "I had a peanut butter sandwich today and felt fine")

	facts := engine.NewFactExtractor().Extract("m1", "I am allergic to peanuts")
	require.NoError(t, store.ReplaceForMemory(context.Background(), "m1", facts))

	h := NewAnalysisHandler(store, engine.NewRelationshipEngine(testEngineConfig()),
		engine.NewPerformanceMonitor(), testEngineConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/memories/m1/analysis", nil)
	req.SetPathValue("id", "m1")
	w := httptest.NewRecorder()
	h.GetAnalysis(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "m1", resp.MemoryID)
	assert.NotEmpty(t, resp.AtomicFacts)
	require.NotEmpty(t, resp.RelatedMemories, "the contradicting memory is one hop away")
	assert.Equal(t, "m2", resp.RelatedMemories[0].Memory.ID)

	// Retrieval bumps the access counter.
	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)
}

func TestGetClusters(t *testing.T) {
	store := newMemStore()
	seedMemory(t, store, "m1", 1, "I love running in the morning")
	seedMemory(t, store, "m2", 1, "Morning running keeps me energized")

	h := NewAnalysisHandler(store, engine.NewRelationshipEngine(testEngineConfig()),
		engine.NewPerformanceMonitor(), testEngineConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/clusters", nil)
	req.SetPathValue("user_id", "1")
	w := httptest.NewRecorder()
	h.GetClusters(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ClustersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.UserID)
	require.Len(t, resp.Clusters, 1)
	assert.Equal(t, 2, resp.Clusters[0].MemoriesCount)
	assert.Greater(t, resp.Clusters[0].CoherenceScore, 0.0)
}

func TestGetClusters_InvalidUser(t *testing.T) {
	store := newMemStore()
	h := NewAnalysisHandler(store, engine.NewRelationshipEngine(testEngineConfig()),
		engine.NewPerformanceMonitor(), testEngineConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/clusters", nil)
	req.SetPathValue("user_id", "abc")
	w := httptest.NewRecorder()
	h.GetClusters(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostConsolidate_DryRun(t *testing.T) {
	store := newMemStore()
	seedMemory(t, store, "a", 1, "I love running in the morning")
	seedMemory(t, store, "b", 1, "i love running in the morning")

	h := NewConsolidationHandler(engine.NewConsolidator(store, testEngineConfig(), nil))

	w := postJSON(t, h.PostConsolidate, "/api/memory/consolidate", ConsolidationRequest{DryRun: true})
	require.Equal(t, http.StatusOK, w.Code)

	var report engine.ConsolidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.DuplicateGroups)
	assert.Equal(t, 0, report.MemoriesDeactivated)
}

func TestGetFlags(t *testing.T) {
	controller := flags.NewController()
	controller.SetKillSwitch(flags.FeatureClustering, true)
	h := NewFlagsHandler(controller)

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/flags", nil)
	req.SetPathValue("user_id", "7")
	w := httptest.NewRecorder()
	h.GetFlags(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp FlagsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.UserID)
	assert.False(t, resp.Features[flags.FeatureClustering])
	assert.True(t, resp.Features[flags.FeatureAtomicFacts])
	assert.Equal(t, 0, resp.RolloutPercentages[flags.FeatureClustering])
}

func TestPostProbe_TriggerFailureTripsBreaker(t *testing.T) {
	breaker := engine.NewCircuitBreaker(config.BreakerConfig{MaxFailures: 2, CoolDown: time.Minute})
	h := NewBreakerHandler(breaker)

	for i := 0; i < 2; i++ {
		w := postJSON(t, h.PostProbe, "/api/breaker/probe", BreakerProbeRequest{Action: "trigger_failure"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, h.PostProbe, "/api/breaker/probe", BreakerProbeRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var resp BreakerProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CircuitBreakerActive)
	assert.Equal(t, "open", resp.State)
	assert.True(t, resp.FallbackUsed)
}

func TestPostProbe_NormalProbe(t *testing.T) {
	breaker := engine.NewCircuitBreaker(config.BreakerConfig{MaxFailures: 5, CoolDown: time.Minute})
	h := NewBreakerHandler(breaker)

	w := postJSON(t, h.PostProbe, "/api/breaker/probe", BreakerProbeRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var resp BreakerProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.CircuitBreakerActive)
	assert.Equal(t, "closed", resp.State)
	assert.False(t, resp.FallbackUsed)
	assert.Equal(t, uint32(0), resp.FailureCount)
}
