package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// fakeStore is an in-memory storage.Store for engine tests. Error injection
// and call counting let tests drive failure paths without a database.
type fakeStore struct {
	mu       sync.Mutex
	memories map[string]*types.MemoryEntry
	facts    map[string][]types.AtomicFact
	rels     map[string]types.MemoryRelationship

	failApplyMerge bool
	failList       bool
	listCalls      int
	listGate       chan struct{} // when set, List blocks until the gate closes
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories: make(map[string]*types.MemoryEntry),
		facts:    make(map[string][]types.AtomicFact),
		rels:     make(map[string]types.MemoryRelationship),
	}
}

func (f *fakeStore) seed(mems ...*types.MemoryEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range mems {
		cp := *m
		f.memories[m.ID] = &cp
	}
}

func (f *fakeStore) Store(ctx context.Context, mem *types.MemoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *mem
	f.memories[mem.ID] = &cp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*types.MemoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryEntry, error) {
	if f.listGate != nil {
		<-f.listGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList {
		return nil, fmt.Errorf("injected list failure")
	}

	var out []*types.MemoryEntry
	for _, m := range f.memories {
		if opts.UserID != 0 && m.UserID != opts.UserID {
			continue
		}
		if opts.ActiveOnly && !m.IsActive {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) ApplyMerge(ctx context.Context, primary *types.MemoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failApplyMerge {
		return fmt.Errorf("injected merge failure")
	}
	if _, ok := f.memories[primary.ID]; !ok {
		return fmt.Errorf("memory %s: %w", primary.ID, storage.ErrNotFound)
	}
	cp := *primary
	f.memories[primary.ID] = &cp
	return nil
}

func (f *fakeStore) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	m.IsActive = false
	return nil
}

func (f *fakeStore) IncrementAccessCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	m.AccessCount++
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) ReplaceForMemory(ctx context.Context, memoryID string, facts []types.AtomicFact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts[memoryID] = append([]types.AtomicFact(nil), facts...)
	return nil
}

func (f *fakeStore) ListByMemory(ctx context.Context, memoryID string) ([]types.AtomicFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.AtomicFact(nil), f.facts[memoryID]...), nil
}

func (f *fakeStore) Create(ctx context.Context, rel *types.MemoryRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rel.SourceMemoryID + "|" + rel.TargetMemoryID + "|" + string(rel.Type)
	if _, exists := f.rels[key]; exists {
		return nil
	}
	f.rels[key] = *rel
	return nil
}

func (f *fakeStore) ListBySource(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MemoryRelationship
	for _, r := range f.rels {
		if r.SourceMemoryID == memoryID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetMemoryID < out[j].TargetMemoryID })
	return out, nil
}

func (f *fakeStore) ListForMemory(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MemoryRelationship
	for _, r := range f.rels {
		if r.SourceMemoryID == memoryID || r.TargetMemoryID == memoryID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.memories {
		if m.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeStore) relationshipCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rels)
}
