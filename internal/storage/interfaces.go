// Package storage provides composable storage interfaces for the memory core.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Two backends exist:
// SQLite (default, single-file) and PostgreSQL.
package storage

import (
	"context"
	"errors"

	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ListOptions provides filtering options for memory list operations.
type ListOptions struct {
	// UserID filters to a single user. Zero means all users.
	UserID int

	// ActiveOnly restricts results to entries with is_active = true.
	ActiveOnly bool

	// Limit caps the number of returned entries. Zero means no cap.
	Limit int
}

// MemoryStore provides CRUD operations for memory entries.
//
// Mutations that race with the background processor (merge, deactivate,
// access counting) are expressed as single-statement read-modify-write
// updates so that last-writer-wins applies at the row level without locks.
type MemoryStore interface {
	// Store creates or updates a memory entry (upsert semantics).
	Store(ctx context.Context, mem *types.MemoryEntry) error

	// Get retrieves a memory entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	Get(ctx context.Context, id string) (*types.MemoryEntry, error)

	// List retrieves memory entries ordered newest-first.
	List(ctx context.Context, opts ListOptions) ([]*types.MemoryEntry, error)

	// ApplyMerge folds merged labels, keywords, importance and access count
	// into the primary entry and bumps its update counter, in one statement.
	// Returns ErrNotFound if the primary doesn't exist.
	ApplyMerge(ctx context.Context, primary *types.MemoryEntry) error

	// Deactivate sets is_active = false and refreshes updated_at.
	// Entries are never hard-deleted. Returns ErrNotFound if missing.
	Deactivate(ctx context.Context, id string) error

	// IncrementAccessCount atomically increments access_count.
	// Returns ErrNotFound if the entry doesn't exist.
	IncrementAccessCount(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// FactStore persists atomic facts decomposed from memory content.
type FactStore interface {
	// ReplaceForMemory replaces all facts owned by a memory in one pass.
	// Reprocessing a memory is therefore idempotent.
	ReplaceForMemory(ctx context.Context, memoryID string, facts []types.AtomicFact) error

	// ListByMemory returns the facts owned by a memory, oldest first.
	ListByMemory(ctx context.Context, memoryID string) ([]types.AtomicFact, error)
}

// RelationshipStore persists typed directed edges between memory entries.
type RelationshipStore interface {
	// Create inserts a relationship. Re-detection is idempotent: an existing
	// edge with the same (source, target, type) is left untouched and no
	// error is returned.
	Create(ctx context.Context, rel *types.MemoryRelationship) error

	// ListBySource returns relationships originating from a memory.
	ListBySource(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error)

	// ListForMemory returns relationships touching a memory in either
	// direction, used for graph traversal.
	ListForMemory(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error)
}

// Store composes the three persistence concerns a backend must cover.
type Store interface {
	MemoryStore
	FactStore
	RelationshipStore
}

// EmbeddingProvider manages vector embeddings for the non-fast-path deep
// extraction used elsewhere in the broader system. The fast local heuristics
// never call it.
type EmbeddingProvider interface {
	// StoreEmbedding stores a vector embedding for a memory.
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float32, model string) error

	// GetEmbedding retrieves the embedding for a memory.
	// Returns ErrNotFound if none is stored.
	GetEmbedding(ctx context.Context, memoryID string) ([]float32, error)

	// NearestByEmbedding returns up to limit memory IDs ordered by vector
	// distance to the given embedding.
	NearestByEmbedding(ctx context.Context, embedding []float32, limit int) ([]string, error)
}
