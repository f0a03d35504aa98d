// Package sqlite implements the storage interfaces on SQLite.
// It is the default backend: zero-dependency deployment, a single database
// file, WAL mode for read concurrency.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing with SQLITE_BUSY when the connection is held
	// by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB exposes the underlying connection for stats queries.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store creates or updates a memory entry using upsert semantics.
func (s *Store) Store(ctx context.Context, mem *types.MemoryEntry) error {
	if mem == nil || mem.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if !mem.Category.Valid() {
		return fmt.Errorf("%w: invalid category %q", storage.ErrInvalidInput, mem.Category)
	}

	labels, err := marshalStringSet(mem.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	keywords, err := marshalStringSet(mem.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, user_id, content, category, importance_score,
			access_count, update_count, semantic_hash, labels, keywords,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			importance_score = excluded.importance_score,
			access_count = excluded.access_count,
			update_count = excluded.update_count,
			semantic_hash = excluded.semantic_hash,
			labels = excluded.labels,
			keywords = excluded.keywords,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		mem.ID, mem.UserID, mem.Content, string(mem.Category), mem.ImportanceScore,
		mem.AccessCount, mem.UpdateCount, nullableString(mem.SemanticHash), labels, keywords,
		boolToInt(mem.IsActive), mem.CreatedAt.UTC(), mem.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// Get retrieves a memory entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, category, importance_score,
			access_count, update_count, semantic_hash, labels, keywords,
			is_active, created_at, updated_at
		FROM memories WHERE id = ?
	`, id)

	mem, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return mem, nil
}

// List retrieves memory entries ordered newest-first.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryEntry, error) {
	var conds []string
	var args []interface{}

	if opts.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}

	query := `
		SELECT id, user_id, content, category, importance_score,
			access_count, update_count, semantic_hash, labels, keywords,
			is_active, created_at, updated_at
		FROM memories`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var out []*types.MemoryEntry
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// ApplyMerge writes the merged state of a primary entry back in a single
// statement. The caller computes the merge with MemoryEntry.MergeFrom.
func (s *Store) ApplyMerge(ctx context.Context, primary *types.MemoryEntry) error {
	labels, err := marshalStringSet(primary.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	keywords, err := marshalStringSet(primary.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET
			labels = ?,
			keywords = ?,
			importance_score = ?,
			access_count = ?,
			update_count = ?,
			updated_at = ?
		WHERE id = ?
	`, labels, keywords, primary.ImportanceScore, primary.AccessCount,
		primary.UpdateCount, primary.UpdatedAt.UTC(), primary.ID)
	if err != nil {
		return fmt.Errorf("failed to apply merge: %w", err)
	}
	return requireRow(res, primary.ID)
}

// Deactivate soft-deletes a memory entry.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET is_active = 0, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate memory: %w", err)
	}
	return requireRow(res, id)
}

// IncrementAccessCount atomically bumps the usage counter.
func (s *Store) IncrementAccessCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment access count: %w", err)
	}
	return requireRow(res, id)
}

// ReplaceForMemory replaces all facts owned by a memory in one transaction.
func (s *Store) ReplaceForMemory(ctx context.Context, memoryID string, facts []types.AtomicFact) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM atomic_facts WHERE memory_entry_id = ?`, memoryID); err != nil {
		return fmt.Errorf("failed to clear facts: %w", err)
	}

	for _, f := range facts {
		if !f.FactType.Valid() {
			return fmt.Errorf("%w: invalid fact type %q", storage.ErrInvalidInput, f.FactType)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO atomic_facts (id, memory_entry_id, fact_type, content, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ID, memoryID, string(f.FactType), f.Content, f.Confidence, f.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert fact: %w", err)
		}
	}

	return tx.Commit()
}

// ListByMemory returns the facts owned by a memory, oldest first.
func (s *Store) ListByMemory(ctx context.Context, memoryID string) ([]types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_entry_id, fact_type, content, confidence, created_at
		FROM atomic_facts WHERE memory_entry_id = ?
		ORDER BY created_at ASC, id ASC
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var out []types.AtomicFact
	for rows.Next() {
		var f types.AtomicFact
		var factType string
		var createdAt time.Time
		if err := rows.Scan(&f.ID, &f.MemoryEntryID, &factType, &f.Content, &f.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		parsed, err := types.ParseFactType(factType)
		if err != nil {
			return nil, fmt.Errorf("corrupt fact row %s: %w", f.ID, err)
		}
		f.FactType = parsed
		f.CreatedAt = createdAt
		out = append(out, f)
	}
	return out, rows.Err()
}

// Create inserts a relationship. Duplicate (source, target, type) edges are
// ignored so that re-detection stays idempotent.
func (s *Store) Create(ctx context.Context, rel *types.MemoryRelationship) error {
	if rel == nil || rel.SourceMemoryID == "" || rel.TargetMemoryID == "" {
		return fmt.Errorf("%w: source and target memory IDs are required", storage.ErrInvalidInput)
	}
	if !rel.Type.Valid() {
		return fmt.Errorf("%w: invalid relationship type %q", storage.ErrInvalidInput, rel.Type)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_relationships (
			id, source_memory_id, target_memory_id, relationship_type,
			strength, confidence, context, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_memory_id, target_memory_id, relationship_type) DO NOTHING
	`, rel.ID, rel.SourceMemoryID, rel.TargetMemoryID, string(rel.Type),
		rel.Strength, rel.Confidence, nullableString(rel.Context), rel.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	return nil
}

// ListBySource returns relationships originating from a memory.
func (s *Store) ListBySource(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	return s.queryRelationships(ctx, `
		SELECT id, source_memory_id, target_memory_id, relationship_type,
			strength, confidence, context, created_at
		FROM memory_relationships WHERE source_memory_id = ?
		ORDER BY created_at ASC, id ASC
	`, memoryID)
}

// ListForMemory returns relationships touching a memory in either direction.
func (s *Store) ListForMemory(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	return s.queryRelationships(ctx, `
		SELECT id, source_memory_id, target_memory_id, relationship_type,
			strength, confidence, context, created_at
		FROM memory_relationships
		WHERE source_memory_id = ? OR target_memory_id = ?
		ORDER BY created_at ASC, id ASC
	`, memoryID, memoryID)
}

func (s *Store) queryRelationships(ctx context.Context, query string, args ...interface{}) ([]types.MemoryRelationship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var out []types.MemoryRelationship
	for rows.Next() {
		var rel types.MemoryRelationship
		var relType string
		var contextText sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&rel.ID, &rel.SourceMemoryID, &rel.TargetMemoryID, &relType,
			&rel.Strength, &rel.Confidence, &contextText, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		parsed, err := types.ParseRelationshipType(relType)
		if err != nil {
			return nil, fmt.Errorf("corrupt relationship row %s: %w", rel.ID, err)
		}
		rel.Type = parsed
		rel.Context = contextText.String
		rel.CreatedAt = createdAt
		out = append(out, rel)
	}
	return out, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanMemory.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (*types.MemoryEntry, error) {
	var mem types.MemoryEntry
	var category string
	var semanticHash, labels, keywords sql.NullString
	var isActive int
	var createdAt, updatedAt time.Time

	err := row.Scan(&mem.ID, &mem.UserID, &mem.Content, &category, &mem.ImportanceScore,
		&mem.AccessCount, &mem.UpdateCount, &semanticHash, &labels, &keywords,
		&isActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := types.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("corrupt memory row %s: %w", mem.ID, err)
	}
	mem.Category = parsed
	mem.SemanticHash = semanticHash.String
	mem.IsActive = isActive != 0
	mem.CreatedAt = createdAt
	mem.UpdatedAt = updatedAt

	if mem.Labels, err = unmarshalStringSet(labels); err != nil {
		return nil, fmt.Errorf("corrupt labels for %s: %w", mem.ID, err)
	}
	if mem.Keywords, err = unmarshalStringSet(keywords); err != nil {
		return nil, fmt.Errorf("corrupt keywords for %s: %w", mem.ID, err)
	}
	return &mem, nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func marshalStringSet(set []string) (sql.NullString, error) {
	if len(set) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalStringSet(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
