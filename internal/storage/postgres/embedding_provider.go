package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
)

// EmbeddingProvider implements storage.EmbeddingProvider using PostgreSQL.
// It backs the non-fast-path deep extraction pipeline: the local heuristic
// engines never touch embeddings.
type EmbeddingProvider struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewEmbeddingProvider creates a new PostgreSQL embedding provider.
// pgvectorAvailable indicates whether the pgvector extension is installed and
// the embedding_vec column exists.
func NewEmbeddingProvider(db *sql.DB, pgvectorAvailable bool) *EmbeddingProvider {
	return &EmbeddingProvider{db: db, pgvectorAvailable: pgvectorAvailable}
}

// StoreEmbedding stores a vector embedding for a memory.
// The embedding is always stored in the binary BYTEA column; when pgvector is
// available it is also stored in embedding_vec for distance queries.
func (p *EmbeddingProvider) StoreEmbedding(ctx context.Context, memoryID string, embedding []float32, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	raw, err := serializeEmbedding(embedding)
	if err != nil {
		return fmt.Errorf("postgres: failed to serialize embedding: %w", err)
	}

	if p.pgvectorAvailable {
		vec := pgvector.NewVector(embedding)
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO embeddings (memory_id, embedding, dimension, model, embedding_vec, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			ON CONFLICT(memory_id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				dimension = EXCLUDED.dimension,
				model = EXCLUDED.model,
				embedding_vec = EXCLUDED.embedding_vec,
				updated_at = NOW()
		`, memoryID, raw, len(embedding), model, vec)
	} else {
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO embeddings (memory_id, embedding, dimension, model, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT(memory_id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				dimension = EXCLUDED.dimension,
				model = EXCLUDED.model,
				updated_at = NOW()
		`, memoryID, raw, len(embedding), model)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding retrieves the embedding for a memory.
func (p *EmbeddingProvider) GetEmbedding(ctx context.Context, memoryID string) ([]float32, error) {
	var raw []byte
	var dimension int
	err := p.db.QueryRowContext(ctx, `
		SELECT embedding, dimension FROM embeddings WHERE memory_id = $1
	`, memoryID).Scan(&raw, &dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for %s: %w", memoryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get embedding: %w", err)
	}
	return deserializeEmbedding(raw, dimension)
}

// NearestByEmbedding returns up to limit memory IDs ordered by cosine
// distance. Requires the pgvector extension.
func (p *EmbeddingProvider) NearestByEmbedding(ctx context.Context, embedding []float32, limit int) ([]string, error) {
	if !p.pgvectorAvailable {
		return nil, fmt.Errorf("%w: pgvector extension not available", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)
	rows, err := p.db.QueryContext(ctx, `
		SELECT memory_id FROM embeddings
		WHERE embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan memory id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// serializeEmbedding encodes an embedding as little-endian float32 bytes.
func serializeEmbedding(embedding []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding contains non-finite value")
		}
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// deserializeEmbedding decodes little-endian float32 bytes.
func deserializeEmbedding(raw []byte, dimension int) ([]float32, error) {
	if len(raw) != dimension*4 {
		return nil, fmt.Errorf("embedding size mismatch: %d bytes for dimension %d", len(raw), dimension)
	}
	out := make([]float32, dimension)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &out); err != nil {
		return nil, err
	}
	return out, nil
}
