package postgres

// Schema contains the base PostgreSQL schema for the memory core.
// All statements are idempotent so the schema can be applied on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	importance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 0,
	update_count INTEGER NOT NULL DEFAULT 0,
	semantic_hash TEXT,
	labels JSONB,
	keywords JSONB,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user_active
	ON memories(user_id, is_active);

CREATE INDEX IF NOT EXISTS idx_memories_semantic_hash
	ON memories(semantic_hash)
	WHERE semantic_hash IS NOT NULL;

CREATE TABLE IF NOT EXISTS atomic_facts (
	id TEXT PRIMARY KEY,
	memory_entry_id TEXT NOT NULL REFERENCES memories(id),
	fact_type TEXT NOT NULL,
	content TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_memory
	ON atomic_facts(memory_entry_id);

CREATE TABLE IF NOT EXISTS memory_relationships (
	id TEXT PRIMARY KEY,
	source_memory_id TEXT NOT NULL REFERENCES memories(id),
	target_memory_id TEXT NOT NULL REFERENCES memories(id),
	relationship_type TEXT NOT NULL,
	strength DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	context TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(source_memory_id, target_memory_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source
	ON memory_relationships(source_memory_id);

CREATE INDEX IF NOT EXISTS idx_relationships_target
	ON memory_relationships(target_memory_id);

CREATE TABLE IF NOT EXISTS embeddings (
	memory_id TEXT PRIMARY KEY REFERENCES memories(id),
	embedding BYTEA NOT NULL,
	dimension INTEGER NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// MigrationPgvector adds the native vector column used for distance queries.
// Applied only when the pgvector extension is available.
const MigrationPgvector = `
ALTER TABLE embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector(768);

CREATE INDEX IF NOT EXISTS idx_embeddings_vec
	ON embeddings USING ivfflat (embedding_vec vector_cosine_ops);
`
