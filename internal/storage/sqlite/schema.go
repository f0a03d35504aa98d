package sqlite

// Schema contains the complete SQLite schema for the memory core.
// All statements are idempotent (IF NOT EXISTS) so the schema can be applied
// on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	importance_score REAL NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 0,
	update_count INTEGER NOT NULL DEFAULT 0,
	semantic_hash TEXT,
	labels TEXT,
	keywords TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
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
	confidence REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_memory
	ON atomic_facts(memory_entry_id);

CREATE TABLE IF NOT EXISTS memory_relationships (
	id TEXT PRIMARY KEY,
	source_memory_id TEXT NOT NULL REFERENCES memories(id),
	target_memory_id TEXT NOT NULL REFERENCES memories(id),
	relationship_type TEXT NOT NULL,
	strength REAL NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 0,
	context TEXT,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(source_memory_id, target_memory_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source
	ON memory_relationships(source_memory_id);

CREATE INDEX IF NOT EXISTS idx_relationships_target
	ON memory_relationships(target_memory_id);
`
