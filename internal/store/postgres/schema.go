// Package postgres implements store.Store on top of PostgreSQL with
// tsvector full-text search. When the pgvector extension loads, embeddings
// of 128 dimensions are also written to a vector column with an ivfflat
// index; no query in this package reads that column, and vector search is
// done by the engine over AllEmbeddings, as with the sqlite backend.
package postgres

// Schema creates every table and index the store needs. All
// statements are idempotent so it can be re-run against an
// already-initialized database at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS knowledge_nodes (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	summary TEXT,

	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,

	source_type TEXT NOT NULL,
	source_platform TEXT,
	source_id TEXT,
	source_url TEXT,
	source_chain JSONB NOT NULL DEFAULT '[]',

	stability DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	difficulty DOUBLE PRECISION NOT NULL DEFAULT 5.0,
	state TEXT NOT NULL DEFAULT 'New',
	last_review TIMESTAMPTZ,
	next_review TIMESTAMPTZ,
	reps INTEGER NOT NULL DEFAULT 0,
	lapses INTEGER NOT NULL DEFAULT 0,

	storage_strength DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	retrieval_strength DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	retention_strength DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	stability_factor DOUBLE PRECISION NOT NULL DEFAULT 1.0,

	sentiment_intensity DOUBLE PRECISION NOT NULL DEFAULT 0.0,

	confidence DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	is_contradicted BOOLEAN NOT NULL DEFAULT FALSE,
	contradiction_ids JSONB NOT NULL DEFAULT '[]',

	tags JSONB NOT NULL DEFAULT '[]',
	people JSONB NOT NULL DEFAULT '[]',
	concepts JSONB NOT NULL DEFAULT '[]',
	events JSONB NOT NULL DEFAULT '[]',

	git_branch TEXT,
	git_commit TEXT,
	git_uncommitted JSONB NOT NULL DEFAULT '[]',

	content_tsv tsvector
);

CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON knowledge_nodes(created_at);
CREATE INDEX IF NOT EXISTS idx_nodes_last_accessed_at ON knowledge_nodes(last_accessed_at);
CREATE INDEX IF NOT EXISTS idx_nodes_retention_strength ON knowledge_nodes(retention_strength);
CREATE INDEX IF NOT EXISTS idx_nodes_next_review ON knowledge_nodes(next_review);
CREATE INDEX IF NOT EXISTS idx_nodes_state ON knowledge_nodes(state);
CREATE INDEX IF NOT EXISTS idx_nodes_content_tsv ON knowledge_nodes USING GIN(content_tsv);

CREATE OR REPLACE FUNCTION knowledge_nodes_tsv_update() RETURNS TRIGGER AS $$
BEGIN
	NEW.content_tsv := to_tsvector('english', COALESCE(NEW.content, '') || ' ' || COALESCE(NEW.summary, ''));
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS knowledge_nodes_tsv_trigger ON knowledge_nodes;
CREATE TRIGGER knowledge_nodes_tsv_trigger
	BEFORE INSERT OR UPDATE OF content, summary
	ON knowledge_nodes
	FOR EACH ROW
	EXECUTE FUNCTION knowledge_nodes_tsv_update();

CREATE TABLE IF NOT EXISTS embeddings (
	node_id TEXT PRIMARY KEY REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
	embedding BYTEA NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	weight DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(from_id, to_id, edge_type)
);

CREATE INDEX IF NOT EXISTS idx_edges_from_id ON graph_edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to_id ON graph_edges(to_id);
CREATE INDEX IF NOT EXISTS idx_edges_edge_type ON graph_edges(edge_type);

CREATE TABLE IF NOT EXISTS people (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	aliases JSONB NOT NULL DEFAULT '[]',
	relationship_type TEXT,
	organization TEXT,
	role TEXT,
	location TEXT,
	socials JSONB NOT NULL DEFAULT '{}',
	contact_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
	relationship_health DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	shared_topics JSONB NOT NULL DEFAULT '[]',
	shared_projects JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS intentions (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	trigger_kind TEXT NOT NULL,
	trigger_data JSONB NOT NULL DEFAULT '{}',
	priority TEXT NOT NULL DEFAULT 'normal',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	deadline TIMESTAMPTZ,
	fulfilled_at TIMESTAMPTZ,
	reminder_count INTEGER NOT NULL DEFAULT 0,
	tags JSONB NOT NULL DEFAULT '[]',
	related_memories JSONB NOT NULL DEFAULT '[]',
	source TEXT NOT NULL DEFAULT 'api',
	snoozed_until TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS vestige_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// MigrationPgvector adds an embedding_vec column and an ivfflat index,
// applied only when the pgvector extension loads successfully. Modeled on
// the two-tier BYTEA + vector storage used elsewhere in the pack so vector
// search degrades gracefully when the extension is absent.
const MigrationPgvector = `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_name = 'embeddings' AND column_name = 'embedding_vec'
	) THEN
		ALTER TABLE embeddings ADD COLUMN embedding_vec vector(128);
	END IF;
END
$$;

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes WHERE indexname = 'idx_embeddings_vec_cosine'
	) THEN
		IF EXISTS (SELECT 1 FROM embeddings LIMIT 1) THEN
			EXECUTE 'CREATE INDEX idx_embeddings_vec_cosine ON embeddings USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)';
		END IF;
	END IF;
END$$;
`
