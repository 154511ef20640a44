package sqlite

// Schema creates every table, index and FTS5 trigger the store needs
//. It is idempotent (IF NOT EXISTS throughout) so it can be
// re-run against an already-initialized database at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS knowledge_nodes (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	summary TEXT,

	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,

	source_type TEXT NOT NULL,
	source_platform TEXT,
	source_id TEXT,
	source_url TEXT,
	source_chain TEXT NOT NULL DEFAULT '[]',

	stability REAL NOT NULL DEFAULT 1.0,
	difficulty REAL NOT NULL DEFAULT 5.0,
	state TEXT NOT NULL DEFAULT 'New',
	last_review TIMESTAMP,
	next_review TIMESTAMP,
	reps INTEGER NOT NULL DEFAULT 0,
	lapses INTEGER NOT NULL DEFAULT 0,

	storage_strength REAL NOT NULL DEFAULT 1.0,
	retrieval_strength REAL NOT NULL DEFAULT 1.0,
	retention_strength REAL NOT NULL DEFAULT 1.0,
	stability_factor REAL NOT NULL DEFAULT 1.0,

	sentiment_intensity REAL NOT NULL DEFAULT 0.0,

	confidence REAL NOT NULL DEFAULT 0.8,
	is_contradicted INTEGER NOT NULL DEFAULT 0,
	contradiction_ids TEXT NOT NULL DEFAULT '[]',

	tags TEXT NOT NULL DEFAULT '[]',
	people TEXT NOT NULL DEFAULT '[]',
	concepts TEXT NOT NULL DEFAULT '[]',
	events TEXT NOT NULL DEFAULT '[]',

	git_branch TEXT,
	git_commit TEXT,
	git_uncommitted TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON knowledge_nodes(created_at);
CREATE INDEX IF NOT EXISTS idx_nodes_last_accessed_at ON knowledge_nodes(last_accessed_at);
CREATE INDEX IF NOT EXISTS idx_nodes_retention_strength ON knowledge_nodes(retention_strength);
CREATE INDEX IF NOT EXISTS idx_nodes_next_review ON knowledge_nodes(next_review);
CREATE INDEX IF NOT EXISTS idx_nodes_state ON knowledge_nodes(state);

CREATE TABLE IF NOT EXISTS embeddings (
	node_id TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (node_id) REFERENCES knowledge_nodes(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 0.5,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	UNIQUE(from_id, to_id, edge_type)
);

CREATE INDEX IF NOT EXISTS idx_edges_from_id ON graph_edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to_id ON graph_edges(to_id);
CREATE INDEX IF NOT EXISTS idx_edges_edge_type ON graph_edges(edge_type);

CREATE TABLE IF NOT EXISTS people (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	aliases TEXT NOT NULL DEFAULT '[]',
	relationship_type TEXT,
	organization TEXT,
	role TEXT,
	location TEXT,
	socials TEXT NOT NULL DEFAULT '{}',
	contact_frequency REAL NOT NULL DEFAULT 0,
	relationship_health REAL NOT NULL DEFAULT 0.5,
	shared_topics TEXT NOT NULL DEFAULT '[]',
	shared_projects TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS intentions (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	trigger_kind TEXT NOT NULL,
	trigger_data TEXT NOT NULL DEFAULT '{}',
	priority TEXT NOT NULL DEFAULT 'normal',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL,
	deadline TIMESTAMP,
	fulfilled_at TIMESTAMP,
	reminder_count INTEGER NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	related_memories TEXT NOT NULL DEFAULT '[]',
	source TEXT NOT NULL DEFAULT 'api',
	snoozed_until TIMESTAMP
);

CREATE TABLE IF NOT EXISTS vestige_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

-- Full-text mirror of (id, content, summary, tags); kept in sync with
-- knowledge_nodes by the triggers below.
CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
	id UNINDEXED,
	content,
	summary,
	tags,
	tokenize = 'unicode61'
);

CREATE TRIGGER IF NOT EXISTS nodes_fts_insert AFTER INSERT ON knowledge_nodes BEGIN
	INSERT INTO nodes_fts(id, content, summary, tags) VALUES (new.id, new.content, new.summary, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_update AFTER UPDATE ON knowledge_nodes BEGIN
	DELETE FROM nodes_fts WHERE id = old.id;
	INSERT INTO nodes_fts(id, content, summary, tags) VALUES (new.id, new.content, new.summary, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_delete AFTER DELETE ON knowledge_nodes BEGIN
	DELETE FROM nodes_fts WHERE id = old.id;
END;
`
