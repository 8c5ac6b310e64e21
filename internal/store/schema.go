package store

// schemaVersion is bumped whenever the DDL below changes shape.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	path TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	recording_state TEXT NOT NULL DEFAULT 'stopped',
	active_session_id INTEGER,
	recorder_pid INTEGER,
	storage_cap_bytes INTEGER NOT NULL DEFAULT 524288000,
	storage_used_bytes INTEGER NOT NULL DEFAULT 0,
	deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_label TEXT NOT NULL,
	started_at TEXT NOT NULL,
	stopped_at TEXT,
	state TEXT NOT NULL DEFAULT 'running',
	external_session_ref TEXT
);

CREATE TABLE IF NOT EXISTS event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES session(id),
	event_type TEXT NOT NULL,
	summary TEXT NOT NULL,
	files_touched TEXT NOT NULL DEFAULT '[]',
	before_hash TEXT,
	after_hash TEXT,
	reverted_event_id INTEGER,
	reverted_by_event_id INTEGER,
	is_effective INTEGER NOT NULL DEFAULT 1,
	source TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_session ON event(session_id);
CREATE INDEX IF NOT EXISTS idx_event_fingerprint ON event(session_id, fingerprint, created_at);
CREATE INDEX IF NOT EXISTS idx_event_type ON event(event_type);

CREATE TABLE IF NOT EXISTS file_state (
	path TEXT PRIMARY KEY,
	current_hash TEXT NOT NULL,
	baseline_hash TEXT NOT NULL,
	last_event_id INTEGER,
	is_clean INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS file_hash_history (
	path TEXT NOT NULL,
	hash TEXT NOT NULL,
	first_seen_at TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	PRIMARY KEY (path, hash)
);

CREATE TABLE IF NOT EXISTS tool_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES event(id),
	tool_name TEXT NOT NULL,
	purpose TEXT,
	result TEXT
);

CREATE TABLE IF NOT EXISTS decision (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES event(id),
	summary TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rollup (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	period_start TEXT NOT NULL,
	period_end TEXT NOT NULL,
	summary TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS adapter_offset (
	session_id INTEGER NOT NULL,
	adapter TEXT NOT NULL,
	log_path TEXT NOT NULL,
	byte_offset INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, adapter, log_path)
);

CREATE TABLE IF NOT EXISTS source_status (
	session_id INTEGER NOT NULL,
	source_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'unknown',
	detail TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY (session_id, source_name)
);

CREATE TABLE IF NOT EXISTS feature (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
