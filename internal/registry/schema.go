package registry

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	path TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	recording_state TEXT NOT NULL DEFAULT 'stopped',
	active_session_id INTEGER,
	recorder_pid INTEGER,
	deleted_at TEXT,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_display_name ON projects(display_name);

CREATE TABLE IF NOT EXISTS adapters (
	project_path TEXT NOT NULL REFERENCES projects(path),
	name TEXT NOT NULL,
	log_path TEXT NOT NULL,
	PRIMARY KEY (project_path, name)
);
`
