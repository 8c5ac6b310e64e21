// Package registry implements the process-wide, cross-project index:
// which projects ctx-agent knows about, whether each is currently
// recording, and which adapter log paths feed its Recorder.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo
)

// Registry wraps the registry.db SQLite database and the home
// directory it and its config.toml mirror live in.
type Registry struct {
	db   *sql.DB
	home string
}

// Open opens (creating if needed) the Registry database at
// <home>/registry.db.
func Open(home string) (*Registry, error) {
	if err := os.MkdirAll(home, 0o750); err != nil {
		return nil, fmt.Errorf("creating registry home: %w", err)
	}

	dbPath := filepath.Join(home, "registry.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging registry: %w", err)
	}

	r := &Registry{db: db, home: home}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating registry: %w", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	if _, err := r.db.Exec(schemaDDL); err != nil {
		return err
	}
	var applied int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, schemaVersion).Scan(&applied); err != nil {
		return err
	}
	if applied == 0 {
		_, err := r.db.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES (?, ?)`, schemaVersion, formatTime(time.Now()))
		return err
	}
	return nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	_, _ = r.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return r.db.Close()
}

// Upsert registers a project path, optionally renaming its display
// name. An empty displayName never clears a present one.
func (r *Registry) Upsert(path, displayName string) (*Project, error) {
	now := formatTime(time.Now())

	existing, err := r.Get(path)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if existing != nil {
		name := existing.DisplayName
		if displayName != "" {
			name = displayName
		}
		if _, err := r.db.Exec(`UPDATE projects SET display_name = ?, deleted_at = NULL, updated_at = ? WHERE path = ?`,
			name, now, path); err != nil {
			return nil, err
		}
		return r.Get(path)
	}

	if _, err := r.db.Exec(`
		INSERT INTO projects (path, display_name, recording_state, updated_at)
		VALUES (?, ?, ?, ?)`, path, displayName, RecordingStopped, now); err != nil {
		return nil, err
	}
	return r.Get(path)
}

// Get loads a single project by path.
func (r *Registry) Get(path string) (*Project, error) {
	row := r.db.QueryRow(`
		SELECT path, display_name, recording_state, active_session_id, recorder_pid, deleted_at, updated_at
		FROM projects WHERE path = ?`, path)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns all projects, optionally including deleted ones.
func (r *Registry) List(includeDeleted bool) ([]Project, error) {
	query := `SELECT path, display_name, recording_state, active_session_id, recorder_pid, deleted_at, updated_at FROM projects`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY path`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindByDisplayName returns every non-deleted project whose display
// name matches exactly. Ambiguity (more than one match) is surfaced
// to the caller as ErrAmbiguousName alongside the full match list.
func (r *Registry) FindByDisplayName(name string) ([]Project, error) {
	rows, err := r.db.Query(`
		SELECT path, display_name, recording_state, active_session_id, recorder_pid, deleted_at, updated_at
		FROM projects WHERE display_name = ? AND deleted_at IS NULL ORDER BY path`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) > 1 {
		return out, ErrAmbiguousName
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SetRecordingState updates a project's recording state along with
// its active session id and recorder pid. sessionID and pid are
// ignored (set NULL/0) when state is stopped.
func (r *Registry) SetRecordingState(path, state string, sessionID int64, pid int) error {
	now := formatTime(time.Now())
	if state == RecordingStopped {
		_, err := r.db.Exec(`
			UPDATE projects SET recording_state = ?, active_session_id = NULL, recorder_pid = NULL, updated_at = ?
			WHERE path = ?`, state, now, path)
		return err
	}

	var sessionArg any
	if sessionID != 0 {
		sessionArg = sessionID
	}
	var pidArg any
	if pid != 0 {
		pidArg = pid
	}

	_, err := r.db.Exec(`
		UPDATE projects SET recording_state = ?, active_session_id = ?, recorder_pid = ?, updated_at = ?
		WHERE path = ?`, state, sessionArg, pidArg, now, path)
	return err
}

// SetAdapterLogPath configures (or reconfigures) one adapter's log
// path for a project, then rewrites the TOML mirror.
func (r *Registry) SetAdapterLogPath(path, adapter, logPath string) error {
	if !AllowedAdapters[adapter] {
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, adapter)
	}

	if _, err := r.db.Exec(`
		INSERT INTO adapters (project_path, name, log_path) VALUES (?, ?, ?)
		ON CONFLICT(project_path, name) DO UPDATE SET log_path = excluded.log_path`,
		path, adapter, logPath); err != nil {
		return err
	}

	return r.writeConfigMirror()
}

// AdapterMap returns the configured adapter name → log path map for
// one project.
func (r *Registry) AdapterMap(path string) (map[string]string, error) {
	rows, err := r.db.Query(`SELECT name, log_path FROM adapters WHERE project_path = ?`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, logPath string
		if err := rows.Scan(&name, &logPath); err != nil {
			return nil, err
		}
		out[name] = logPath
	}
	return out, rows.Err()
}

// SetDeleted marks a project deleted: forces recording_state to
// stopped and clears its session/pid.
func (r *Registry) SetDeleted(path string) error {
	now := formatTime(time.Now())
	_, err := r.db.Exec(`
		UPDATE projects SET deleted_at = ?, recording_state = ?, active_session_id = NULL, recorder_pid = NULL, updated_at = ?
		WHERE path = ?`, now, RecordingStopped, now, path)
	return err
}

// ClearDeleted removes a project's deleted marker.
func (r *Registry) ClearDeleted(path string) error {
	_, err := r.db.Exec(`UPDATE projects SET deleted_at = NULL, updated_at = ? WHERE path = ?`, formatTime(time.Now()), path)
	return err
}

// Remove permanently deletes a project's row and adapter config.
func (r *Registry) Remove(path string) error {
	if _, err := r.db.Exec(`DELETE FROM adapters WHERE project_path = ?`, path); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM projects WHERE path = ?`, path); err != nil {
		return err
	}
	return r.writeConfigMirror()
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var activeSessionID sql.NullInt64
	var recorderPID sql.NullInt64
	var deletedAt sql.NullString
	var updatedAt string

	err := row.Scan(&p.Path, &p.DisplayName, &p.RecordingState, &activeSessionID, &recorderPID, &deletedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return finishProjectScan(&p, activeSessionID, recorderPID, deletedAt, updatedAt)
}

func scanProjectRows(rows *sql.Rows) (*Project, error) {
	var p Project
	var activeSessionID sql.NullInt64
	var recorderPID sql.NullInt64
	var deletedAt sql.NullString
	var updatedAt string

	err := rows.Scan(&p.Path, &p.DisplayName, &p.RecordingState, &activeSessionID, &recorderPID, &deletedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return finishProjectScan(&p, activeSessionID, recorderPID, deletedAt, updatedAt)
}

func finishProjectScan(p *Project, activeSessionID, recorderPID sql.NullInt64, deletedAt sql.NullString, updatedAt string) (*Project, error) {
	if activeSessionID.Valid {
		v := activeSessionID.Int64
		p.ActiveSessionID = &v
	}
	if recorderPID.Valid {
		v := int(recorderPID.Int64)
		p.RecorderPID = &v
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		p.DeletedAt = &t
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = t
	return p, nil
}
