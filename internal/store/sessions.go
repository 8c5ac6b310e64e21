package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartSession opens a new running session for the given agent label,
// recording an external_session_ref if one is available (e.g. an
// adapter's own session id). The Store itself does not enforce the
// at-most-one-running-session invariant across processes — that's the
// Registry's job — but it does refuse to open a second running
// session within its own handle.
func (s *Store) StartSession(ctx context.Context, agentLabel, externalRef string) (*Session, error) {
	var sess Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var running int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM session WHERE state = ?`, SessionRunning).Scan(&running); err != nil {
			return err
		}
		if running > 0 {
			return fmt.Errorf("%w: a session is already running", ErrInvalidArgument)
		}

		now := time.Now()
		res, err := tx.Exec(`INSERT INTO session (agent_label, started_at, state, external_session_ref) VALUES (?, ?, ?, ?)`,
			agentLabel, formatTime(now), SessionRunning, nullableString(externalRef))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		sess = Session{ID: id, AgentLabel: agentLabel, StartedAt: now, State: SessionRunning, ExternalSessionRef: externalRef}

		_, err = tx.Exec(`UPDATE project SET recording_state = ?, active_session_id = ? WHERE id = 1`,
			RecordingRecording, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// StopSession transitions a running session to stopped and clears the
// project's active session pointer. It is idempotent: stopping an
// already-stopped session is a no-op.
func (s *Store) StopSession(ctx context.Context, sessionID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var state string
		if err := tx.QueryRow(`SELECT state FROM session WHERE id = ?`, sessionID).Scan(&state); err != nil {
			return err
		}
		if state == SessionStopped {
			return nil
		}

		now := formatTime(time.Now())
		if _, err := tx.Exec(`UPDATE session SET state = ?, stopped_at = ? WHERE id = ?`, SessionStopped, now, sessionID); err != nil {
			return err
		}

		_, err := tx.Exec(`
			UPDATE project SET recording_state = ?, active_session_id = NULL
			WHERE id = 1 AND active_session_id = ?`, RecordingStopped, sessionID)
		return err
	})
}

// ActiveSession returns the currently running session, or nil if none.
func (s *Store) ActiveSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_label, started_at, stopped_at, state, external_session_ref
		FROM session WHERE state = ? ORDER BY started_at DESC LIMIT 1`, SessionRunning)
	return scanSession(row)
}

// MostRecentSession returns the most recently started session of any
// state, or nil if none exist yet.
func (s *Store) MostRecentSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_label, started_at, stopped_at, state, external_session_ref
		FROM session ORDER BY started_at DESC LIMIT 1`)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var stoppedAt sql.NullString
	var startedAt string
	var externalRef sql.NullString

	err := row.Scan(&sess.ID, &sess.AgentLabel, &startedAt, &stoppedAt, &sess.State, &externalRef)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if stoppedAt.Valid {
		t, err := parseTime(stoppedAt.String)
		if err != nil {
			return nil, err
		}
		sess.StoppedAt = &t
	}
	sess.ExternalSessionRef = externalRef.String
	return &sess, nil
}

// RecordSourceStatus upserts a per-source heartbeat (adapter, vcs,
// filesystem) for a session.
func (s *Store) RecordSourceStatus(ctx context.Context, sessionID int64, sourceName, status, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_status (session_id, source_name, status, detail, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, source_name) DO UPDATE SET
			status = excluded.status, detail = excluded.detail, updated_at = excluded.updated_at`,
		sessionID, sourceName, status, detail, formatTime(time.Now()))
	return err
}

// SourceStatuses returns the heartbeats recorded for a session.
func (s *Store) SourceStatuses(ctx context.Context, sessionID int64) ([]SourceStatusRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, source_name, status, detail, updated_at
		FROM source_status WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceStatusRow
	for rows.Next() {
		var row SourceStatusRow
		var updatedAt string
		if err := rows.Scan(&row.SessionID, &row.SourceName, &row.Status, &row.Detail, &updatedAt); err != nil {
			return nil, err
		}
		if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
