package store

import (
	"context"
	"database/sql"
)

const statusRecentEventLimit = 20

// Status composes the full status snapshot: the project row, the
// active (or most recent) session, per-source heartbeats, the most
// recent events in reverse-chronological order, the last revert
// event, the count of dirty files, and measured storage usage.
func (s *Store) Status(ctx context.Context) (*StatusSnapshot, error) {
	project, err := s.loadProject(ctx)
	if err != nil {
		return nil, err
	}

	session, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = s.MostRecentSession(ctx)
		if err != nil {
			return nil, err
		}
	}

	var sourceStatuses []SourceStatusRow
	if session != nil {
		sourceStatuses, err = s.SourceStatuses(ctx, session.ID)
		if err != nil {
			return nil, err
		}
	}

	recentEvents, err := s.ListRecentEvents(ctx, statusRecentEventLimit)
	if err != nil {
		return nil, err
	}

	lastRevert, err := s.lastRevertEvent(ctx)
	if err != nil {
		return nil, err
	}

	dirtyCount, err := s.DirtyFileCount(ctx)
	if err != nil {
		return nil, err
	}

	used, err := s.DiskUsage()
	if err != nil {
		return nil, err
	}
	project.StorageUsedBytes = used

	return &StatusSnapshot{
		Project:          *project,
		ActiveSession:    session,
		SourceStatuses:   sourceStatuses,
		RecentEvents:     recentEvents,
		LastRevert:       lastRevert,
		DirtyFileCount:   dirtyCount,
		StorageUsedBytes: used,
	}, nil
}

func (s *Store) loadProject(ctx context.Context) (*Project, error) {
	var p Project
	var activeSessionID sql.NullInt64
	var recorderPID sql.NullInt64
	var deletedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT path, display_name, recording_state, active_session_id, recorder_pid,
			storage_cap_bytes, storage_used_bytes, deleted_at
		FROM project WHERE id = 1`).
		Scan(&p.Path, &p.DisplayName, &p.RecordingState, &activeSessionID, &recorderPID,
			&p.StorageCapBytes, &p.StorageUsedBytes, &deletedAt)
	if err != nil {
		return nil, err
	}

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
	return &p, nil
}

func (s *Store) lastRevertEvent(ctx context.Context) (*Event, error) {
	row := s.db.QueryRowContext(ctx, eventSelectCols+` WHERE event_type = ? ORDER BY created_at DESC, id DESC LIMIT 1`, EventRevert)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// SetRecorderPID records the OS pid of the Recorder process currently
// holding this project, or clears it when pid is 0.
func (s *Store) SetRecorderPID(ctx context.Context, pid int) error {
	if pid == 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE project SET recorder_pid = NULL WHERE id = 1`)
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE project SET recorder_pid = ? WHERE id = 1`, pid)
	return err
}

// SetDisplayName sets the project's human-readable name.
func (s *Store) SetDisplayName(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE project SET display_name = ? WHERE id = 1`, name)
	return err
}
