package store

import (
	"context"
	"database/sql"
)

// AdapterOffset returns the last recorded byte offset for a
// (session, adapter, log path) triple, or 0 if none is recorded yet.
func (s *Store) AdapterOffset(ctx context.Context, sessionID int64, adapter, logPath string) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx, `
		SELECT byte_offset FROM adapter_offset WHERE session_id = ? AND adapter = ? AND log_path = ?`,
		sessionID, adapter, logPath).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return offset, err
}

// SetAdapterOffset records how far the Recorder has tailed an
// adapter's log file, so a restart resumes rather than re-reads.
func (s *Store) SetAdapterOffset(ctx context.Context, sessionID int64, adapter, logPath string, offset int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adapter_offset (session_id, adapter, log_path, byte_offset)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, adapter, log_path) DO UPDATE SET byte_offset = excluded.byte_offset`,
		sessionID, adapter, logPath, offset)
	return err
}
