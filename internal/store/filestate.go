package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ApplyFileTransition runs the file transition state machine for one
// observed (path, newHash) pair. newHash of DeletedHash represents a
// deletion. It returns the inserted (or matched) event id, or 0 with
// a nil error if the hash is unchanged and no event was produced.
//
// A path with no existing FileState row is synthesized as
// current=baseline=DeletedHash before the transition runs, which is
// correct for a path genuinely new to the project (it didn't exist,
// now it does). Paths that already existed when recording started
// must go through SeedFileState first so their baseline is the hash
// at first observation, not this deletion sentinel.
func (s *Store) ApplyFileTransition(ctx context.Context, sessionID int64, source, rawPath, newHash string) (int64, error) {
	path := s.sanitizePath(rawPath)
	if path == "" {
		return 0, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	if err := s.enforceQuota(ctx); err != nil {
		return 0, err
	}

	var eventID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadOrSynthesizeFileState(tx, path)
		if err != nil {
			return err
		}

		if newHash == current.CurrentHash {
			return nil // no-op: no event
		}

		isRevert, err := hasHashHistory(tx, path, newHash)
		if err != nil {
			return err
		}

		summary := transitionSummary(path, isRevert, newHash == current.BaselineHash)

		var revertedEventID *int64
		if isRevert && current.LastEventID != nil {
			revertedEventID = current.LastEventID
		}

		now := time.Now()
		filesJSON := `["` + path + `"]`
		fp := fingerprint(eventTypeFor(isRevert), summary, []string{path}, current.CurrentHash, newHash, revertedEventID, true)

		res, err := tx.Exec(`
			INSERT INTO event (session_id, event_type, summary, files_touched, before_hash, after_hash,
				reverted_event_id, is_effective, source, fingerprint, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
			sessionID, eventTypeFor(isRevert), summary, filesJSON, current.CurrentHash, newHash,
			revertedEventID, source, fp, formatTime(now), formatTime(now))
		if err != nil {
			return err
		}
		eventID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if isRevert && current.LastEventID != nil {
			if _, err := tx.Exec(`UPDATE event SET is_effective = 0, reverted_by_event_id = ? WHERE id = ?`,
				eventID, *current.LastEventID); err != nil {
				return err
			}
		}

		isClean := newHash == current.BaselineHash
		if _, err := tx.Exec(`
			INSERT INTO file_state (path, current_hash, baseline_hash, last_event_id, is_clean)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET current_hash = excluded.current_hash,
				last_event_id = excluded.last_event_id, is_clean = excluded.is_clean`,
			path, newHash, current.BaselineHash, eventID, boolToInt(isClean)); err != nil {
			return err
		}

		nowStr := formatTime(now)
		if _, err := tx.Exec(`
			INSERT INTO file_hash_history (path, hash, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path, hash) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
			path, newHash, nowStr, nowStr); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if eventID != 0 {
		if ev, err := s.GetEvent(ctx, eventID); err == nil {
			_ = s.appendToLog(ev)
		}
	}

	return eventID, nil
}

// SeedFileState records a batch of observed (path, hash) pairs as the
// baseline for paths with no existing file_state row, without
// producing any event. This is how the Recorder's first filesystem
// poll establishes "hash at first observation" as baseline_hash
// instead of treating pre-existing files as having changed from a
// synthesized __deleted__ state.
func (s *Store) SeedFileState(ctx context.Context, snapshot map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		for rawPath, hash := range snapshot {
			path := s.sanitizePath(rawPath)
			if path == "" {
				continue
			}
			if _, err := tx.Exec(`
				INSERT INTO file_state (path, current_hash, baseline_hash, last_event_id, is_clean)
				VALUES (?, ?, ?, NULL, 1)
				ON CONFLICT(path) DO NOTHING`,
				path, hash, hash); err != nil {
				return err
			}
			if _, err := tx.Exec(`
				INSERT INTO file_hash_history (path, hash, first_seen_at, last_seen_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(path, hash) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
				path, hash, now, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func eventTypeFor(isRevert bool) string {
	if isRevert {
		return EventRevert
	}
	return EventCodeChange
}

func transitionSummary(path string, isRevert, matchesBaseline bool) string {
	switch {
	case isRevert && matchesBaseline:
		return fmt.Sprintf("%s returned to baseline.", path)
	case isRevert:
		return fmt.Sprintf("%s returned to a previous state.", path)
	default:
		return fmt.Sprintf("File changed: %s.", path)
	}
}

func loadOrSynthesizeFileState(tx *sql.Tx, path string) (*FileState, error) {
	var fs FileState
	var lastEventID sql.NullInt64
	var isClean int

	err := tx.QueryRow(`SELECT path, current_hash, baseline_hash, last_event_id, is_clean FROM file_state WHERE path = ?`, path).
		Scan(&fs.Path, &fs.CurrentHash, &fs.BaselineHash, &lastEventID, &isClean)
	if err == sql.ErrNoRows {
		return &FileState{Path: path, CurrentHash: DeletedHash, BaselineHash: DeletedHash, IsClean: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if lastEventID.Valid {
		v := lastEventID.Int64
		fs.LastEventID = &v
	}
	fs.IsClean = isClean != 0
	return &fs, nil
}

func hasHashHistory(tx *sql.Tx, path, hash string) (bool, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM file_hash_history WHERE path = ? AND hash = ?`, path, hash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetFileState loads the current FileState for a path, if any.
func (s *Store) GetFileState(ctx context.Context, rawPath string) (*FileState, error) {
	path := s.sanitizePath(rawPath)
	var fs FileState
	var lastEventID sql.NullInt64
	var isClean int

	err := s.db.QueryRowContext(ctx, `SELECT path, current_hash, baseline_hash, last_event_id, is_clean FROM file_state WHERE path = ?`, path).
		Scan(&fs.Path, &fs.CurrentHash, &fs.BaselineHash, &lastEventID, &isClean)
	if err != nil {
		return nil, err
	}
	if lastEventID.Valid {
		v := lastEventID.Int64
		fs.LastEventID = &v
	}
	fs.IsClean = isClean != 0
	return &fs, nil
}

// DirtyFileCount counts files whose current hash differs from baseline.
func (s *Store) DirtyFileCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_state WHERE is_clean = 0`).Scan(&n)
	return n, err
}
