package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const maxSummaryLen = 500

// dedupWindow is the interval within which two events from the same
// session carrying the same fingerprint collapse into a single row.
const dedupWindow = 30 * time.Second

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeSummary collapses interior whitespace runs, trims, and
// truncates to maxSummaryLen.
func normalizeSummary(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	if len(s) > maxSummaryLen {
		s = s[:maxSummaryLen]
	}
	return s
}

// sanitizePath implements the path sanitization rule: an absolute
// path is stored as a POSIX absolute path; a relative path is
// resolved against the project root, and if the result stays inside
// the root it's stored as a POSIX path relative to the root,
// otherwise it's stored as the raw POSIX path.
func (s *Store) sanitizePath(raw string) string {
	if raw == "" {
		return ""
	}

	posixRaw := filepath.ToSlash(raw)

	if filepath.IsAbs(raw) {
		return posixRaw
	}

	root := filepath.Clean(s.projectRoot)
	resolved := filepath.Clean(filepath.Join(root, raw))

	rel, err := filepath.Rel(root, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return posixRaw
	}
	return filepath.ToSlash(rel)
}

// sanitizeAndDedupeFiles sanitizes every path, then returns a sorted,
// deduplicated list per the path canonicalization law.
func (s *Store) sanitizeAndDedupeFiles(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	files := make([]string, 0, len(raw))
	for _, f := range raw {
		sanitized := s.sanitizePath(f)
		if sanitized == "" || seen[sanitized] {
			continue
		}
		seen[sanitized] = true
		files = append(files, sanitized)
	}
	sort.Strings(files)
	return files
}

// fingerprint computes the deduplication key for an event: a SHA-256
// digest over the event type, lowercased summary, sorted file list,
// before/after hashes, reverted-event id, and effectiveness flag.
func fingerprint(eventType, summary string, files []string, beforeHash, afterHash string, revertedEventID *int64, isEffective bool) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	reverted := ""
	if revertedEventID != nil {
		reverted = strconv.FormatInt(*revertedEventID, 10)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%t",
		eventType,
		strings.ToLower(summary),
		strings.Join(sorted, ","),
		beforeHash,
		afterHash,
		reverted,
		isEffective,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// InsertEvent appends one event to the log, applying summary
// normalization, path sanitization, and fingerprint-based
// deduplication against events from the same session within the
// dedup window. Returns the id of the inserted (or matched) event.
func (s *Store) InsertEvent(ctx context.Context, input NewEventInput) (int64, error) {
	summary := normalizeSummary(input.Summary)
	if summary == "" {
		return 0, fmt.Errorf("%w: summary is empty after normalization", ErrInvalidArgument)
	}
	if input.SessionID == 0 {
		return 0, fmt.Errorf("%w: no active session", ErrNoActiveSession)
	}

	files := s.sanitizeAndDedupeFiles(input.FilesTouched)

	eventType := coerceEventType(input.EventType)
	fp := fingerprint(eventType, summary, files, input.BeforeHash, input.AfterHash, input.RevertedEventID, input.IsEffective)

	if err := s.enforceQuota(ctx); err != nil {
		return 0, err
	}

	var eventID int64
	var dedupHit bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		if existing, ok, err := findDedupMatch(tx, input.SessionID, fp, now); err != nil {
			return err
		} else if ok {
			if _, err := tx.Exec(`UPDATE event SET updated_at = ? WHERE id = ?`, formatTime(now), existing); err != nil {
				return err
			}
			eventID = existing
			dedupHit = true
			return nil
		}

		filesJSON, err := json.Marshal(files)
		if err != nil {
			return err
		}

		res, err := tx.Exec(`
			INSERT INTO event (session_id, event_type, summary, files_touched, before_hash, after_hash,
				reverted_event_id, is_effective, source, fingerprint, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			input.SessionID, eventType, summary, string(filesJSON), nullableString(input.BeforeHash), nullableString(input.AfterHash),
			input.RevertedEventID, boolToInt(input.IsEffective), input.Source, fp, formatTime(now), formatTime(now))
		if err != nil {
			return err
		}
		eventID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if input.ToolName != "" {
			if _, err := tx.Exec(`INSERT INTO tool_usage (event_id, tool_name, purpose, result) VALUES (?, ?, ?, ?)`,
				eventID, input.ToolName, nullableString(input.Purpose), nullableString(input.Result)); err != nil {
				return err
			}
		}
		if input.Decision {
			if _, err := tx.Exec(`INSERT INTO decision (event_id, summary) VALUES (?, ?)`, eventID, summary); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if !dedupHit {
		if ev, err := s.GetEvent(ctx, eventID); err == nil {
			_ = s.appendToLog(ev)
		}
	}

	return eventID, nil
}

// findDedupMatch looks for an event in the same session with the same
// fingerprint created within the dedup window of now.
func findDedupMatch(tx *sql.Tx, sessionID int64, fp string, now time.Time) (int64, bool, error) {
	cutoff := now.Add(-dedupWindow)
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM event
		WHERE session_id = ? AND fingerprint = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`,
		sessionID, fp, formatTime(cutoff)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetEvent loads a single event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, eventSelectCols+` WHERE id = ?`, id)
	return scanEvent(row)
}

const eventSelectCols = `
	SELECT id, session_id, event_type, summary, files_touched, before_hash, after_hash,
		reverted_event_id, reverted_by_event_id, is_effective, source, fingerprint, created_at, updated_at
	FROM event`

func scanEvent(row *sql.Row) (*Event, error) {
	var ev Event
	var filesJSON string
	var beforeHash, afterHash sql.NullString
	var revertedEventID, revertedByEventID sql.NullInt64
	var isEffective int
	var createdAt, updatedAt string

	err := row.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Summary, &filesJSON, &beforeHash, &afterHash,
		&revertedEventID, &revertedByEventID, &isEffective, &ev.Source, &ev.Fingerprint, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(filesJSON), &ev.FilesTouched); err != nil {
		return nil, fmt.Errorf("decoding files_touched: %w", err)
	}
	ev.BeforeHash = beforeHash.String
	ev.AfterHash = afterHash.String
	if revertedEventID.Valid {
		v := revertedEventID.Int64
		ev.RevertedEventID = &v
	}
	if revertedByEventID.Valid {
		v := revertedByEventID.Int64
		ev.RevertedByEventID = &v
	}
	ev.IsEffective = isEffective != 0
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

// scanEventRows scans one row from a *sql.Rows cursor using the same
// column order as eventSelectCols.
func scanEventRows(rows *sql.Rows) (*Event, error) {
	var ev Event
	var filesJSON string
	var beforeHash, afterHash sql.NullString
	var revertedEventID, revertedByEventID sql.NullInt64
	var isEffective int
	var createdAt, updatedAt string

	err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Summary, &filesJSON, &beforeHash, &afterHash,
		&revertedEventID, &revertedByEventID, &isEffective, &ev.Source, &ev.Fingerprint, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(filesJSON), &ev.FilesTouched); err != nil {
		return nil, fmt.Errorf("decoding files_touched: %w", err)
	}
	ev.BeforeHash = beforeHash.String
	ev.AfterHash = afterHash.String
	if revertedEventID.Valid {
		v := revertedEventID.Int64
		ev.RevertedEventID = &v
	}
	if revertedByEventID.Valid {
		v := revertedByEventID.Int64
		ev.RevertedByEventID = &v
	}
	ev.IsEffective = isEffective != 0
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListRecentEvents returns up to limit events in reverse-chronological
// order.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelectCols+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
