package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctxmemory/ctx-agent/internal/paths"
)

// appendLogRecord is the canonical on-disk shape of one line in the
// append-log sidecar. It carries enough of the event to reconstruct
// the log from disk independently of the database, per the
// durability design: the database is authoritative, the append-log
// is a forensic trail that survives a corrupted .db file.
type appendLogRecord struct {
	EventID      int64    `json:"event_id"`
	SessionID    int64    `json:"session_id"`
	EventType    string   `json:"event_type"`
	Summary      string   `json:"summary"`
	FilesTouched []string `json:"files_touched,omitempty"`
	BeforeHash   string   `json:"before_hash,omitempty"`
	AfterHash    string   `json:"after_hash,omitempty"`
	Source       string   `json:"source"`
	CreatedAt    string   `json:"created_at"`
}

// appendToLog writes one JSON line to today's append-log file. It is
// best-effort relative to the transaction that inserted the event:
// a failure here is logged but never rolls back the insert, since the
// database row is the durable record and the sidecar is supplementary.
func (s *Store) appendToLog(ev *Event) error {
	dir := paths.AppendLogDir(s.projectRoot)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating append-log directory: %w", err)
	}

	name := fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("2006-01-02"))
	path := filepath.Join(dir, name)

	rec := appendLogRecord{
		EventID:      ev.ID,
		SessionID:    ev.SessionID,
		EventType:    ev.EventType,
		Summary:      ev.Summary,
		FilesTouched: ev.FilesTouched,
		BeforeHash:   ev.BeforeHash,
		AfterHash:    ev.AfterHash,
		Source:       ev.Source,
		CreatedAt:    formatTime(ev.CreatedAt),
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling append-log record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // append-log is plaintext event history, not secrets
	if err != nil {
		return fmt.Errorf("opening append-log file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(line)
	return err
}
