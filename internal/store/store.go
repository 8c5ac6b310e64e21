package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo

	"github.com/ctxmemory/ctx-agent/internal/logging"
)

// Store wraps the per-project SQLite database plus the paths needed
// to enforce the storage quota and write the append-log sidecar.
type Store struct {
	db          *sql.DB
	projectRoot string
	memoryRoot  string
}

// maxLockRetries and initialBackoff implement the bounded exponential
// backoff the spec requires on SQLITE_BUSY, layered on top of the
// driver's own busy_timeout.
const (
	maxLockRetries = 8
	initialBackoff = 50 * time.Millisecond
)

// Open opens (creating if needed) the Project Store for a project
// rooted at projectRoot, with its database file at dbPath.
func Open(projectRoot, memoryRoot, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating memory root: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer; modernc.org/sqlite serializes per-connection anyway

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	s := &Store{db: db, projectRoot: projectRoot, memoryRoot: memoryRoot}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	if err := s.ensureProjectRow(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seeding project row: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return err
	}
	var applied int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, schemaVersion).Scan(&applied); err != nil {
		return err
	}
	if applied == 0 {
		_, err := s.db.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES (?, ?)`,
			schemaVersion, formatTime(time.Now()))
		return err
	}
	return nil
}

func (s *Store) ensureProjectRow() error {
	_, err := s.db.Exec(`
		INSERT INTO project (id, path, storage_cap_bytes)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING`, s.projectRoot, defaultStorageCapBytes)
	return err
}

const defaultStorageCapBytes = 500 * 1024 * 1024

// Close checkpoints the WAL and closes the underlying database.
func (s *Store) Close() error {
	_, _ = s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return s.db.Close()
}

// withTx runs fn inside a single transaction, retrying on
// SQLITE_BUSY-shaped errors with bounded exponential backoff starting
// at 50ms, up to 8 attempts, per the spec's cross-process coordination
// policy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxLockRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isLockedErr(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isLockedErr(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isLockedErr(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		return nil
	}

	logging.Warn(context.Background(), "store transaction exhausted retries",
		"attempts", maxLockRetries, "error", lastErr)
	return fmt.Errorf("%w: %v", ErrTransientLocked, lastErr)
}

func isLockedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

func jitter(d time.Duration) time.Duration {
	//nolint:gosec // non-cryptographic jitter for retry backoff
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// DiskUsage measures the total size of the project's memory directory.
func (s *Store) DiskUsage() (int64, error) {
	var total int64
	err := filepath.Walk(s.memoryRoot, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}
