package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ctxmemory/ctx-agent/internal/logging"
)

// compactionThreshold triggers compaction once measured usage reaches
// this fraction of the configured cap.
const compactionThreshold = 0.85

// compactionBatchSize bounds how many rows a single compaction pass
// rolls up, keeping the operation's own transaction short.
const compactionBatchSize = 3000

// compactionAge is how old a non-high-value event must be before it's
// eligible for rollup.
const compactionAge = 24 * time.Hour

// enforceQuota measures current disk usage and, if it's at or past the
// compaction threshold, runs a compaction pass. If usage still sits at
// or above the cap afterward, it returns ErrStorageCapExceeded.
func (s *Store) enforceQuota(ctx context.Context) error {
	capBytes := s.storageCapBytes(ctx)
	used, err := s.DiskUsage()
	if err != nil {
		return fmt.Errorf("measuring disk usage: %w", err)
	}

	if float64(used) >= float64(capBytes)*compactionThreshold {
		if err := s.compact(ctx); err != nil {
			logging.Warn(ctx, "compaction failed", "error", err)
		}
		used, err = s.DiskUsage()
		if err != nil {
			return fmt.Errorf("re-measuring disk usage: %w", err)
		}
	}

	s.updateStorageUsed(ctx, used)

	if used >= capBytes {
		return ErrStorageCapExceeded
	}
	return nil
}

func (s *Store) storageCapBytes(ctx context.Context) int64 {
	var capBytes int64
	if err := s.db.QueryRowContext(ctx, `SELECT storage_cap_bytes FROM project WHERE id = 1`).Scan(&capBytes); err != nil || capBytes <= 0 {
		return defaultStorageCapBytes
	}
	return capBytes
}

func (s *Store) updateStorageUsed(ctx context.Context, used int64) {
	if _, err := s.db.ExecContext(ctx, `UPDATE project SET storage_used_bytes = ? WHERE id = 1`, used); err != nil {
		logging.Warn(ctx, "failed to update storage_used_bytes", "error", err)
	}
}

// SetStorageCapBytes overrides the project's configured quota.
func (s *Store) SetStorageCapBytes(ctx context.Context, n int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE project SET storage_cap_bytes = ? WHERE id = 1`, n)
	return err
}

// compact collects up to compactionBatchSize low-value events older
// than compactionAge, folds them into a single Rollup row, and deletes
// the originals. Events of a high-value type, or that are a revert
// target or revert source, are never compacted.
func (s *Store) compact(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(time.Now().Add(-compactionAge))

		highValuePlaceholders, args := highValueTypeList()
		args = append(args, cutoff, compactionBatchSize)

		query := fmt.Sprintf(`
			SELECT id, event_type, summary, created_at FROM event
			WHERE event_type NOT IN (%s)
				AND created_at < ?
				AND reverted_event_id IS NULL
				AND reverted_by_event_id IS NULL
			ORDER BY created_at ASC
			LIMIT ?`, highValuePlaceholders)

		rows, err := tx.Query(query, args...)
		if err != nil {
			return err
		}

		type candidate struct {
			id        int64
			eventType string
			summary   string
			createdAt string
		}
		var candidates []candidate
		for rows.Next() {
			var c candidate
			if err := rows.Scan(&c.id, &c.eventType, &c.summary, &c.createdAt); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(candidates) == 0 {
			return nil
		}

		periodStart := candidates[0].createdAt
		periodEnd := candidates[len(candidates)-1].createdAt

		counts := make(map[string]int, len(candidates))
		for _, c := range candidates {
			counts[c.eventType]++
		}
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		pairs := make([]string, 0, len(types))
		for _, t := range types {
			pairs = append(pairs, fmt.Sprintf("%s:%d", t, counts[t]))
		}

		summary := fmt.Sprintf("compacted %d events (%s .. %s): %s",
			len(candidates), periodStart, periodEnd, strings.Join(pairs, ", "))
		if _, err := tx.Exec(`INSERT INTO rollup (period_start, period_end, summary) VALUES (?, ?, ?)`,
			periodStart, periodEnd, summary); err != nil {
			return err
		}

		ids := make([]any, 0, len(candidates))
		placeholders := ""
		for i, c := range candidates {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			ids = append(ids, c.id)
		}

		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM tool_usage WHERE event_id IN (%s)`, placeholders), ids...); err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM decision WHERE event_id IN (%s)`, placeholders), ids...); err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM event WHERE id IN (%s)`, placeholders), ids...); err != nil {
			return err
		}

		return nil
	})
}

func highValueTypeList() (string, []any) {
	types := []string{EventDecisionMade, EventHandoff, EventErrorSeen, EventToolUse, EventRevert}
	placeholders := ""
	args := make([]any, 0, len(types))
	for i, t := range types {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, t)
	}
	return placeholders, args
}
