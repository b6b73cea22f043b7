package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

// AdmitEvent inserts a pending dedup row for the source event. When the row
// already exists it is returned with admitted=false; a pending row means a
// prior attempt crashed before finalizing and processing may resume.
func (s *Store) AdmitEvent(ctx context.Context, sourceEventID string, now time.Time) (storage.DedupRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.DedupRecord{}, false, err
	}
	if err := s.ready(); err != nil {
		return storage.DedupRecord{}, false, err
	}
	if sourceEventID == "" {
		return storage.DedupRecord{}, false, fmt.Errorf("source event id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO event_dedup (source_event_id, state, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?)
`, sourceEventID, storage.DedupStatePending, millis(now), millis(now))
	if err != nil {
		return storage.DedupRecord{}, false, fmt.Errorf("admit event: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return storage.DedupRecord{}, false, fmt.Errorf("admit event result: %w", err)
	}

	record, err := s.getDedup(ctx, sourceEventID)
	if err != nil {
		return storage.DedupRecord{}, false, err
	}
	return record, inserted > 0, nil
}

// FinalizeEvent flips a pending dedup row to applied with the stored outcome.
// It runs only after the instance update committed, so a crash between the two
// leaves a resumable pending row rather than a lost award. A row that is
// already applied keeps its first outcome; finalizing it again is a no-op.
func (s *Store) FinalizeEvent(ctx context.Context, sourceEventID, outcome, instanceID string, stampsAwarded int, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if sourceEventID == "" {
		return fmt.Errorf("source event id is required")
	}
	if outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_dedup SET
	state = ?,
	instance_id = ?,
	outcome = ?,
	stamps_awarded = ?,
	updated_at_ms = ?
WHERE source_event_id = ? AND state = ?
`,
		storage.DedupStateApplied,
		instanceID,
		outcome,
		stampsAwarded,
		millis(now),
		sourceEventID,
		storage.DedupStatePending,
	)
	if err != nil {
		return fmt.Errorf("finalize event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize event result: %w", err)
	}
	if affected == 0 {
		// Either the row never existed or a concurrent attempt finalized
		// first; only the former is an error.
		if _, err := s.getDedup(ctx, sourceEventID); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// PruneDedup deletes applied rows last touched before the cutoff. Pending
// rows are kept so crashed attempts stay resumable.
func (s *Store) PruneDedup(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM event_dedup WHERE state = ? AND updated_at_ms < ?`,
		storage.DedupStateApplied, millis(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("prune dedup: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune dedup result: %w", err)
	}
	return removed, nil
}

func (s *Store) getDedup(ctx context.Context, sourceEventID string) (storage.DedupRecord, error) {
	var record storage.DedupRecord
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT source_event_id, state, instance_id, outcome, stamps_awarded, created_at_ms, updated_at_ms
FROM event_dedup
WHERE source_event_id = ?
`, sourceEventID).Scan(
		&record.SourceEventID,
		&record.State,
		&record.InstanceID,
		&record.Outcome,
		&record.StampsAwarded,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DedupRecord{}, storage.ErrNotFound
		}
		return storage.DedupRecord{}, fmt.Errorf("scan dedup row: %w", err)
	}
	record.CreatedAt = timeFromMillis(createdAt)
	record.UpdatedAt = timeFromMillis(updatedAt)
	return record, nil
}
