package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/platform/id"
	"github.com/selo-app/selo/internal/services/loyalty/domain/template"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

const instanceColumns = `
	id,
	template_id,
	user_ref,
	stamps_given,
	stamp_total,
	version,
	issued_at_ms,
	completed_at_ms,
	updated_at_ms
`

// IssueInstance creates a card instance after re-checking the template's
// issuance limits inside the transaction, so concurrent issuances cannot
// overshoot the emission cap.
func (s *Store) IssueInstance(ctx context.Context, templateID, userRef string, now time.Time) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if templateID == "" || userRef == "" {
		return storage.InstanceRecord{}, fmt.Errorf("template id and user ref are required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("begin issue instance: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	templateRecord, err := scanTemplate(tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, templateID))
	if err != nil {
		return storage.InstanceRecord{}, err
	}

	var userInstances int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instances WHERE template_id = ? AND user_ref = ?`,
		templateID, userRef,
	).Scan(&userInstances); err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("count user instances: %w", err)
	}
	var emitted int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instances WHERE template_id = ?`,
		templateID,
	).Scan(&emitted); err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("count emitted instances: %w", err)
	}

	policy := template.Template{
		ID:            templateRecord.ID,
		CompanyRef:    templateRecord.CompanyRef,
		Title:         templateRecord.Title,
		StampTotal:    templateRecord.StampTotal,
		PerUserLimit:  templateRecord.PerUserLimit,
		EmissionLimit: templateRecord.EmissionLimit,
		EmissionStart: templateRecord.EmissionStart,
		EmissionEnd:   templateRecord.EmissionEnd,
		Active:        templateRecord.Active,
	}
	if err := policy.CanIssue(now, userInstances, emitted); err != nil {
		return storage.InstanceRecord{}, err
	}

	instanceID, err := id.NewPrefixed("crd")
	if err != nil {
		return storage.InstanceRecord{}, err
	}
	record := storage.InstanceRecord{
		ID:          instanceID,
		TemplateID:  templateID,
		UserRef:     userRef,
		StampsGiven: 0,
		StampTotal:  templateRecord.StampTotal,
		Version:     1,
		IssuedAt:    now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO instances (
	id,
	template_id,
	user_ref,
	stamps_given,
	stamp_total,
	version,
	issued_at_ms,
	completed_at_ms,
	updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)
`,
		record.ID,
		record.TemplateID,
		record.UserRef,
		record.StampsGiven,
		record.StampTotal,
		record.Version,
		millis(record.IssuedAt),
		millis(record.UpdatedAt),
	); err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("issue instance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("commit issue instance: %w", err)
	}
	return record, nil
}

// GetInstance loads an instance by id.
func (s *Store) GetInstance(ctx context.Context, instanceID string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InstanceRecord{}, err
	}
	return scanInstance(s.sqlDB.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, instanceID))
}

// OpenInstance returns the user's most recent uncompleted instance for the
// template, or ErrNotFound.
func (s *Store) OpenInstance(ctx context.Context, templateID, userRef string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InstanceRecord{}, err
	}
	return scanInstance(s.sqlDB.QueryRowContext(ctx, `
SELECT `+instanceColumns+`
FROM instances
WHERE template_id = ? AND user_ref = ? AND completed_at_ms IS NULL
ORDER BY issued_at_ms DESC, id DESC
LIMIT 1
`, templateID, userRef))
}

// InstanceBySourceEvent returns the instance a source event already stamped
// or logged, or ErrNotFound.
func (s *Store) InstanceBySourceEvent(ctx context.Context, sourceEventID string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if sourceEventID == "" {
		return storage.InstanceRecord{}, fmt.Errorf("source event id is required")
	}

	record, err := scanInstance(s.sqlDB.QueryRowContext(ctx, `
SELECT `+instanceColumns+`
FROM instances
WHERE id = (SELECT instance_id FROM stamps WHERE source_event_id = ? LIMIT 1)
`, sourceEventID))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.InstanceRecord{}, err
	}
	// No stamps: a zero-award attempt may still have logged the event.
	return scanInstance(s.sqlDB.QueryRowContext(ctx, `
SELECT `+instanceColumns+`
FROM instances
WHERE id = (SELECT instance_id FROM event_log WHERE source_event_id = ? LIMIT 1)
`, sourceEventID))
}

// ApplyAward inserts sequential stamp rows and advances the instance version
// in one transaction. A version mismatch means a concurrent award won the
// race; the caller retries against fresh state.
func (s *Store) ApplyAward(ctx context.Context, params storage.ApplyAwardParams) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if params.InstanceID == "" || params.SourceEventID == "" {
		return storage.InstanceRecord{}, fmt.Errorf("instance id and source event id are required")
	}
	if params.Quantum < 1 {
		return storage.InstanceRecord{}, fmt.Errorf("quantum must be at least 1")
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("begin apply award: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The replay check is global on source_event_id, not scoped to the
	// instance: a resumed or racing attempt may have resolved a different
	// instance, and the stamps must stay on whichever one minted them first.
	var stampedInstance string
	err = tx.QueryRowContext(ctx,
		`SELECT instance_id FROM stamps WHERE source_event_id = ? LIMIT 1`,
		params.SourceEventID,
	).Scan(&stampedInstance)
	switch {
	case err == nil:
		record, err := scanInstance(tx.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, stampedInstance))
		if err != nil {
			return storage.InstanceRecord{}, err
		}
		if err := tx.Commit(); err != nil {
			return storage.InstanceRecord{}, fmt.Errorf("commit apply award: %w", err)
		}
		return record, nil
	case !errors.Is(err, sql.ErrNoRows):
		return storage.InstanceRecord{}, fmt.Errorf("check existing stamps: %w", err)
	}

	current, err := scanInstance(tx.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, params.InstanceID))
	if err != nil {
		return storage.InstanceRecord{}, err
	}
	if current.Version != params.ExpectedVersion {
		return storage.InstanceRecord{}, apperrors.WithMetadata(
			apperrors.CodeConcurrencyConflict,
			"instance version changed since evaluation",
			map[string]string{"InstanceID": params.InstanceID},
		)
	}

	newGiven := current.StampsGiven + params.Quantum
	if newGiven > current.StampTotal {
		return storage.InstanceRecord{}, apperrors.WithMetadata(
			apperrors.CodeStampRangeExceeded,
			"award exceeds the card's stamp total",
			map[string]string{"InstanceID": params.InstanceID},
		)
	}

	var completedAt *int64
	if newGiven == current.StampTotal {
		ms := millis(now)
		completedAt = &ms
	}
	result, err := tx.ExecContext(ctx, `
UPDATE instances SET
	stamps_given = ?,
	version = version + 1,
	completed_at_ms = COALESCE(completed_at_ms, ?),
	updated_at_ms = ?
WHERE id = ? AND version = ?
`,
		newGiven,
		completedAt,
		millis(now),
		params.InstanceID,
		params.ExpectedVersion,
	)
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("apply award: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("apply award result: %w", err)
	}
	if affected == 0 {
		return storage.InstanceRecord{}, apperrors.WithMetadata(
			apperrors.CodeConcurrencyConflict,
			"instance version changed since evaluation",
			map[string]string{"InstanceID": params.InstanceID},
		)
	}

	for stampNo := current.StampsGiven + 1; stampNo <= newGiven; stampNo++ {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO stamps (instance_id, stamp_no, source_event_id, config_version, created_at_ms)
VALUES (?, ?, ?, ?, ?)
`,
			params.InstanceID,
			stampNo,
			params.SourceEventID,
			params.ConfigVersion,
			millis(now),
		); err != nil {
			return storage.InstanceRecord{}, fmt.Errorf("insert stamp %d: %w", stampNo, err)
		}
	}

	updated, err := scanInstance(tx.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, params.InstanceID))
	if err != nil {
		return storage.InstanceRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("commit apply award: %w", err)
	}
	return updated, nil
}

// ListStamps lists an instance's stamps in slot order.
func (s *Store) ListStamps(ctx context.Context, instanceID string) ([]storage.StampRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT instance_id, stamp_no, source_event_id, config_version, created_at_ms
FROM stamps
WHERE instance_id = ?
ORDER BY stamp_no ASC
`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list stamps: %w", err)
	}
	defer rows.Close()

	var records []storage.StampRecord
	for rows.Next() {
		var record storage.StampRecord
		var createdAt int64
		if err := rows.Scan(
			&record.InstanceID,
			&record.StampNo,
			&record.SourceEventID,
			&record.ConfigVersion,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan stamp: %w", err)
		}
		record.CreatedAt = timeFromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stamps: %w", err)
	}
	return records, nil
}

func scanInstance(row rowScanner) (storage.InstanceRecord, error) {
	var record storage.InstanceRecord
	var issuedAt, updatedAt int64
	var completedAt *int64
	err := row.Scan(
		&record.ID,
		&record.TemplateID,
		&record.UserRef,
		&record.StampsGiven,
		&record.StampTotal,
		&record.Version,
		&issuedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InstanceRecord{}, storage.ErrNotFound
		}
		return storage.InstanceRecord{}, fmt.Errorf("scan instance: %w", err)
	}
	record.IssuedAt = timeFromMillis(issuedAt)
	record.CompletedAt = timePtrFromMillis(completedAt)
	record.UpdatedAt = timeFromMillis(updatedAt)
	return record, nil
}
