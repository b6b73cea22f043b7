package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/selo-app/selo/internal/platform/id"
	"github.com/selo-app/selo/internal/services/loyalty/domain/money"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

// AppendEvent records one qualifying event in the instance's history.
func (s *Store) AppendEvent(ctx context.Context, record storage.EventLogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if record.InstanceID == "" {
		return fmt.Errorf("instance id is required")
	}
	if record.SourceEventID == "" {
		return fmt.Errorf("source event id is required")
	}
	if record.OccurredAt.IsZero() {
		return fmt.Errorf("occurred at is required")
	}
	if record.ID == "" {
		generated, err := id.NewPrefixed("evt")
		if err != nil {
			return err
		}
		record.ID = generated
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	categoryRefs, err := encodeStrings(record.CategoryRefs)
	if err != nil {
		return fmt.Errorf("encode category refs: %w", err)
	}
	itemRefs, err := encodeStrings(record.ItemRefs)
	if err != nil {
		return fmt.Errorf("encode item refs: %w", err)
	}
	itemUnits, err := encodeUnits(record.ItemUnits)
	if err != nil {
		return fmt.Errorf("encode item units: %w", err)
	}
	ruleIDs, err := encodeStrings(record.RuleIDs)
	if err != nil {
		return fmt.Errorf("encode rule ids: %w", err)
	}

	// INSERT OR IGNORE keeps a resumed crashed attempt from double-logging
	// the same source event.
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO event_log (
	id,
	instance_id,
	source_event_id,
	event_type,
	occurred_at_ms,
	amount_cents,
	branch_ref,
	category_refs,
	item_refs,
	item_units,
	rule_ids,
	stamps_awarded,
	created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.InstanceID,
		record.SourceEventID,
		record.Type,
		millis(record.OccurredAt),
		int64(record.Amount),
		record.BranchRef,
		categoryRefs,
		itemRefs,
		itemUnits,
		ruleIDs,
		record.StampsAwarded,
		millis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents lists an instance's event history oldest first, the order the
// predicates consume it in.
func (s *Store) ListEvents(ctx context.Context, instanceID string) ([]storage.EventLogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	instance_id,
	source_event_id,
	event_type,
	occurred_at_ms,
	amount_cents,
	branch_ref,
	category_refs,
	item_refs,
	item_units,
	rule_ids,
	stamps_awarded,
	created_at_ms
FROM event_log
WHERE instance_id = ?
ORDER BY occurred_at_ms ASC, id ASC
`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var records []storage.EventLogRecord
	for rows.Next() {
		var record storage.EventLogRecord
		var occurredAt, createdAt, amount int64
		var categoryRefs, itemRefs, itemUnits, ruleIDs string
		if err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&record.SourceEventID,
			&record.Type,
			&occurredAt,
			&amount,
			&record.BranchRef,
			&categoryRefs,
			&itemRefs,
			&itemUnits,
			&ruleIDs,
			&record.StampsAwarded,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.OccurredAt = timeFromMillis(occurredAt)
		record.Amount = money.Cents(amount)
		record.CreatedAt = timeFromMillis(createdAt)
		if record.CategoryRefs, err = decodeStrings(categoryRefs); err != nil {
			return nil, fmt.Errorf("decode category refs: %w", err)
		}
		if record.ItemRefs, err = decodeStrings(itemRefs); err != nil {
			return nil, fmt.Errorf("decode item refs: %w", err)
		}
		if record.ItemUnits, err = decodeUnits(itemUnits); err != nil {
			return nil, fmt.Errorf("decode item units: %w", err)
		}
		if record.RuleIDs, err = decodeStrings(ruleIDs); err != nil {
			return nil, fmt.Errorf("decode rule ids: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func encodeUnits(units map[string]int) (string, error) {
	if len(units) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(units)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeUnits(raw string) (map[string]int, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var units map[string]int
	if err := json.Unmarshal([]byte(raw), &units); err != nil {
		return nil, err
	}
	return units, nil
}
