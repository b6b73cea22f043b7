package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/selo-app/selo/internal/platform/id"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

const templateColumns = `
	id,
	company_ref,
	title,
	stamp_total,
	per_user_limit,
	emission_limit,
	emission_start_ms,
	emission_end_ms,
	active,
	config_version,
	created_at_ms,
	updated_at_ms
`

// CreateTemplate inserts a template at configuration version 1 and appends the
// initial revision row.
func (s *Store) CreateTemplate(ctx context.Context, record storage.TemplateRecord) (storage.TemplateRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TemplateRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TemplateRecord{}, err
	}

	if record.ID == "" {
		generated, err := id.NewPrefixed("tpl")
		if err != nil {
			return storage.TemplateRecord{}, err
		}
		record.ID = generated
	}
	now := record.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	record.ConfigVersion = 1

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("begin create template: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO templates (
	id,
	company_ref,
	title,
	stamp_total,
	per_user_limit,
	emission_limit,
	emission_start_ms,
	emission_end_ms,
	active,
	config_version,
	created_at_ms,
	updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.CompanyRef,
		record.Title,
		record.StampTotal,
		record.PerUserLimit,
		record.EmissionLimit,
		millisPtr(record.EmissionStart),
		millisPtr(record.EmissionEnd),
		boolToInt(record.Active),
		record.ConfigVersion,
		millis(record.CreatedAt),
		millis(record.UpdatedAt),
	)
	if err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("create template: %w", err)
	}

	if err := appendRevisionTx(ctx, tx, record.ID, now); err != nil {
		return storage.TemplateRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("commit create template: %w", err)
	}
	return record, nil
}

// GetTemplate loads a template by id.
func (s *Store) GetTemplate(ctx context.Context, templateID string) (storage.TemplateRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TemplateRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TemplateRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, templateID)
	return scanTemplate(row)
}

// ListTemplates lists templates for a company, optionally narrowed by a
// translated filter condition, newest first.
func (s *Store) ListTemplates(ctx context.Context, query storage.ListTemplatesQuery) ([]storage.TemplateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query.CompanyRef) == "" {
		return nil, fmt.Errorf("company ref is required")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := `SELECT ` + templateColumns + ` FROM templates WHERE company_ref = ?`
	params := []any{query.CompanyRef}
	if !query.Filter.Empty() {
		sqlQuery += ` AND ` + query.Filter.Clause
		params = append(params, query.Filter.Params...)
	}
	sqlQuery += ` ORDER BY created_at_ms DESC, id DESC LIMIT ?`
	params = append(params, limit)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	records := make([]storage.TemplateRecord, 0, limit)
	for rows.Next() {
		record, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return records, nil
}

// UpdateTemplate rewrites the template's mutable fields, bumps the
// configuration version, and appends a revision.
func (s *Store) UpdateTemplate(ctx context.Context, record storage.TemplateRecord) (storage.TemplateRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TemplateRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TemplateRecord{}, err
	}

	now := time.Now().UTC()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("begin update template: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
UPDATE templates SET
	title = ?,
	per_user_limit = ?,
	emission_limit = ?,
	emission_start_ms = ?,
	emission_end_ms = ?,
	active = ?,
	config_version = config_version + 1,
	updated_at_ms = ?
WHERE id = ?
`,
		record.Title,
		record.PerUserLimit,
		record.EmissionLimit,
		millisPtr(record.EmissionStart),
		millisPtr(record.EmissionEnd),
		boolToInt(record.Active),
		millis(now),
		record.ID,
	)
	if err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("update template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("update template result: %w", err)
	}
	if affected == 0 {
		return storage.TemplateRecord{}, storage.ErrNotFound
	}

	if err := appendRevisionTx(ctx, tx, record.ID, now); err != nil {
		return storage.TemplateRecord{}, err
	}
	updated, err := scanTemplate(tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, record.ID))
	if err != nil {
		return storage.TemplateRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.TemplateRecord{}, fmt.Errorf("commit update template: %w", err)
	}
	return updated, nil
}

// CreateRule inserts a rule and bumps the template's configuration version.
func (s *Store) CreateRule(ctx context.Context, record storage.RuleRecord) (storage.RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RuleRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RuleRecord{}, err
	}

	if record.ID == "" {
		generated, err := id.NewPrefixed("rul")
		if err != nil {
			return storage.RuleRecord{}, err
		}
		record.ID = generated
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RuleRecord{}, fmt.Errorf("begin create rule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpConfigVersionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RuleRecord{}, err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO rules (
	id,
	template_id,
	kind,
	config,
	rule_order,
	active,
	exclusivity_group,
	created_at_ms,
	updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.TemplateID,
		record.Kind,
		string(record.Config),
		record.Order,
		boolToInt(record.Active),
		record.ExclusivityGroup,
		millis(record.CreatedAt),
		millis(record.UpdatedAt),
	)
	if err != nil {
		return storage.RuleRecord{}, fmt.Errorf("create rule: %w", err)
	}

	if err := appendRevisionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RuleRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.RuleRecord{}, fmt.Errorf("commit create rule: %w", err)
	}
	return record, nil
}

// UpdateRule rewrites a rule's configuration and bumps the template's
// configuration version.
func (s *Store) UpdateRule(ctx context.Context, record storage.RuleRecord) (storage.RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RuleRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RuleRecord{}, err
	}

	now := time.Now().UTC()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RuleRecord{}, fmt.Errorf("begin update rule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
UPDATE rules SET
	kind = ?,
	config = ?,
	rule_order = ?,
	active = ?,
	exclusivity_group = ?,
	updated_at_ms = ?
WHERE id = ? AND template_id = ?
`,
		record.Kind,
		string(record.Config),
		record.Order,
		boolToInt(record.Active),
		record.ExclusivityGroup,
		millis(now),
		record.ID,
		record.TemplateID,
	)
	if err != nil {
		return storage.RuleRecord{}, fmt.Errorf("update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.RuleRecord{}, fmt.Errorf("update rule result: %w", err)
	}
	if affected == 0 {
		return storage.RuleRecord{}, storage.ErrNotFound
	}

	if err := bumpConfigVersionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RuleRecord{}, err
	}
	if err := appendRevisionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RuleRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.RuleRecord{}, fmt.Errorf("commit update rule: %w", err)
	}
	record.UpdatedAt = now
	return record, nil
}

// ListRules lists a template's rules in evaluation order.
func (s *Store) ListRules(ctx context.Context, templateID string) ([]storage.RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return listRulesTx(ctx, s.sqlDB, templateID)
}

// CreateRewardLink attaches a reward to a stamp position and bumps the
// template's configuration version.
func (s *Store) CreateRewardLink(ctx context.Context, record storage.RewardLinkRecord) (storage.RewardLinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RewardLinkRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RewardLinkRecord{}, err
	}

	if record.ID == "" {
		generated, err := id.NewPrefixed("lnk")
		if err != nil {
			return storage.RewardLinkRecord{}, err
		}
		record.ID = generated
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Stock == nil && record.InitialStock != nil {
		stock := *record.InitialStock
		record.Stock = &stock
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RewardLinkRecord{}, fmt.Errorf("begin create reward link: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpConfigVersionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RewardLinkRecord{}, err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO reward_links (
	id,
	template_id,
	name,
	stamp_no,
	initial_stock,
	stock,
	created_at_ms,
	updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.TemplateID,
		record.Name,
		record.StampNo,
		record.InitialStock,
		record.Stock,
		millis(record.CreatedAt),
		millis(record.UpdatedAt),
	)
	if err != nil {
		return storage.RewardLinkRecord{}, fmt.Errorf("create reward link: %w", err)
	}

	if err := appendRevisionTx(ctx, tx, record.TemplateID, now); err != nil {
		return storage.RewardLinkRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.RewardLinkRecord{}, fmt.Errorf("commit create reward link: %w", err)
	}
	return record, nil
}

// ListRewardLinks lists a template's reward links by stamp position.
func (s *Store) ListRewardLinks(ctx context.Context, templateID string) ([]storage.RewardLinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return listRewardLinksTx(ctx, s.sqlDB, templateID)
}

// Snapshot reads a template with all of its rules and reward links in one
// transaction, pinned at the current configuration version.
func (s *Store) Snapshot(ctx context.Context, templateID string) (storage.ConfigSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConfigSnapshot{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ConfigSnapshot{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return storage.ConfigSnapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snapshot, err := snapshotTx(ctx, tx, templateID)
	if err != nil {
		return storage.ConfigSnapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.ConfigSnapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}
	return snapshot, nil
}

// ListRevisions lists configuration history rows, newest version first.
func (s *Store) ListRevisions(ctx context.Context, templateID string, limit int) ([]storage.ConfigRevisionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT template_id, version, payload, created_at_ms
FROM config_revisions
WHERE template_id = ?
ORDER BY version DESC
LIMIT ?
`, templateID, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ConfigRevisionRecord, 0, limit)
	for rows.Next() {
		var record storage.ConfigRevisionRecord
		var payload string
		var createdAt int64
		if err := rows.Scan(&record.TemplateID, &record.Version, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		record.Payload = []byte(payload)
		record.CreatedAt = timeFromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (storage.TemplateRecord, error) {
	var record storage.TemplateRecord
	var emissionStart, emissionEnd *int64
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.CompanyRef,
		&record.Title,
		&record.StampTotal,
		&record.PerUserLimit,
		&record.EmissionLimit,
		&emissionStart,
		&emissionEnd,
		&active,
		&record.ConfigVersion,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TemplateRecord{}, storage.ErrNotFound
		}
		return storage.TemplateRecord{}, fmt.Errorf("scan template: %w", err)
	}
	record.EmissionStart = timePtrFromMillis(emissionStart)
	record.EmissionEnd = timePtrFromMillis(emissionEnd)
	record.Active = active != 0
	record.CreatedAt = timeFromMillis(createdAt)
	record.UpdatedAt = timeFromMillis(updatedAt)
	return record, nil
}

// querier lets snapshot helpers run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listRulesTx(ctx context.Context, q querier, templateID string) ([]storage.RuleRecord, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, template_id, kind, config, rule_order, active, exclusivity_group, created_at_ms, updated_at_ms
FROM rules
WHERE template_id = ?
ORDER BY rule_order ASC, id ASC
`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var records []storage.RuleRecord
	for rows.Next() {
		var record storage.RuleRecord
		var config string
		var active int
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.TemplateID,
			&record.Kind,
			&config,
			&record.Order,
			&active,
			&record.ExclusivityGroup,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		record.Config = []byte(config)
		record.Active = active != 0
		record.CreatedAt = timeFromMillis(createdAt)
		record.UpdatedAt = timeFromMillis(updatedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return records, nil
}

func listRewardLinksTx(ctx context.Context, q querier, templateID string) ([]storage.RewardLinkRecord, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, template_id, name, stamp_no, initial_stock, stock, created_at_ms, updated_at_ms
FROM reward_links
WHERE template_id = ?
ORDER BY stamp_no ASC, id ASC
`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list reward links: %w", err)
	}
	defer rows.Close()

	var records []storage.RewardLinkRecord
	for rows.Next() {
		var record storage.RewardLinkRecord
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.TemplateID,
			&record.Name,
			&record.StampNo,
			&record.InitialStock,
			&record.Stock,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reward link: %w", err)
		}
		record.CreatedAt = timeFromMillis(createdAt)
		record.UpdatedAt = timeFromMillis(updatedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward links: %w", err)
	}
	return records, nil
}

func snapshotTx(ctx context.Context, q querier, templateID string) (storage.ConfigSnapshot, error) {
	template, err := scanTemplate(q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, templateID))
	if err != nil {
		return storage.ConfigSnapshot{}, err
	}
	rules, err := listRulesTx(ctx, q, templateID)
	if err != nil {
		return storage.ConfigSnapshot{}, err
	}
	links, err := listRewardLinksTx(ctx, q, templateID)
	if err != nil {
		return storage.ConfigSnapshot{}, err
	}
	return storage.ConfigSnapshot{
		Template: template,
		Rules:    rules,
		Links:    links,
		Version:  template.ConfigVersion,
	}, nil
}

func bumpConfigVersionTx(ctx context.Context, tx *sql.Tx, templateID string, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE templates SET config_version = config_version + 1, updated_at_ms = ? WHERE id = ?`,
		millis(now), templateID,
	)
	if err != nil {
		return fmt.Errorf("bump config version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump config version result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// revisionPayload is the JSON shape appended to config_revisions.
type revisionPayload struct {
	Template revisionTemplate `json:"template"`
	Rules    []revisionRule   `json:"rules"`
	Links    []revisionLink   `json:"links"`
}

type revisionTemplate struct {
	ID            string     `json:"id"`
	CompanyRef    string     `json:"company_ref"`
	Title         string     `json:"title"`
	StampTotal    int        `json:"stamp_total"`
	PerUserLimit  int        `json:"per_user_limit"`
	EmissionLimit *int64     `json:"emission_limit,omitempty"`
	EmissionStart *time.Time `json:"emission_start,omitempty"`
	EmissionEnd   *time.Time `json:"emission_end,omitempty"`
	Active        bool       `json:"active"`
}

type revisionRule struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	Config           json.RawMessage `json:"config"`
	Order            int             `json:"order"`
	Active           bool            `json:"active"`
	ExclusivityGroup string          `json:"exclusivity_group,omitempty"`
}

type revisionLink struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StampNo      int    `json:"stamp_no"`
	InitialStock *int64 `json:"initial_stock,omitempty"`
	Stock        *int64 `json:"stock,omitempty"`
}

// appendRevisionTx snapshots the configuration inside the writing transaction
// and appends it to the history at the template's current version.
func appendRevisionTx(ctx context.Context, tx *sql.Tx, templateID string, now time.Time) error {
	snapshot, err := snapshotTx(ctx, tx, templateID)
	if err != nil {
		return err
	}

	payload := revisionPayload{
		Template: revisionTemplate{
			ID:            snapshot.Template.ID,
			CompanyRef:    snapshot.Template.CompanyRef,
			Title:         snapshot.Template.Title,
			StampTotal:    snapshot.Template.StampTotal,
			PerUserLimit:  snapshot.Template.PerUserLimit,
			EmissionLimit: snapshot.Template.EmissionLimit,
			EmissionStart: snapshot.Template.EmissionStart,
			EmissionEnd:   snapshot.Template.EmissionEnd,
			Active:        snapshot.Template.Active,
		},
		Rules: make([]revisionRule, 0, len(snapshot.Rules)),
		Links: make([]revisionLink, 0, len(snapshot.Links)),
	}
	for _, rule := range snapshot.Rules {
		payload.Rules = append(payload.Rules, revisionRule{
			ID:               rule.ID,
			Kind:             rule.Kind,
			Config:           json.RawMessage(rule.Config),
			Order:            rule.Order,
			Active:           rule.Active,
			ExclusivityGroup: rule.ExclusivityGroup,
		})
	}
	for _, link := range snapshot.Links {
		payload.Links = append(payload.Links, revisionLink{
			ID:           link.ID,
			Name:         link.Name,
			StampNo:      link.StampNo,
			InitialStock: link.InitialStock,
			Stock:        link.Stock,
		})
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode revision payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO config_revisions (template_id, version, payload, created_at_ms)
VALUES (?, ?, ?, ?)
`, templateID, snapshot.Version, string(encoded), millis(now)); err != nil {
		return fmt.Errorf("append revision: %w", err)
	}
	return nil
}
