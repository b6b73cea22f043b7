package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

// ListUnlocked returns reward links whose stamp position the instance has
// reached and that it has not redeemed yet.
func (s *Store) ListUnlocked(ctx context.Context, instanceID string) ([]storage.RewardLinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	instance, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, template_id, name, stamp_no, initial_stock, stock, created_at_ms, updated_at_ms
FROM reward_links
WHERE template_id = ?
  AND stamp_no <= ?
  AND id NOT IN (SELECT link_id FROM redemptions WHERE instance_id = ?)
ORDER BY stamp_no ASC, id ASC
`, instance.TemplateID, instance.StampsGiven, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked rewards: %w", err)
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
			return nil, fmt.Errorf("scan unlocked reward: %w", err)
		}
		record.CreatedAt = timeFromMillis(createdAt)
		record.UpdatedAt = timeFromMillis(updatedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocked rewards: %w", err)
	}
	return records, nil
}

// Redeem atomically re-checks the unlock, decrements bounded stock with a
// floor at zero, and inserts an unused redemption carrying the token id.
func (s *Store) Redeem(ctx context.Context, instanceID, linkID, redemptionID, tokenID string, now time.Time) (storage.RedemptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RedemptionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RedemptionRecord{}, err
	}
	if instanceID == "" || linkID == "" || redemptionID == "" || tokenID == "" {
		return storage.RedemptionRecord{}, fmt.Errorf("instance, link, redemption, and token ids are required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	instance, err := scanInstance(tx.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, instanceID))
	if err != nil {
		return storage.RedemptionRecord{}, err
	}

	var stampNo int
	var stock *int64
	var linkTemplateID string
	err = tx.QueryRowContext(ctx,
		`SELECT template_id, stamp_no, stock FROM reward_links WHERE id = ?`,
		linkID,
	).Scan(&linkTemplateID, &stampNo, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RedemptionRecord{}, storage.ErrNotFound
		}
		return storage.RedemptionRecord{}, fmt.Errorf("load reward link: %w", err)
	}
	if linkTemplateID != instance.TemplateID {
		return storage.RedemptionRecord{}, storage.ErrNotFound
	}
	if stampNo > instance.StampsGiven {
		return storage.RedemptionRecord{}, apperrors.WithMetadata(
			apperrors.CodeRewardNotUnlocked,
			"reward stamp position not reached",
			map[string]string{"LinkID": linkID},
		)
	}

	var redeemed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM redemptions WHERE instance_id = ? AND link_id = ?`,
		instanceID, linkID,
	).Scan(&redeemed); err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("check existing redemption: %w", err)
	}
	if redeemed > 0 {
		return storage.RedemptionRecord{}, apperrors.WithMetadata(
			apperrors.CodeRewardAlreadyRedeemed,
			"reward already redeemed for this card",
			map[string]string{"LinkID": linkID},
		)
	}

	// NULL stock means unlimited; bounded stock decrements with a zero floor.
	if stock != nil {
		result, err := tx.ExecContext(ctx,
			`UPDATE reward_links SET stock = stock - 1, updated_at_ms = ? WHERE id = ? AND stock > 0`,
			millis(now), linkID,
		)
		if err != nil {
			return storage.RedemptionRecord{}, fmt.Errorf("decrement stock: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return storage.RedemptionRecord{}, fmt.Errorf("decrement stock result: %w", err)
		}
		if affected == 0 {
			return storage.RedemptionRecord{}, apperrors.WithMetadata(
				apperrors.CodeRewardStockExhausted,
				"reward stock is exhausted",
				map[string]string{"LinkID": linkID},
			)
		}
	}

	record := storage.RedemptionRecord{
		ID:         redemptionID,
		InstanceID: instanceID,
		LinkID:     linkID,
		TokenID:    tokenID,
		Used:       false,
		CreatedAt:  now.UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO redemptions (id, instance_id, link_id, token_id, used, used_at_ms, created_at_ms)
VALUES (?, ?, ?, ?, 0, NULL, ?)
`,
		record.ID,
		record.InstanceID,
		record.LinkID,
		record.TokenID,
		millis(record.CreatedAt),
	); err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("insert redemption: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("commit redeem: %w", err)
	}
	return record, nil
}

// ConsumeByTokenID marks the redemption used exactly once. The conditional
// update is the single-use gate: whichever consume wins the row, wins the
// reward.
func (s *Store) ConsumeByTokenID(ctx context.Context, tokenID string, now time.Time) (storage.RedemptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RedemptionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RedemptionRecord{}, err
	}
	if tokenID == "" {
		return storage.RedemptionRecord{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE redemptions SET used = 1, used_at_ms = ? WHERE token_id = ? AND used = 0`,
		millis(now), tokenID,
	)
	if err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("consume redemption: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.RedemptionRecord{}, fmt.Errorf("consume redemption result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM redemptions WHERE token_id = ?`, tokenID,
		).Scan(&exists); err != nil {
			return storage.RedemptionRecord{}, fmt.Errorf("check redemption token: %w", err)
		}
		if exists > 0 {
			return storage.RedemptionRecord{}, apperrors.New(apperrors.CodeTokenAlreadyUsed, "redemption token was already used")
		}
		return storage.RedemptionRecord{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token is unknown")
	}

	return s.getRedemptionByToken(ctx, tokenID)
}

// ListRedemptions lists an instance's redemptions, newest first.
func (s *Store) ListRedemptions(ctx context.Context, instanceID string) ([]storage.RedemptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, instance_id, link_id, token_id, used, used_at_ms, created_at_ms
FROM redemptions
WHERE instance_id = ?
ORDER BY created_at_ms DESC, id DESC
`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var records []storage.RedemptionRecord
	for rows.Next() {
		record, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemptions: %w", err)
	}
	return records, nil
}

func (s *Store) getRedemptionByToken(ctx context.Context, tokenID string) (storage.RedemptionRecord, error) {
	record, err := scanRedemption(s.sqlDB.QueryRowContext(ctx, `
SELECT id, instance_id, link_id, token_id, used, used_at_ms, created_at_ms
FROM redemptions
WHERE token_id = ?
`, tokenID))
	if err != nil {
		return storage.RedemptionRecord{}, err
	}
	return record, nil
}

func scanRedemption(row rowScanner) (storage.RedemptionRecord, error) {
	var record storage.RedemptionRecord
	var used int
	var usedAt *int64
	var createdAt int64
	err := row.Scan(
		&record.ID,
		&record.InstanceID,
		&record.LinkID,
		&record.TokenID,
		&used,
		&usedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RedemptionRecord{}, storage.ErrNotFound
		}
		return storage.RedemptionRecord{}, fmt.Errorf("scan redemption: %w", err)
	}
	record.Used = used != 0
	record.UsedAt = timePtrFromMillis(usedAt)
	record.CreatedAt = timeFromMillis(createdAt)
	return record, nil
}
