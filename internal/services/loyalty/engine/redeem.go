package engine

import (
	"context"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/platform/id"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
	"github.com/selo-app/selo/internal/services/loyalty/token"
)

// Redemption pairs the stored redemption with its presentable token.
type Redemption struct {
	Record storage.RedemptionRecord
	Token  string
}

// Redeem claims an unlocked reward for the instance and mints the single-use
// token the customer presents at the counter.
func (e *Engine) Redeem(ctx context.Context, instanceID, linkID string) (Redemption, error) {
	redemptionID, err := id.NewPrefixed("rdm")
	if err != nil {
		return Redemption{}, err
	}

	signed, err := token.Mint(redemptionID, instanceID, linkID, e.tokens)
	if err != nil {
		return Redemption{}, err
	}
	record, err := e.store.Redeem(ctx, instanceID, linkID, redemptionID, redemptionID, e.now().UTC())
	if err != nil {
		return Redemption{}, err
	}
	return Redemption{Record: record, Token: signed}, nil
}

// ConsumeToken verifies a presented token and marks its redemption used
// exactly once.
func (e *Engine) ConsumeToken(ctx context.Context, presented string) (storage.RedemptionRecord, error) {
	claims, err := token.Verify(presented, e.tokens)
	if err != nil {
		return storage.RedemptionRecord{}, err
	}

	record, err := e.store.ConsumeByTokenID(ctx, claims.RedemptionID, e.now().UTC())
	if err != nil {
		return storage.RedemptionRecord{}, err
	}
	// The claims bind the token to one instance and link; a mismatch means
	// the token id was reused for a different redemption row.
	if record.InstanceID != claims.InstanceID || record.LinkID != claims.LinkID {
		return storage.RedemptionRecord{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token does not match its record")
	}
	return record, nil
}

// Card is the aggregated instance view served to consumers and merchant
// tools.
type Card struct {
	Instance    storage.InstanceRecord
	Stamps      []storage.StampRecord
	Unlocked    []storage.RewardLinkRecord
	Redemptions []storage.RedemptionRecord
}

// GetCard loads an instance with its stamps, unlocked rewards, and
// redemption history.
func (e *Engine) GetCard(ctx context.Context, instanceID string) (Card, error) {
	instance, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return Card{}, err
	}
	stamps, err := e.store.ListStamps(ctx, instanceID)
	if err != nil {
		return Card{}, err
	}
	unlocked, err := e.store.ListUnlocked(ctx, instanceID)
	if err != nil {
		return Card{}, err
	}
	redemptions, err := e.store.ListRedemptions(ctx, instanceID)
	if err != nil {
		return Card{}, err
	}
	return Card{
		Instance:    instance,
		Stamps:      stamps,
		Unlocked:    unlocked,
		Redemptions: redemptions,
	}, nil
}
