package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

func seedInstanceWithStamps(t *testing.T, store *Store, stamps int, mutate func(*storage.TemplateRecord)) (storage.TemplateRecord, storage.InstanceRecord) {
	t.Helper()
	ctx := context.Background()
	created := seedTemplate(t, store, mutate)
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue instance: %v", err)
	}
	if stamps > 0 {
		instance, err = store.ApplyAward(ctx, storage.ApplyAwardParams{
			InstanceID:      instance.ID,
			ExpectedVersion: 1,
			Quantum:         stamps,
			SourceEventID:   "evt-seed",
			ConfigVersion:   created.ConfigVersion,
			Now:             storeNow,
		})
		if err != nil {
			t.Fatalf("apply seed award: %v", err)
		}
	}
	return created, instance
}

func TestListUnlockedExcludesLockedAndRedeemed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, instance := seedInstanceWithStamps(t, store, 5, nil)

	early, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID: created.ID,
		Name:       "Free espresso",
		StampNo:    3,
	})
	if err != nil {
		t.Fatalf("create early link: %v", err)
	}
	if _, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID: created.ID,
		Name:       "Free lunch",
		StampNo:    8,
	}); err != nil {
		t.Fatalf("create late link: %v", err)
	}

	unlocked, err := store.ListUnlocked(ctx, instance.ID)
	if err != nil {
		t.Fatalf("list unlocked: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].ID != early.ID {
		t.Fatalf("unlocked = %+v, want only the early link", unlocked)
	}

	if _, err := store.Redeem(ctx, instance.ID, early.ID, "rdm_1", "rdm_1", storeNow); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	unlocked, err = store.ListUnlocked(ctx, instance.ID)
	if err != nil {
		t.Fatalf("list unlocked after redeem: %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("unlocked = %+v, want empty", unlocked)
	}
}

func TestRedeemRequiresUnlock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, instance := seedInstanceWithStamps(t, store, 2, nil)

	link, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID: created.ID,
		Name:       "Free lunch",
		StampNo:    8,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	_, err = store.Redeem(ctx, instance.ID, link.ID, "rdm_1", "rdm_1", storeNow)
	storeWantCode(t, err, apperrors.CodeRewardNotUnlocked)
}

func TestRedeemOncePerInstanceAndLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, instance := seedInstanceWithStamps(t, store, 5, nil)

	link, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID: created.ID,
		Name:       "Free espresso",
		StampNo:    3,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	if _, err := store.Redeem(ctx, instance.ID, link.ID, "rdm_1", "rdm_1", storeNow); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err = store.Redeem(ctx, instance.ID, link.ID, "rdm_2", "rdm_2", storeNow)
	storeWantCode(t, err, apperrors.CodeRewardAlreadyRedeemed)
}

func TestRedeemStockFloor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)

	stock := int64(1)
	link, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID:   created.ID,
		Name:         "Limited mug",
		StampNo:      1,
		InitialStock: &stock,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	var instances []storage.InstanceRecord
	for i := 0; i < 2; i++ {
		instance, err := store.IssueInstance(ctx, created.ID, fmt.Sprintf("user-%d", i), storeNow)
		if err != nil {
			t.Fatalf("issue instance %d: %v", i, err)
		}
		instance, err = store.ApplyAward(ctx, storage.ApplyAwardParams{
			InstanceID:      instance.ID,
			ExpectedVersion: 1,
			Quantum:         1,
			SourceEventID:   fmt.Sprintf("evt-%d", i),
			ConfigVersion:   1,
			Now:             storeNow,
		})
		if err != nil {
			t.Fatalf("award instance %d: %v", i, err)
		}
		instances = append(instances, instance)
	}

	// Two holders race for the last unit; exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, len(instances))
	for i, instance := range instances {
		wg.Add(1)
		go func(i int, instanceID string) {
			defer wg.Done()
			_, results[i] = store.Redeem(ctx, instanceID, link.ID, fmt.Sprintf("rdm_%d", i), fmt.Sprintf("rdm_%d", i), storeNow)
		}(i, instance.ID)
	}
	wg.Wait()

	var succeeded, exhausted int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) && domainErr.Code == apperrors.CodeRewardStockExhausted {
			exhausted++
			continue
		}
		t.Fatalf("unexpected redeem error: %v", err)
	}
	if succeeded != 1 || exhausted != 1 {
		t.Fatalf("succeeded = %d exhausted = %d, want 1 and 1", succeeded, exhausted)
	}

	links, err := store.ListRewardLinks(ctx, created.ID)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if links[0].Stock == nil || *links[0].Stock != 0 {
		t.Fatalf("stock = %v, want 0", links[0].Stock)
	}
}

func TestConsumeByTokenIDSingleUse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, instance := seedInstanceWithStamps(t, store, 5, nil)

	link, err := store.CreateRewardLink(ctx, storage.RewardLinkRecord{
		TemplateID: created.ID,
		Name:       "Free espresso",
		StampNo:    3,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if _, err := store.Redeem(ctx, instance.ID, link.ID, "rdm_1", "rdm_1", storeNow); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	consumed, err := store.ConsumeByTokenID(ctx, "rdm_1", storeNow)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !consumed.Used || consumed.UsedAt == nil {
		t.Fatalf("consumed = %+v", consumed)
	}

	_, err = store.ConsumeByTokenID(ctx, "rdm_1", storeNow)
	storeWantCode(t, err, apperrors.CodeTokenAlreadyUsed)

	_, err = store.ConsumeByTokenID(ctx, "rdm_unknown", storeNow)
	storeWantCode(t, err, apperrors.CodeTokenInvalid)
}
