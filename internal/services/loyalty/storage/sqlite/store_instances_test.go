package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

func TestIssueInstanceEnforcesLimits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, func(r *storage.TemplateRecord) {
		r.PerUserLimit = 1
		limit := int64(2)
		r.EmissionLimit = &limit
	})

	first, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if first.StampTotal != 10 || first.Version != 1 {
		t.Fatalf("first = %+v", first)
	}

	_, err = store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	storeWantCode(t, err, apperrors.CodePerUserLimitReached)

	if _, err := store.IssueInstance(ctx, created.ID, "user-2", storeNow); err != nil {
		t.Fatalf("issue second user: %v", err)
	}
	_, err = store.IssueInstance(ctx, created.ID, "user-3", storeNow)
	storeWantCode(t, err, apperrors.CodeEmissionLimitReached)
}

func TestIssueInstanceInactiveTemplate(t *testing.T) {
	store := newTestStore(t)
	created := seedTemplate(t, store, func(r *storage.TemplateRecord) { r.Active = false })

	_, err := store.IssueInstance(context.Background(), created.ID, "user-1", storeNow)
	storeWantCode(t, err, apperrors.CodeTemplateInactive)
}

func TestOpenInstanceSkipsCompleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, func(r *storage.TemplateRecord) { r.StampTotal = 2 })

	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	open, err := store.OpenInstance(ctx, created.ID, "user-1")
	if err != nil {
		t.Fatalf("open instance: %v", err)
	}
	if open.ID != instance.ID {
		t.Fatalf("open id = %s, want %s", open.ID, instance.ID)
	}

	if _, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         2,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	}); err != nil {
		t.Fatalf("apply award: %v", err)
	}

	_, err = store.OpenInstance(ctx, created.ID, "user-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after completion", err)
	}
}

func TestApplyAwardInsertsSequentialStamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	updated, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         3,
		SourceEventID:   "evt-1",
		ConfigVersion:   4,
		Now:             storeNow,
	})
	if err != nil {
		t.Fatalf("apply award: %v", err)
	}
	if updated.StampsGiven != 3 || updated.Version != 2 {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.CompletedAt != nil {
		t.Fatal("instance should not be completed")
	}

	stamps, err := store.ListStamps(ctx, instance.ID)
	if err != nil {
		t.Fatalf("list stamps: %v", err)
	}
	if len(stamps) != 3 {
		t.Fatalf("stamps = %d, want 3", len(stamps))
	}
	for i, stamp := range stamps {
		if stamp.StampNo != i+1 {
			t.Fatalf("stamp %d has slot %d", i, stamp.StampNo)
		}
		if stamp.SourceEventID != "evt-1" || stamp.ConfigVersion != 4 {
			t.Fatalf("stamp = %+v", stamp)
		}
	}
}

func TestApplyAwardVersionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         1,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	}); err != nil {
		t.Fatalf("first award: %v", err)
	}

	// The stale writer computed against version 1 which no longer exists.
	_, err = store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         1,
		SourceEventID:   "evt-2",
		ConfigVersion:   1,
		Now:             storeNow,
	})
	storeWantCode(t, err, apperrors.CodeConcurrencyConflict)
}

func TestApplyAwardRejectsOverflow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, func(r *storage.TemplateRecord) { r.StampTotal = 2 })
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         3,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	})
	storeWantCode(t, err, apperrors.CodeStampRangeExceeded)
}

func TestApplyAwardSetsCompletedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, func(r *storage.TemplateRecord) { r.StampTotal = 2 })
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	updated, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         2,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	})
	if err != nil {
		t.Fatalf("apply award: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed at not set on full card")
	}
	if !updated.CompletedAt.Equal(storeNow) {
		t.Fatalf("completed at = %v, want %v", updated.CompletedAt, storeNow)
	}
}

func TestApplyAwardIsIdempotentPerSourceEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	first, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         2,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// A crashed engine retrying the same source event must not double-stamp.
	replay, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: first.Version,
		Quantum:         2,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("replay apply: %v", err)
	}
	if replay.StampsGiven != 2 || replay.Version != first.Version {
		t.Fatalf("replay = %+v, want unchanged instance", replay)
	}
}

func TestApplyAwardReplayCrossesInstances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)
	first, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}

	stamped, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      first.ID,
		ExpectedVersion: 1,
		Quantum:         1,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	})
	if err != nil {
		t.Fatalf("apply on first: %v", err)
	}

	// A replay that resolved a different instance must land on the one that
	// already holds the stamps, not mint again.
	replay, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      second.ID,
		ExpectedVersion: 1,
		Quantum:         1,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("replay on second: %v", err)
	}
	if replay.ID != first.ID || replay.StampsGiven != stamped.StampsGiven {
		t.Fatalf("replay = %+v, want first instance unchanged", replay)
	}

	untouched, err := store.GetInstance(ctx, second.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if untouched.StampsGiven != 0 || untouched.Version != 1 {
		t.Fatalf("second instance = %+v, want no stamps", untouched)
	}
	stamps, err := store.ListStamps(ctx, second.ID)
	if err != nil {
		t.Fatalf("list stamps: %v", err)
	}
	if len(stamps) != 0 {
		t.Fatalf("second instance stamps = %d, want 0", len(stamps))
	}
}

func TestInstanceBySourceEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedTemplate(t, store, nil)
	instance, err := store.IssueInstance(ctx, created.ID, "user-1", storeNow)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := store.InstanceBySourceEvent(ctx, "evt-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before any trace", err)
	}

	if _, err := store.ApplyAward(ctx, storage.ApplyAwardParams{
		InstanceID:      instance.ID,
		ExpectedVersion: 1,
		Quantum:         1,
		SourceEventID:   "evt-1",
		ConfigVersion:   1,
		Now:             storeNow,
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	found, err := store.InstanceBySourceEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("lookup stamped event: %v", err)
	}
	if found.ID != instance.ID {
		t.Fatalf("instance = %s, want %s", found.ID, instance.ID)
	}

	// Zero-award events only leave an event-log row and still resolve.
	if err := store.AppendEvent(ctx, storage.EventLogRecord{
		InstanceID:    instance.ID,
		SourceEventID: "evt-2",
		Type:          "purchase",
		OccurredAt:    storeNow,
		CreatedAt:     storeNow,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	found, err = store.InstanceBySourceEvent(ctx, "evt-2")
	if err != nil {
		t.Fatalf("lookup logged event: %v", err)
	}
	if found.ID != instance.ID {
		t.Fatalf("instance = %s, want %s", found.ID, instance.ID)
	}
}
