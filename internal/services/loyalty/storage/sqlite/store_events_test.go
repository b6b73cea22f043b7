package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

func TestAppendAndListEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, instance := seedInstanceWithStamps(t, store, 0, nil)

	second := storage.EventLogRecord{
		InstanceID:    instance.ID,
		SourceEventID: "evt-2",
		Type:          "purchase",
		OccurredAt:    storeNow.Add(time.Hour),
		Amount:        2500,
		BranchRef:     "centro",
		CategoryRefs:  []string{"coffee"},
		ItemUnits:     map[string]int{"espresso": 2},
		RuleIDs:       []string{"r1", "r2"},
		StampsAwarded: 3,
	}
	first := storage.EventLogRecord{
		InstanceID:    instance.ID,
		SourceEventID: "evt-1",
		Type:          "purchase",
		OccurredAt:    storeNow,
		Amount:        1000,
	}
	if err := store.AppendEvent(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}
	if err := store.AppendEvent(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}

	events, err := store.ListEvents(ctx, instance.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].SourceEventID != "evt-1" || events[1].SourceEventID != "evt-2" {
		t.Fatalf("order = %s, %s; want oldest first", events[0].SourceEventID, events[1].SourceEventID)
	}
	got := events[1]
	if got.Amount != 2500 || got.BranchRef != "centro" || got.StampsAwarded != 3 {
		t.Fatalf("event = %+v", got)
	}
	if len(got.CategoryRefs) != 1 || got.CategoryRefs[0] != "coffee" {
		t.Fatalf("category refs = %v", got.CategoryRefs)
	}
	if got.ItemUnits["espresso"] != 2 {
		t.Fatalf("item units = %v", got.ItemUnits)
	}
	if len(got.RuleIDs) != 2 {
		t.Fatalf("rule ids = %v", got.RuleIDs)
	}
}

func TestAppendEventRequiresIdentity(t *testing.T) {
	store := newTestStore(t)
	err := store.AppendEvent(context.Background(), storage.EventLogRecord{
		SourceEventID: "evt-1",
		OccurredAt:    storeNow,
	})
	if err == nil {
		t.Fatal("expected error for missing instance id")
	}
}
