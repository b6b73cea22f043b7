package award

import (
	"reflect"
	"testing"
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/domain/event"
	"github.com/selo-app/selo/internal/services/loyalty/domain/rule"
)

var evalTime = time.Date(2026, 5, 12, 15, 30, 0, 0, time.UTC)

func TestEvaluateSumsAdditiveRulesInOrder(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r2", Order: 2, Active: true, Config: rule.CategoryConfig{CategoryRefs: []string{"coffee"}, Stamps: 2}},
		{ID: "r1", Order: 1, Active: true, Config: rule.ValueSpentConfig{MinAmount: 1000, Stamps: 1}},
	}
	ev := event.Event{Amount: 2500, CategoryRefs: []string{"coffee"}, OccurredAt: evalTime}

	d := Evaluate(rules, ev, event.History{}, 10)
	if d.Quantum != 3 {
		t.Fatalf("quantum = %d, want 3", d.Quantum)
	}
	if want := []string{"r1", "r2"}; !reflect.DeepEqual(d.RuleIDs, want) {
		t.Fatalf("rule ids = %v, want %v", d.RuleIDs, want)
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: false, Config: rule.ValueSpentConfig{MinAmount: 0, Stamps: 5}},
		{ID: "r2", Order: 2, Active: true, Config: rule.ValueSpentConfig{MinAmount: 0, Stamps: 1}},
	}

	d := Evaluate(rules, event.Event{Amount: 100, OccurredAt: evalTime}, event.History{}, 10)
	if d.Quantum != 1 {
		t.Fatalf("quantum = %d, want 1", d.Quantum)
	}
	if want := []string{"r2"}; !reflect.DeepEqual(d.RuleIDs, want) {
		t.Fatalf("rule ids = %v, want %v", d.RuleIDs, want)
	}
}

func TestEvaluateExclusivityGroupShortCircuits(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: true, ExclusivityGroup: "spend", Config: rule.ValueSpentConfig{MinAmount: 5000, Stamps: 3}},
		{ID: "r2", Order: 2, Active: true, ExclusivityGroup: "spend", Config: rule.ValueSpentConfig{MinAmount: 1000, Stamps: 1}},
		{ID: "r3", Order: 3, Active: true, Config: rule.BranchConfig{BranchRefs: []string{"centro"}, Stamps: 1}},
	}
	ev := event.Event{Amount: 6000, BranchRef: "centro", OccurredAt: evalTime}

	d := Evaluate(rules, ev, event.History{}, 10)
	if d.Quantum != 4 {
		t.Fatalf("quantum = %d, want 4 (higher tier plus branch)", d.Quantum)
	}
	if want := []string{"r1", "r3"}; !reflect.DeepEqual(d.RuleIDs, want) {
		t.Fatalf("rule ids = %v, want %v", d.RuleIDs, want)
	}

	// Below the first tier the second rule in the group still applies.
	d = Evaluate(rules, event.Event{Amount: 1500, OccurredAt: evalTime}, event.History{}, 10)
	if d.Quantum != 1 {
		t.Fatalf("lower tier quantum = %d, want 1", d.Quantum)
	}
}

func TestEvaluateAppliesHighestMultiplier(t *testing.T) {
	weekday := int(evalTime.Weekday())
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: true, Config: rule.ValueSpentConfig{MinAmount: 1000, Stamps: 2}},
		{ID: "r2", Order: 2, Active: true, Config: rule.SpecialDateConfig{Weekdays: []int{weekday}, Multiplier: 2}},
		{ID: "r3", Order: 3, Active: true, Config: rule.SpecialDateConfig{Dates: []string{"05-12"}, Multiplier: 3}},
	}
	ev := event.Event{Amount: 2000, OccurredAt: evalTime}

	d := Evaluate(rules, ev, event.History{}, 10)
	if d.Quantum != 6 {
		t.Fatalf("quantum = %d, want 6 (base 2 x highest multiplier 3)", d.Quantum)
	}
	if want := []string{"r1", "r2", "r3"}; !reflect.DeepEqual(d.RuleIDs, want) {
		t.Fatalf("rule ids = %v, want %v", d.RuleIDs, want)
	}
}

func TestEvaluateMultiplierAloneAwardsNothing(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: true, Config: rule.SpecialDateConfig{Weekdays: []int{int(evalTime.Weekday())}, Multiplier: 2}},
	}

	d := Evaluate(rules, event.Event{OccurredAt: evalTime}, event.History{}, 10)
	if d.Quantum != 0 {
		t.Fatalf("quantum = %d, want 0", d.Quantum)
	}
	if d.RuleIDs != nil {
		t.Fatalf("rule ids = %v, want none", d.RuleIDs)
	}
}

func TestEvaluateCapsAtRemainingCapacity(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: true, Config: rule.ItemMultiplierConfig{ItemRef: "espresso", StampsPerUnit: 3}},
	}
	ev := event.Event{ItemUnits: map[string]int{"espresso": 4}, OccurredAt: evalTime}

	d := Evaluate(rules, ev, event.History{}, 2)
	if d.Quantum != 2 {
		t.Fatalf("quantum = %d, want 2", d.Quantum)
	}
	if !d.Capped {
		t.Fatal("expected decision to report capping")
	}

	d = Evaluate(rules, ev, event.History{}, 0)
	if d.Quantum != 0 || !d.Capped {
		t.Fatalf("full card decision = %+v, want quantum 0 capped", d)
	}
}

func TestEvaluateNoMatchingRules(t *testing.T) {
	rules := []rule.Rule{
		{ID: "r1", Order: 1, Active: true, Config: rule.ValueSpentConfig{MinAmount: 10000, Stamps: 1}},
	}

	d := Evaluate(rules, event.Event{Amount: 500, OccurredAt: evalTime}, event.History{}, 10)
	if d.Quantum != 0 || d.Capped || d.RuleIDs != nil {
		t.Fatalf("decision = %+v, want zero value", d)
	}
}

func TestEvaluateOrderTieBreaksByID(t *testing.T) {
	rules := []rule.Rule{
		{ID: "rb", Order: 1, Active: true, ExclusivityGroup: "g", Config: rule.ValueSpentConfig{MinAmount: 0, Stamps: 2}},
		{ID: "ra", Order: 1, Active: true, ExclusivityGroup: "g", Config: rule.ValueSpentConfig{MinAmount: 0, Stamps: 1}},
	}

	d := Evaluate(rules, event.Event{Amount: 100, OccurredAt: evalTime}, event.History{}, 10)
	if want := []string{"ra"}; !reflect.DeepEqual(d.RuleIDs, want) {
		t.Fatalf("rule ids = %v, want %v", d.RuleIDs, want)
	}
	if d.Quantum != 1 {
		t.Fatalf("quantum = %d, want 1", d.Quantum)
	}
}
