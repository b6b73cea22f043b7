// Package event defines the inbound business event shape and the prefetched
// per-instance history that rule predicates evaluate against.
//
// Predicates never perform I/O: everything a rule may need (prior events,
// prior rule awards) is loaded into History before evaluation begins.
package event

import (
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/domain/money"
)

// Event is one inbound business occurrence (a purchase, a visit, a custom
// trigger) submitted by an external system such as a POS.
type Event struct {
	// SourceEventID is the caller-supplied idempotency key, unique per
	// real-world occurrence.
	SourceEventID string
	Type          string
	OccurredAt    time.Time
	UserRef       string
	TemplateRef   string
	Amount        money.Cents
	ItemRefs      []string
	CategoryRefs  []string
	BranchRef     string
	// ItemUnits maps an item reference to the purchased quantity, for
	// per-unit stamp rules.
	ItemUnits map[string]int
}

// PastEvent is one previously admitted event for the same instance.
type PastEvent struct {
	SourceEventID string
	Type          string
	OccurredAt    time.Time
	Amount        money.Cents
	BranchRef     string
}

// History is the prefetched evaluation context for one card instance.
// A zero History is valid and means "no prior activity".
type History struct {
	StampsGiven int
	IssuedAt    time.Time
	// Events holds prior admitted events for this instance, oldest first.
	Events []PastEvent
	// LastAwardByRule maps a rule id to the last time that rule contributed
	// stamps on this instance. Used for one-time bonuses and cooldowns.
	LastAwardByRule map[string]time.Time
}

// VisitCount returns the number of prior admitted events.
func (h History) VisitCount() int {
	return len(h.Events)
}

// LastEventAt returns the most recent prior event time.
func (h History) LastEventAt() (time.Time, bool) {
	if len(h.Events) == 0 {
		return time.Time{}, false
	}
	last := h.Events[len(h.Events)-1].OccurredAt
	for _, e := range h.Events {
		if e.OccurredAt.After(last) {
			last = e.OccurredAt
		}
	}
	if last.IsZero() {
		return time.Time{}, false
	}
	return last, true
}

// CountSince returns how many prior events at or after cutoff carry an amount
// of at least minAmount. Events with a zero timestamp are ignored.
func (h History) CountSince(cutoff time.Time, minAmount money.Cents) int {
	count := 0
	for _, e := range h.Events {
		if e.OccurredAt.IsZero() || e.OccurredAt.Before(cutoff) {
			continue
		}
		if e.Amount < minAmount {
			continue
		}
		count++
	}
	return count
}

// LastAwardAt returns when the given rule last contributed on this instance.
func (h History) LastAwardAt(ruleID string) (time.Time, bool) {
	if h.LastAwardByRule == nil {
		return time.Time{}, false
	}
	at, ok := h.LastAwardByRule[ruleID]
	if !ok || at.IsZero() {
		return time.Time{}, false
	}
	return at, true
}
