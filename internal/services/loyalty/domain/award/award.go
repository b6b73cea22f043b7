// Package award evaluates a template's rule set against one event and
// produces the stamp award decision for that event.
package award

import (
	"sort"

	"github.com/selo-app/selo/internal/services/loyalty/domain/event"
	"github.com/selo-app/selo/internal/services/loyalty/domain/rule"
)

// Decision is the outcome of evaluating one event against a rule set.
type Decision struct {
	// Quantum is the number of stamps to apply, after multipliers and the
	// remaining-capacity cap. Zero means no rule matched.
	Quantum int
	// RuleIDs lists the rules that contributed, in evaluation order.
	// Multiplier rules that fired are included.
	RuleIDs []string
	// ConfigVersion is the rule-set snapshot version the decision was made
	// under; the caller sets it from the snapshot it evaluated.
	ConfigVersion int64
	// Capped reports whether the remaining-capacity cap truncated the award.
	Capped bool
}

// Evaluate scores ev against the template's rules and returns the decision.
//
// Rules run in ascending Order; ties break by ID so the result is stable.
// Inactive rules are skipped. Within a non-empty exclusivity group only the
// first matching rule contributes. Additive quanta are summed, then the
// highest matching multiplier (if any) scales the sum, and finally the award
// is capped at the instance's remaining capacity so stamps never exceed the
// card total.
func Evaluate(rules []rule.Rule, ev event.Event, h event.History, remaining int) Decision {
	ordered := make([]rule.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})

	var (
		decision   Decision
		base       int
		multiplier = 1
		matched    = map[string]bool{}
	)
	for _, r := range ordered {
		if !r.Active {
			continue
		}
		if r.ExclusivityGroup != "" && matched[r.ExclusivityGroup] {
			continue
		}

		if factor, ok := rule.Multiplier(r, ev); ok {
			if factor > multiplier {
				multiplier = factor
			}
			decision.RuleIDs = append(decision.RuleIDs, r.ID)
			if r.ExclusivityGroup != "" {
				matched[r.ExclusivityGroup] = true
			}
			continue
		}

		quantum := rule.Evaluate(r, ev, h)
		if quantum <= 0 {
			continue
		}
		base += quantum
		decision.RuleIDs = append(decision.RuleIDs, r.ID)
		if r.ExclusivityGroup != "" {
			matched[r.ExclusivityGroup] = true
		}
	}

	if base == 0 {
		// A multiplier with nothing to multiply awards nothing.
		decision.RuleIDs = nil
		return decision
	}

	decision.Quantum = base * multiplier
	if remaining >= 0 && decision.Quantum > remaining {
		decision.Quantum = remaining
		decision.Capped = true
	}
	return decision
}
