package rule

import (
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/domain/event"
)

// Evaluate returns the additive stamp quantum rule r contributes for ev, or
// zero when the rule does not match. It is pure and total: malformed or
// missing history data means "no match", never an error. Multiplier kinds
// contribute nothing here; see Multiplier.
func Evaluate(r Rule, ev event.Event, h event.History) int {
	if !r.Active || r.Config == nil {
		return 0
	}

	switch cfg := r.Config.(type) {
	case ValueSpentConfig:
		if ev.Amount >= cfg.MinAmount && ev.Amount > 0 {
			return cfg.Stamps
		}
		return 0

	case VisitCountConfig:
		// The current event counts as a visit.
		visits := h.VisitCount() + 1
		if visits%cfg.Visits == 0 {
			return cfg.Stamps
		}
		return 0

	case EventTriggerConfig:
		if ev.Type != cfg.EventName {
			return 0
		}
		if cfg.Once {
			if _, awarded := h.LastAwardAt(r.ID); awarded {
				return 0
			}
		}
		return cfg.Stamps

	case FrequencyWindowConfig:
		if ev.OccurredAt.IsZero() {
			return 0
		}
		if ev.Amount < cfg.MinAmount {
			return 0
		}
		if last, awarded := h.LastAwardAt(r.ID); awarded && cfg.CooldownDays > 0 {
			cooldownEnd := last.Add(time.Duration(cfg.CooldownDays) * 24 * time.Hour)
			if ev.OccurredAt.Before(cooldownEnd) {
				return 0
			}
		}
		cutoff := ev.OccurredAt.Add(-time.Duration(cfg.WindowDays) * 24 * time.Hour)
		qualifying := h.CountSince(cutoff, cfg.MinAmount) + 1
		if qualifying >= cfg.MinEvents {
			return cfg.BonusStamps
		}
		return 0

	case RecurrenceConfig:
		if ev.OccurredAt.IsZero() {
			return 0
		}
		last, ok := h.LastEventAt()
		if !ok {
			return 0
		}
		gap := ev.OccurredAt.Sub(last)
		if gap < 0 {
			return 0
		}
		if gap <= time.Duration(cfg.WithinDays)*24*time.Hour {
			return cfg.Stamps
		}
		return 0

	case CategoryConfig:
		if intersects(ev.CategoryRefs, cfg.CategoryRefs) {
			return cfg.Stamps
		}
		return 0

	case ProductConfig:
		if intersects(ev.ItemRefs, cfg.ProductRefs) {
			return cfg.Stamps
		}
		return 0

	case BranchConfig:
		if ev.BranchRef == "" {
			return 0
		}
		for _, ref := range cfg.BranchRefs {
			if ref == ev.BranchRef {
				return cfg.Stamps
			}
		}
		return 0

	case ItemMultiplierConfig:
		units := ev.ItemUnits[cfg.ItemRef]
		if units <= 0 {
			return 0
		}
		quantum := units * cfg.StampsPerUnit
		if cfg.MaxStamps > 0 && quantum > cfg.MaxStamps {
			quantum = cfg.MaxStamps
		}
		return quantum

	case SpecialDateConfig:
		return 0

	default:
		// Unknown kinds are rejected at write time; an unexpected config in
		// history is treated as "does not match".
		return 0
	}
}

// Multiplier returns the factor a multiplier-kind rule applies to the event's
// additive award, and whether the rule matched. Non-multiplier kinds never
// match.
func Multiplier(r Rule, ev event.Event) (int, bool) {
	if !r.Active || r.Config == nil {
		return 1, false
	}
	cfg, ok := r.Config.(SpecialDateConfig)
	if !ok {
		return 1, false
	}
	if ev.OccurredAt.IsZero() {
		return 1, false
	}

	day := ev.OccurredAt.UTC().Format("01-02")
	for _, d := range cfg.Dates {
		if d == day {
			return cfg.Multiplier, true
		}
	}
	weekday := int(ev.OccurredAt.UTC().Weekday())
	for _, w := range cfg.Weekdays {
		if w == weekday {
			return cfg.Multiplier, true
		}
	}
	return 1, false
}

func intersects(values, allowed []string) bool {
	if len(values) == 0 || len(allowed) == 0 {
		return false
	}
	for _, v := range values {
		for _, a := range allowed {
			if v != "" && v == a {
				return true
			}
		}
	}
	return false
}
