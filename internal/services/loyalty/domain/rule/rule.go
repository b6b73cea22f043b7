// Package rule defines the closed set of merchant-configurable rule kinds,
// their write-time validation, and the pure predicates that score one event.
package rule

import (
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/domain/money"
)

// Kind discriminates the closed set of rule configurations.
type Kind string

const (
	KindValueSpent      Kind = "value_spent"
	KindVisitCount      Kind = "visit_count"
	KindEventTrigger    Kind = "event_trigger"
	KindFrequencyWindow Kind = "frequency_window"
	KindRecurrence      Kind = "recurrence"
	KindCategory        Kind = "category"
	KindProduct         Kind = "product"
	KindSpecialDate     Kind = "special_date"
	KindBranch          Kind = "branch"
	KindItemMultiplier  Kind = "item_multiplier"
)

// Kinds lists every supported rule kind.
func Kinds() []Kind {
	return []Kind{
		KindValueSpent,
		KindVisitCount,
		KindEventTrigger,
		KindFrequencyWindow,
		KindRecurrence,
		KindCategory,
		KindProduct,
		KindSpecialDate,
		KindBranch,
		KindItemMultiplier,
	}
}

// Config is one kind's validated configuration payload.
type Config interface {
	Kind() Kind
	// Validate checks the kind-specific schema. It runs at write time only;
	// evaluation assumes configurations are already valid.
	Validate() error
}

// Rule is one merchant-defined award condition on a card template.
type Rule struct {
	ID         string
	TemplateID string
	// Order is the evaluation priority, ascending.
	Order  int
	Active bool
	// ExclusivityGroup names a short-circuit group: once any rule in a
	// non-empty group matches, later rules of the same group are skipped.
	ExclusivityGroup string
	Config           Config
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Kind returns the rule's configuration kind.
func (r Rule) Kind() Kind {
	if r.Config == nil {
		return ""
	}
	return r.Config.Kind()
}

func configInvalid(reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeRuleConfigInvalid,
		"rule configuration is invalid: "+reason,
		map[string]string{"Reason": reason},
	)
}

// ValueSpentConfig awards stamps when a single purchase reaches a threshold.
type ValueSpentConfig struct {
	MinAmount money.Cents `json:"min_amount_cents"`
	Stamps    int         `json:"stamps"`
}

func (ValueSpentConfig) Kind() Kind { return KindValueSpent }

func (c ValueSpentConfig) Validate() error {
	if c.MinAmount < 0 {
		return configInvalid("min_amount_cents must not be negative")
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// VisitCountConfig awards stamps on every n-th visit.
type VisitCountConfig struct {
	Visits int `json:"visits"`
	Stamps int `json:"stamps"`
}

func (VisitCountConfig) Kind() Kind { return KindVisitCount }

func (c VisitCountConfig) Validate() error {
	if c.Visits < 1 {
		return configInvalid("visits must be at least 1")
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// EventTriggerConfig awards stamps when a named custom event arrives.
type EventTriggerConfig struct {
	EventName string `json:"event_name"`
	Stamps    int    `json:"stamps"`
	// Once restricts the award to the first matching event per instance.
	Once bool `json:"once,omitempty"`
}

func (EventTriggerConfig) Kind() Kind { return KindEventTrigger }

func (c EventTriggerConfig) Validate() error {
	if c.EventName == "" {
		return configInvalid("event_name is required")
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// FrequencyWindowConfig awards a bonus when enough qualifying events land
// inside a rolling window, with a cooldown between bonuses.
type FrequencyWindowConfig struct {
	MinEvents    int         `json:"min_events"`
	WindowDays   int         `json:"window_days"`
	MinAmount    money.Cents `json:"min_amount_cents,omitempty"`
	BonusStamps  int         `json:"bonus_stamps"`
	CooldownDays int         `json:"cooldown_days,omitempty"`
}

func (FrequencyWindowConfig) Kind() Kind { return KindFrequencyWindow }

func (c FrequencyWindowConfig) Validate() error {
	if c.MinEvents < 2 {
		return configInvalid("min_events must be at least 2")
	}
	if c.WindowDays < 1 {
		return configInvalid("window_days must be at least 1")
	}
	if c.MinAmount < 0 {
		return configInvalid("min_amount_cents must not be negative")
	}
	if c.BonusStamps < 1 {
		return configInvalid("bonus_stamps must be at least 1")
	}
	if c.CooldownDays < 0 {
		return configInvalid("cooldown_days must not be negative")
	}
	return nil
}

// RecurrenceConfig awards stamps when a customer returns within a window of
// their previous event.
type RecurrenceConfig struct {
	WithinDays int `json:"within_days"`
	Stamps     int `json:"stamps"`
}

func (RecurrenceConfig) Kind() Kind { return KindRecurrence }

func (c RecurrenceConfig) Validate() error {
	if c.WithinDays < 1 {
		return configInvalid("within_days must be at least 1")
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// CategoryConfig awards stamps for purchases in configured categories.
type CategoryConfig struct {
	CategoryRefs []string `json:"category_refs"`
	Stamps       int      `json:"stamps"`
}

func (CategoryConfig) Kind() Kind { return KindCategory }

func (c CategoryConfig) Validate() error {
	if len(c.CategoryRefs) == 0 {
		return configInvalid("category_refs must not be empty")
	}
	for _, ref := range c.CategoryRefs {
		if ref == "" {
			return configInvalid("category_refs must not contain empty values")
		}
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// ProductConfig awards stamps for purchases containing configured products.
type ProductConfig struct {
	ProductRefs []string `json:"product_refs"`
	Stamps      int      `json:"stamps"`
}

func (ProductConfig) Kind() Kind { return KindProduct }

func (c ProductConfig) Validate() error {
	if len(c.ProductRefs) == 0 {
		return configInvalid("product_refs must not be empty")
	}
	for _, ref := range c.ProductRefs {
		if ref == "" {
			return configInvalid("product_refs must not contain empty values")
		}
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// SpecialDateConfig multiplies the event's additive award on configured
// calendar dates or weekdays.
type SpecialDateConfig struct {
	// Dates holds "MM-DD" entries matched against the event date.
	Dates []string `json:"dates,omitempty"`
	// Weekdays holds time.Weekday values (0 = Sunday).
	Weekdays   []int `json:"weekdays,omitempty"`
	Multiplier int   `json:"multiplier"`
}

func (SpecialDateConfig) Kind() Kind { return KindSpecialDate }

func (c SpecialDateConfig) Validate() error {
	if len(c.Dates) == 0 && len(c.Weekdays) == 0 {
		return configInvalid("special_date requires dates or weekdays")
	}
	for _, d := range c.Dates {
		if _, err := time.Parse("01-02", d); err != nil {
			return configInvalid("dates entries must use MM-DD format")
		}
	}
	for _, w := range c.Weekdays {
		if w < 0 || w > 6 {
			return configInvalid("weekdays entries must be 0 through 6")
		}
	}
	if c.Multiplier < 2 {
		return configInvalid("multiplier must be at least 2")
	}
	return nil
}

// BranchConfig awards stamps for events at configured branches.
type BranchConfig struct {
	BranchRefs []string `json:"branch_refs"`
	Stamps     int      `json:"stamps"`
}

func (BranchConfig) Kind() Kind { return KindBranch }

func (c BranchConfig) Validate() error {
	if len(c.BranchRefs) == 0 {
		return configInvalid("branch_refs must not be empty")
	}
	for _, ref := range c.BranchRefs {
		if ref == "" {
			return configInvalid("branch_refs must not contain empty values")
		}
	}
	if c.Stamps < 1 {
		return configInvalid("stamps must be at least 1")
	}
	return nil
}

// ItemMultiplierConfig awards stamps per purchased unit of a specific item.
type ItemMultiplierConfig struct {
	ItemRef       string `json:"item_ref"`
	StampsPerUnit int    `json:"stamps_per_unit"`
	// MaxStamps caps the contribution of one event; 0 means uncapped.
	MaxStamps int `json:"max_stamps,omitempty"`
}

func (ItemMultiplierConfig) Kind() Kind { return KindItemMultiplier }

func (c ItemMultiplierConfig) Validate() error {
	if c.ItemRef == "" {
		return configInvalid("item_ref is required")
	}
	if c.StampsPerUnit < 1 {
		return configInvalid("stamps_per_unit must be at least 1")
	}
	if c.MaxStamps < 0 {
		return configInvalid("max_stamps must not be negative")
	}
	return nil
}
