package rule

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

// UnmarshalConfig decodes and validates a kind-discriminated configuration
// payload. Unknown kinds and unknown fields are rejected, never ignored.
func UnmarshalConfig(kind Kind, raw []byte) (Config, error) {
	var cfg Config
	switch kind {
	case KindValueSpent:
		cfg = &ValueSpentConfig{}
	case KindVisitCount:
		cfg = &VisitCountConfig{}
	case KindEventTrigger:
		cfg = &EventTriggerConfig{}
	case KindFrequencyWindow:
		cfg = &FrequencyWindowConfig{}
	case KindRecurrence:
		cfg = &RecurrenceConfig{}
	case KindCategory:
		cfg = &CategoryConfig{}
	case KindProduct:
		cfg = &ProductConfig{}
	case KindSpecialDate:
		cfg = &SpecialDateConfig{}
	case KindBranch:
		cfg = &BranchConfig{}
	case KindItemMultiplier:
		cfg = &ItemMultiplierConfig{}
	default:
		return nil, apperrors.WithMetadata(
			apperrors.CodeRuleKindUnknown,
			fmt.Sprintf("unknown rule kind %q", kind),
			map[string]string{"Kind": string(kind)},
		)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, apperrors.WithMetadata(
			apperrors.CodeRuleConfigInvalid,
			fmt.Sprintf("decode %s config: %v", kind, err),
			map[string]string{"Reason": err.Error()},
		)
	}

	value := dereference(cfg)
	if err := value.Validate(); err != nil {
		return nil, err
	}
	return value, nil
}

// MarshalConfig encodes a validated configuration payload for persistence.
func MarshalConfig(cfg Config) ([]byte, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeRuleConfigInvalid, "rule configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.Kind(), err)
	}
	return raw, nil
}

// dereference converts the decode targets back to value configs so that the
// rest of the engine works with comparable, copy-safe values.
func dereference(cfg Config) Config {
	switch v := cfg.(type) {
	case *ValueSpentConfig:
		return *v
	case *VisitCountConfig:
		return *v
	case *EventTriggerConfig:
		return *v
	case *FrequencyWindowConfig:
		return *v
	case *RecurrenceConfig:
		return *v
	case *CategoryConfig:
		return *v
	case *ProductConfig:
		return *v
	case *SpecialDateConfig:
		return *v
	case *BranchConfig:
		return *v
	case *ItemMultiplierConfig:
		return *v
	default:
		return cfg
	}
}
