package rule

import (
	"errors"
	"testing"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

func TestUnmarshalConfigRoundTrip(t *testing.T) {
	raw, err := MarshalConfig(ValueSpentConfig{MinAmount: 5000, Stamps: 1})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}

	cfg, err := UnmarshalConfig(KindValueSpent, raw)
	if err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	parsed, ok := cfg.(ValueSpentConfig)
	if !ok {
		t.Fatalf("config type = %T, want ValueSpentConfig", cfg)
	}
	if parsed.MinAmount != 5000 || parsed.Stamps != 1 {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestUnmarshalConfigRejectsUnknownKind(t *testing.T) {
	_, err := UnmarshalConfig("mystery", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T, want *apperrors.Error", err)
	}
	if domainErr.Code != apperrors.CodeRuleKindUnknown {
		t.Fatalf("code = %s, want %s", domainErr.Code, apperrors.CodeRuleKindUnknown)
	}
}

func TestUnmarshalConfigRejectsUnknownFields(t *testing.T) {
	_, err := UnmarshalConfig(KindValueSpent, []byte(`{"min_amount_cents":100,"stamps":1,"bogus":true}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeRuleConfigInvalid {
		t.Fatalf("err = %v, want RULE_CONFIG_INVALID", err)
	}
}

func TestUnmarshalConfigValidatesSchema(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		raw  string
	}{
		{"value_spent zero stamps", KindValueSpent, `{"min_amount_cents":100,"stamps":0}`},
		{"visit_count zero visits", KindVisitCount, `{"visits":0,"stamps":1}`},
		{"event_trigger empty name", KindEventTrigger, `{"event_name":"","stamps":1}`},
		{"frequency single event", KindFrequencyWindow, `{"min_events":1,"window_days":30,"bonus_stamps":2}`},
		{"recurrence zero days", KindRecurrence, `{"within_days":0,"stamps":1}`},
		{"category empty refs", KindCategory, `{"category_refs":[],"stamps":1}`},
		{"product empty ref value", KindProduct, `{"product_refs":[""],"stamps":1}`},
		{"special_date no match set", KindSpecialDate, `{"multiplier":2}`},
		{"special_date bad date", KindSpecialDate, `{"dates":["13-45"],"multiplier":2}`},
		{"special_date multiplier one", KindSpecialDate, `{"weekdays":[2],"multiplier":1}`},
		{"branch empty refs", KindBranch, `{"branch_refs":[],"stamps":1}`},
		{"item empty ref", KindItemMultiplier, `{"item_ref":"","stamps_per_unit":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalConfig(tc.kind, []byte(tc.raw))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("error type = %T, want *apperrors.Error", err)
			}
		})
	}
}

func TestMarshalConfigRejectsInvalid(t *testing.T) {
	if _, err := MarshalConfig(VisitCountConfig{Visits: 0, Stamps: 1}); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if _, err := MarshalConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestEveryKindHasDecoder(t *testing.T) {
	samples := map[Kind]string{
		KindValueSpent:      `{"min_amount_cents":100,"stamps":1}`,
		KindVisitCount:      `{"visits":3,"stamps":1}`,
		KindEventTrigger:    `{"event_name":"signup","stamps":1}`,
		KindFrequencyWindow: `{"min_events":3,"window_days":30,"bonus_stamps":2}`,
		KindRecurrence:      `{"within_days":7,"stamps":1}`,
		KindCategory:        `{"category_refs":["coffee"],"stamps":1}`,
		KindProduct:         `{"product_refs":["espresso"],"stamps":1}`,
		KindSpecialDate:     `{"weekdays":[2],"multiplier":2}`,
		KindBranch:          `{"branch_refs":["centro"],"stamps":1}`,
		KindItemMultiplier:  `{"item_ref":"espresso","stamps_per_unit":1}`,
	}
	for _, kind := range Kinds() {
		raw, ok := samples[kind]
		if !ok {
			t.Fatalf("no sample payload for kind %s", kind)
		}
		cfg, err := UnmarshalConfig(kind, []byte(raw))
		if err != nil {
			t.Fatalf("unmarshal %s: %v", kind, err)
		}
		if cfg.Kind() != kind {
			t.Fatalf("kind = %s, want %s", cfg.Kind(), kind)
		}
	}
}
