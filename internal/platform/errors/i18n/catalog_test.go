package i18n

import "testing"

func TestGetCatalogFallsBackToBase(t *testing.T) {
	c := GetCatalog("fr-FR")
	if c.Locale() != BaseLocale {
		t.Fatalf("locale = %q, want %q", c.Locale(), BaseLocale)
	}
	if c := GetCatalog(""); c.Locale() != BaseLocale {
		t.Fatalf("empty locale = %q, want %q", c.Locale(), BaseLocale)
	}
}

func TestGetCatalogMatchesRegionalVariants(t *testing.T) {
	c := GetCatalog("pt")
	if c.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", c.Locale())
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	c := GetCatalog("en-US")
	got := c.Format(CodeRuleKindUnknown, map[string]string{"Kind": "mystery"})
	want := "Unknown rule kind mystery."
	if got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}

func TestFormatUnknownCodeReturnsCode(t *testing.T) {
	c := GetCatalog("en-US")
	if got := c.Format("NO_SUCH_CODE", nil); got != "NO_SUCH_CODE" {
		t.Fatalf("format = %q, want code passthrough", got)
	}
}

func TestCatalogsCoverSameCodes(t *testing.T) {
	for code := range enUS {
		if _, ok := ptBR[code]; !ok {
			t.Fatalf("pt-BR catalog missing code %s", code)
		}
	}
	for code := range ptBR {
		if _, ok := enUS[code]; !ok {
			t.Fatalf("en-US catalog missing code %s", code)
		}
	}
}
