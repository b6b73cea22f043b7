package template

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

func validTemplate() Template {
	return Template{
		ID:         "tpl-1",
		CompanyRef: "cmp-1",
		Title:      "Coffee Card",
		StampTotal: 10,
		Active:     true,
	}
}

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T (%v), want *apperrors.Error", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}

func TestValidate(t *testing.T) {
	if err := validTemplate().Validate(); err != nil {
		t.Fatalf("valid template: %v", err)
	}

	tpl := validTemplate()
	tpl.Title = ""
	wantCode(t, tpl.Validate(), apperrors.CodeTemplateTitleEmpty)

	tpl = validTemplate()
	tpl.StampTotal = 0
	wantCode(t, tpl.Validate(), apperrors.CodeTemplateStampTotalInvalid)

	tpl = validTemplate()
	tpl.CompanyRef = ""
	wantCode(t, tpl.Validate(), apperrors.CodeTemplateCompanyMissing)

	tpl = validTemplate()
	limit := int64(0)
	tpl.EmissionLimit = &limit
	wantCode(t, tpl.Validate(), apperrors.CodeTemplateLimitInvalid)

	tpl = validTemplate()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	tpl.EmissionStart = &start
	tpl.EmissionEnd = &end
	wantCode(t, tpl.Validate(), apperrors.CodeTemplateWindowInvalid)
}

func TestCanIssue(t *testing.T) {
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

	tpl := validTemplate()
	if err := tpl.CanIssue(now, 0, 0); err != nil {
		t.Fatalf("can issue: %v", err)
	}

	tpl = validTemplate()
	tpl.Active = false
	wantCode(t, tpl.CanIssue(now, 0, 0), apperrors.CodeTemplateInactive)

	tpl = validTemplate()
	tpl.PerUserLimit = 1
	wantCode(t, tpl.CanIssue(now, 1, 0), apperrors.CodePerUserLimitReached)

	tpl = validTemplate()
	limit := int64(100)
	tpl.EmissionLimit = &limit
	wantCode(t, tpl.CanIssue(now, 0, 100), apperrors.CodeEmissionLimitReached)

	tpl = validTemplate()
	start := now.Add(time.Hour)
	tpl.EmissionStart = &start
	wantCode(t, tpl.CanIssue(now, 0, 0), apperrors.CodeTemplateOutsideWindow)

	tpl = validTemplate()
	end := now
	tpl.EmissionEnd = &end
	wantCode(t, tpl.CanIssue(now, 0, 0), apperrors.CodeTemplateOutsideWindow)
}

func TestWindowEndIsExclusive(t *testing.T) {
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	tpl := validTemplate()
	end := now.Add(time.Nanosecond)
	tpl.EmissionEnd = &end
	if err := tpl.CanIssue(now, 0, 0); err != nil {
		t.Fatalf("issue just before window end: %v", err)
	}
}
