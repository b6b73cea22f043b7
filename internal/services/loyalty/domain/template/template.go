// Package template defines the merchant card blueprint and its issuance policy.
package template

import (
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

// Template is a merchant-defined stamp card blueprint.
type Template struct {
	ID         string
	CompanyRef string
	Title      string
	// StampTotal is fixed for the template's lifetime.
	StampTotal int
	// PerUserLimit caps instances per user; 0 means unlimited.
	PerUserLimit int
	// EmissionLimit caps instances ever issued; nil means uncapped.
	EmissionLimit *int64
	// EmissionStart/EmissionEnd bound the issuance window [start, end).
	EmissionStart *time.Time
	EmissionEnd   *time.Time
	// Active gates new issuance only; existing instances remain valid.
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks template configuration at write time.
func (t Template) Validate() error {
	if t.CompanyRef == "" {
		return apperrors.New(apperrors.CodeTemplateCompanyMissing, "template company reference is required")
	}
	if t.Title == "" {
		return apperrors.New(apperrors.CodeTemplateTitleEmpty, "template title is required")
	}
	if t.StampTotal < 1 {
		return apperrors.New(apperrors.CodeTemplateStampTotalInvalid, "stamp total must be at least 1")
	}
	if t.PerUserLimit < 0 {
		return apperrors.New(apperrors.CodeTemplateLimitInvalid, "per-user limit must not be negative")
	}
	if t.EmissionLimit != nil && *t.EmissionLimit < 1 {
		return apperrors.New(apperrors.CodeTemplateLimitInvalid, "emission limit must be at least 1")
	}
	if t.EmissionStart != nil && t.EmissionEnd != nil && !t.EmissionEnd.After(*t.EmissionStart) {
		return apperrors.New(apperrors.CodeTemplateWindowInvalid, "emission window end must come after start")
	}
	return nil
}

// CanIssue reports whether a new instance may be issued now, given how many
// instances the user already holds and how many were emitted overall.
// Completed instances still count toward the per-user limit: a finished card
// does not silently restart, it requires a fresh issuance within the cap.
func (t Template) CanIssue(now time.Time, userInstances int, emitted int64) error {
	if !t.Active {
		return apperrors.New(apperrors.CodeTemplateInactive, "template is not issuing new instances")
	}
	if t.EmissionStart != nil && now.Before(*t.EmissionStart) {
		return apperrors.New(apperrors.CodeTemplateOutsideWindow, "template emission window has not started")
	}
	if t.EmissionEnd != nil && !now.Before(*t.EmissionEnd) {
		return apperrors.New(apperrors.CodeTemplateOutsideWindow, "template emission window has ended")
	}
	if t.PerUserLimit > 0 && userInstances >= t.PerUserLimit {
		return apperrors.New(apperrors.CodePerUserLimitReached, "per-user instance limit reached")
	}
	if t.EmissionLimit != nil && emitted >= *t.EmissionLimit {
		return apperrors.New(apperrors.CodeEmissionLimitReached, "template emission limit reached")
	}
	return nil
}
