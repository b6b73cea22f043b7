// Package storage defines the persistence contracts for the loyalty service.
package storage

import (
	"context"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/domain/money"
	"github.com/selo-app/selo/internal/services/loyalty/filter"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity" states
// and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// TemplateRecord captures a card template row, including the monotonically
// increasing configuration version bumped by every configuration write.
type TemplateRecord struct {
	ID            string
	CompanyRef    string
	Title         string
	StampTotal    int
	PerUserLimit  int
	EmissionLimit *int64
	EmissionStart *time.Time
	EmissionEnd   *time.Time
	Active        bool
	ConfigVersion int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RuleRecord captures a persisted rule with its kind-specific configuration
// payload stored as validated JSON.
type RuleRecord struct {
	ID               string
	TemplateID       string
	Kind             string
	Config           []byte
	Order            int
	Active           bool
	ExclusivityGroup string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RewardLinkRecord captures a reward attached to a stamp position.
// Stock is the remaining redeemable count; nil means unlimited.
type RewardLinkRecord struct {
	ID           string
	TemplateID   string
	Name         string
	StampNo      int
	InitialStock *int64
	Stock        *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConfigSnapshot is a template's full configuration read atomically at one
// version. Award evaluation pins the version it saw.
type ConfigSnapshot struct {
	Template TemplateRecord
	Rules    []RuleRecord
	Links    []RewardLinkRecord
	Version  int64
}

// ConfigRevisionRecord is one appended configuration history row.
type ConfigRevisionRecord struct {
	TemplateID string
	Version    int64
	Payload    []byte
	CreatedAt  time.Time
}

// InstanceRecord captures one user's card instance. Version guards optimistic
// concurrency on stamp application.
type InstanceRecord struct {
	ID          string
	TemplateID  string
	UserRef     string
	StampsGiven int
	StampTotal  int
	Version     int64
	IssuedAt    time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// StampRecord captures one immutable stamp slot on an instance.
type StampRecord struct {
	InstanceID    string
	StampNo       int
	SourceEventID string
	ConfigVersion int64
	CreatedAt     time.Time
}

// Dedup states for event processing.
const (
	DedupStatePending = "pending"
	DedupStateApplied = "applied"
)

// DedupRecord tracks one source event through the idempotency gate.
type DedupRecord struct {
	SourceEventID string
	State         string
	InstanceID    string
	Outcome       string
	StampsAwarded int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventLogRecord is one qualifying event in an instance's history, consumed
// by frequency and recency predicates. RuleIDs lists the rules that awarded
// on this event.
type EventLogRecord struct {
	ID            string
	InstanceID    string
	SourceEventID string
	Type          string
	OccurredAt    time.Time
	Amount        money.Cents
	BranchRef     string
	CategoryRefs  []string
	ItemRefs      []string
	ItemUnits     map[string]int
	RuleIDs       []string
	StampsAwarded int
	CreatedAt     time.Time
}

// RedemptionRecord tracks one reward redemption and its single-use token.
// TokenID doubles as the minted token's jti.
type RedemptionRecord struct {
	ID         string
	InstanceID string
	LinkID     string
	TokenID    string
	Used       bool
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// ListTemplatesQuery bounds a template listing.
type ListTemplatesQuery struct {
	CompanyRef string
	Filter     filter.SQLCondition
	Limit      int
}

// ApplyAwardParams carries one stamp application attempt.
type ApplyAwardParams struct {
	InstanceID string
	// ExpectedVersion is the instance version the award was computed against.
	ExpectedVersion int64
	Quantum         int
	SourceEventID   string
	ConfigVersion   int64
	Now             time.Time
}

// ConfigStore persists templates, rules, and reward links, and maintains the
// versioned configuration history.
type ConfigStore interface {
	CreateTemplate(ctx context.Context, record TemplateRecord) (TemplateRecord, error)
	GetTemplate(ctx context.Context, id string) (TemplateRecord, error)
	ListTemplates(ctx context.Context, query ListTemplatesQuery) ([]TemplateRecord, error)
	UpdateTemplate(ctx context.Context, record TemplateRecord) (TemplateRecord, error)

	CreateRule(ctx context.Context, record RuleRecord) (RuleRecord, error)
	UpdateRule(ctx context.Context, record RuleRecord) (RuleRecord, error)
	ListRules(ctx context.Context, templateID string) ([]RuleRecord, error)

	CreateRewardLink(ctx context.Context, record RewardLinkRecord) (RewardLinkRecord, error)
	ListRewardLinks(ctx context.Context, templateID string) ([]RewardLinkRecord, error)

	// Snapshot reads the template with all of its rules and links in one
	// transaction, pinned at the current configuration version. Evaluation
	// filters inactive rules itself so revisions stay reconstructible.
	Snapshot(ctx context.Context, templateID string) (ConfigSnapshot, error)
	ListRevisions(ctx context.Context, templateID string, limit int) ([]ConfigRevisionRecord, error)
}

// InstanceStore persists card instances and applies stamp awards under
// optimistic concurrency.
type InstanceStore interface {
	// IssueInstance creates a new instance after re-checking the template's
	// issuance limits inside the transaction.
	IssueInstance(ctx context.Context, templateID, userRef string, now time.Time) (InstanceRecord, error)
	GetInstance(ctx context.Context, id string) (InstanceRecord, error)
	// OpenInstance returns the user's most recent uncompleted instance for
	// the template, or ErrNotFound.
	OpenInstance(ctx context.Context, templateID, userRef string) (InstanceRecord, error)
	// InstanceBySourceEvent returns the instance a source event already
	// stamped or logged, or ErrNotFound. Resumed submissions use it to stay
	// on the instance a crashed attempt touched.
	InstanceBySourceEvent(ctx context.Context, sourceEventID string) (InstanceRecord, error)
	// ApplyAward inserts sequential stamps and advances the instance version
	// atomically. A version mismatch returns CONCURRENCY_CONFLICT. A source
	// event that already minted stamps, on any instance, returns the holding
	// instance unchanged instead of inserting again.
	ApplyAward(ctx context.Context, params ApplyAwardParams) (InstanceRecord, error)
	ListStamps(ctx context.Context, instanceID string) ([]StampRecord, error)
}

// DedupStore is the event idempotency gate.
type DedupStore interface {
	// AdmitEvent inserts a pending row for the source event. When a row
	// already exists it is returned with admitted=false; a pending row means
	// a prior attempt crashed and processing may resume.
	AdmitEvent(ctx context.Context, sourceEventID string, now time.Time) (DedupRecord, bool, error)
	// FinalizeEvent flips a pending row to applied with the stored outcome.
	// It runs only after the instance update committed. An already-applied
	// row keeps its first outcome; finalizing it again is a no-op.
	FinalizeEvent(ctx context.Context, sourceEventID, outcome, instanceID string, stampsAwarded int, now time.Time) error
	// PruneDedup deletes applied rows older than the cutoff and returns the
	// number removed.
	PruneDedup(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventLogStore persists the qualifying-event history predicates read.
type EventLogStore interface {
	AppendEvent(ctx context.Context, record EventLogRecord) error
	ListEvents(ctx context.Context, instanceID string) ([]EventLogRecord, error)
}

// RedemptionStore manages reward unlocks and single-use redemption tokens.
type RedemptionStore interface {
	// ListUnlocked returns reward links whose stamp position the instance has
	// reached, excluding links already redeemed for it.
	ListUnlocked(ctx context.Context, instanceID string) ([]RewardLinkRecord, error)
	// Redeem atomically re-checks the unlock, decrements bounded stock, and
	// inserts an unused redemption carrying the token id.
	Redeem(ctx context.Context, instanceID, linkID, redemptionID, tokenID string, now time.Time) (RedemptionRecord, error)
	// ConsumeByTokenID marks the redemption used exactly once. A second
	// consume returns TOKEN_ALREADY_USED; an unknown token id TOKEN_INVALID.
	ConsumeByTokenID(ctx context.Context, tokenID string, now time.Time) (RedemptionRecord, error)
	ListRedemptions(ctx context.Context, instanceID string) ([]RedemptionRecord, error)
}

// Store aggregates every persistence contract the loyalty service uses.
type Store interface {
	ConfigStore
	InstanceStore
	DedupStore
	EventLogStore
	RedemptionStore
	Close() error
}
