// Package engine orchestrates event ingestion: idempotency, configuration
// snapshots, rule evaluation, and stamp application with optimistic retry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/domain/award"
	"github.com/selo-app/selo/internal/services/loyalty/domain/event"
	"github.com/selo-app/selo/internal/services/loyalty/domain/rule"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
	"github.com/selo-app/selo/internal/services/loyalty/token"
)

// Outcome classifies the result of submitting one event.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNoAward       Outcome = "no_award"
	OutcomeLimitExceeded Outcome = "limit_exceeded"
)

// Config holds engine tuning read from the environment.
type Config struct {
	// MaxAwardAttempts bounds optimistic retries when concurrent awards
	// contend on one instance.
	MaxAwardAttempts int `env:"SELO_AWARD_MAX_ATTEMPTS" envDefault:"4"`
	// RetryBaseDelay is the first backoff step between award attempts.
	RetryBaseDelay time.Duration `env:"SELO_AWARD_RETRY_DELAY" envDefault:"25ms"`
	// DedupRetention is how long applied dedup rows are kept for replay
	// detection before PruneDedup may remove them.
	DedupRetention time.Duration `env:"SELO_DEDUP_RETENTION" envDefault:"720h"`
}

// Engine evaluates inbound events against merchant configuration and applies
// stamp awards.
type Engine struct {
	store  storage.Store
	tokens token.Config
	cfg    Config
	now    func() time.Time
}

// New builds an engine. A nil now defaults to time.Now.
func New(store storage.Store, tokens token.Config, cfg Config, now func() time.Time) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxAwardAttempts < 1 {
		cfg.MaxAwardAttempts = 4
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 25 * time.Millisecond
	}
	if cfg.DedupRetention <= 0 {
		cfg.DedupRetention = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, tokens: tokens, cfg: cfg, now: now}, nil
}

// Result is the outcome of one event submission.
type Result struct {
	Outcome       Outcome
	StampsAwarded int
	RuleIDs       []string
	ConfigVersion int64
	Instance      storage.InstanceRecord
	// Reason carries the limit code when Outcome is limit_exceeded.
	Reason apperrors.Code
}

// Submit runs one event through the full pipeline. Submitting the same source
// event id twice returns the first application's outcome without side effects.
func (e *Engine) Submit(ctx context.Context, ev event.Event) (Result, error) {
	if err := validateEvent(ev); err != nil {
		return Result{}, err
	}
	now := e.now().UTC()

	dedup, admitted, err := e.store.AdmitEvent(ctx, ev.SourceEventID, now)
	if err != nil {
		return Result{}, err
	}
	if !admitted && dedup.State == storage.DedupStateApplied {
		return e.replayResult(ctx, dedup)
	}
	if !admitted {
		// A pending row from a crashed attempt resumes here, pinned to the
		// instance that attempt already touched. Re-resolving could auto-issue
		// a fresh card and mint the same source event twice.
		result, resumed, err := e.resumePending(ctx, ev, now)
		if err != nil {
			return Result{}, err
		}
		if resumed {
			return result, nil
		}
	}

	snapshot, err := e.store.Snapshot(ctx, ev.TemplateRef)
	if err != nil {
		return Result{}, err
	}

	instance, err := e.resolveInstance(ctx, snapshot.Template.ID, ev.UserRef, now)
	if err != nil {
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) && isLimitCode(domainErr.Code) {
			if finalizeErr := e.store.FinalizeEvent(ctx, ev.SourceEventID, string(OutcomeLimitExceeded), "", 0, now); finalizeErr != nil {
				return Result{}, finalizeErr
			}
			return Result{Outcome: OutcomeLimitExceeded, Reason: domainErr.Code, ConfigVersion: snapshot.Version}, nil
		}
		return Result{}, err
	}

	rules, err := decodeRules(snapshot.Rules)
	if err != nil {
		return Result{}, err
	}

	for attempt := 0; ; attempt++ {
		history, err := e.buildHistory(ctx, instance)
		if err != nil {
			return Result{}, err
		}

		remaining := instance.StampTotal - instance.StampsGiven
		decision := award.Evaluate(rules, ev, history, remaining)
		if decision.Quantum == 0 {
			return e.finishNoAward(ctx, ev, instance, snapshot.Version, now)
		}

		updated, err := e.store.ApplyAward(ctx, storage.ApplyAwardParams{
			InstanceID:      instance.ID,
			ExpectedVersion: instance.Version,
			Quantum:         decision.Quantum,
			SourceEventID:   ev.SourceEventID,
			ConfigVersion:   snapshot.Version,
			Now:             now,
		})
		if err != nil {
			var domainErr *apperrors.Error
			if errors.As(err, &domainErr) && domainErr.Code == apperrors.CodeConcurrencyConflict {
				if attempt+1 >= e.cfg.MaxAwardAttempts {
					return Result{}, err
				}
				if err := e.backoff(ctx, attempt); err != nil {
					return Result{}, err
				}
				instance, err = e.store.GetInstance(ctx, instance.ID)
				if err != nil {
					return Result{}, err
				}
				continue
			}
			return Result{}, err
		}

		// A different instance, or a version that did not advance, means an
		// earlier attempt for this source event already minted the stamps and
		// ApplyAward returned the holding instance unchanged.
		if updated.ID != instance.ID || updated.Version == instance.Version {
			return e.finishReplayedAward(ctx, ev, updated, now)
		}

		if err := e.recordEvent(ctx, ev, instance.ID, decision.RuleIDs, decision.Quantum, now); err != nil {
			return Result{}, err
		}
		if err := e.store.FinalizeEvent(ctx, ev.SourceEventID, string(OutcomeApplied), instance.ID, decision.Quantum, now); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:       OutcomeApplied,
			StampsAwarded: decision.Quantum,
			RuleIDs:       decision.RuleIDs,
			ConfigVersion: snapshot.Version,
			Instance:      updated,
		}, nil
	}
}

// Issue creates a card instance on explicit consumer request, applying the
// same limit checks event-driven auto-issuance uses.
func (e *Engine) Issue(ctx context.Context, templateID, userRef string) (storage.InstanceRecord, error) {
	if templateID == "" {
		return storage.InstanceRecord{}, apperrors.New(apperrors.CodeEventTemplateEmpty, "template reference is required")
	}
	if userRef == "" {
		return storage.InstanceRecord{}, apperrors.New(apperrors.CodeEventUserEmpty, "user reference is required")
	}
	return e.store.IssueInstance(ctx, templateID, userRef, e.now().UTC())
}

// PruneDedup removes applied dedup rows older than the retention window and
// returns the number removed.
func (e *Engine) PruneDedup(ctx context.Context) (int64, error) {
	cutoff := e.now().UTC().Add(-e.cfg.DedupRetention)
	return e.store.PruneDedup(ctx, cutoff)
}

func validateEvent(ev event.Event) error {
	if ev.SourceEventID == "" {
		return apperrors.New(apperrors.CodeEventSourceIDEmpty, "source event id is required")
	}
	if ev.UserRef == "" {
		return apperrors.New(apperrors.CodeEventUserEmpty, "user reference is required")
	}
	if ev.TemplateRef == "" {
		return apperrors.New(apperrors.CodeEventTemplateEmpty, "template reference is required")
	}
	if ev.Amount < 0 {
		return apperrors.New(apperrors.CodeEventAmountInvalid, "amount must not be negative")
	}
	if ev.OccurredAt.IsZero() {
		return apperrors.New(apperrors.CodeEventTimeMissing, "occurred at is required")
	}
	return nil
}

func isLimitCode(code apperrors.Code) bool {
	switch code {
	case apperrors.CodeTemplateInactive,
		apperrors.CodeTemplateOutsideWindow,
		apperrors.CodePerUserLimitReached,
		apperrors.CodeEmissionLimitReached:
		return true
	}
	return false
}

// replayResult reconstructs the stored outcome for a duplicate submission.
func (e *Engine) replayResult(ctx context.Context, dedup storage.DedupRecord) (Result, error) {
	result := Result{
		Outcome:       OutcomeDuplicate,
		StampsAwarded: dedup.StampsAwarded,
	}
	if dedup.InstanceID != "" {
		instance, err := e.store.GetInstance(ctx, dedup.InstanceID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Result{}, err
		}
		result.Instance = instance
	}
	return result, nil
}

// resumePending finishes a pending submission whose prior attempt already
// stamped or logged an instance. resumed is false when the event left no
// trace and the pipeline should run from scratch.
func (e *Engine) resumePending(ctx context.Context, ev event.Event, now time.Time) (Result, bool, error) {
	instance, err := e.store.InstanceBySourceEvent(ctx, ev.SourceEventID)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	awarded, err := e.countEventStamps(ctx, instance.ID, ev.SourceEventID)
	if err != nil {
		return Result{}, false, err
	}
	outcome := OutcomeApplied
	if awarded == 0 {
		outcome = OutcomeNoAward
	}
	if err := e.recordEvent(ctx, ev, instance.ID, nil, awarded, now); err != nil {
		return Result{}, false, err
	}
	if err := e.store.FinalizeEvent(ctx, ev.SourceEventID, string(outcome), instance.ID, awarded, now); err != nil {
		return Result{}, false, err
	}
	return Result{
		Outcome:       OutcomeDuplicate,
		StampsAwarded: awarded,
		Instance:      instance,
	}, true, nil
}

// finishReplayedAward completes the bookkeeping when ApplyAward reports the
// source event already minted stamps, possibly on another instance.
func (e *Engine) finishReplayedAward(ctx context.Context, ev event.Event, instance storage.InstanceRecord, now time.Time) (Result, error) {
	awarded, err := e.countEventStamps(ctx, instance.ID, ev.SourceEventID)
	if err != nil {
		return Result{}, err
	}
	if err := e.recordEvent(ctx, ev, instance.ID, nil, awarded, now); err != nil {
		return Result{}, err
	}
	if err := e.store.FinalizeEvent(ctx, ev.SourceEventID, string(OutcomeApplied), instance.ID, awarded, now); err != nil {
		return Result{}, err
	}
	return Result{
		Outcome:       OutcomeDuplicate,
		StampsAwarded: awarded,
		Instance:      instance,
	}, nil
}

func (e *Engine) countEventStamps(ctx context.Context, instanceID, sourceEventID string) (int, error) {
	stamps, err := e.store.ListStamps(ctx, instanceID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, stamp := range stamps {
		if stamp.SourceEventID == sourceEventID {
			count++
		}
	}
	return count, nil
}

// resolveInstance finds the user's open card or auto-issues a fresh one.
func (e *Engine) resolveInstance(ctx context.Context, templateID, userRef string, now time.Time) (storage.InstanceRecord, error) {
	instance, err := e.store.OpenInstance(ctx, templateID, userRef)
	if err == nil {
		return instance, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.InstanceRecord{}, err
	}
	return e.store.IssueInstance(ctx, templateID, userRef, now)
}

// buildHistory prefetches everything the predicates may read, so evaluation
// itself does no I/O.
func (e *Engine) buildHistory(ctx context.Context, instance storage.InstanceRecord) (event.History, error) {
	records, err := e.store.ListEvents(ctx, instance.ID)
	if err != nil {
		return event.History{}, err
	}

	history := event.History{
		StampsGiven: instance.StampsGiven,
		IssuedAt:    instance.IssuedAt,
	}
	for _, record := range records {
		history.Events = append(history.Events, event.PastEvent{
			SourceEventID: record.SourceEventID,
			Type:          record.Type,
			OccurredAt:    record.OccurredAt,
			Amount:        record.Amount,
			BranchRef:     record.BranchRef,
		})
		if len(record.RuleIDs) > 0 && record.StampsAwarded > 0 {
			if history.LastAwardByRule == nil {
				history.LastAwardByRule = make(map[string]time.Time)
			}
			for _, ruleID := range record.RuleIDs {
				if record.OccurredAt.After(history.LastAwardByRule[ruleID]) {
					history.LastAwardByRule[ruleID] = record.OccurredAt
				}
			}
		}
	}
	return history, nil
}

func decodeRules(records []storage.RuleRecord) ([]rule.Rule, error) {
	rules := make([]rule.Rule, 0, len(records))
	for _, record := range records {
		cfg, err := rule.UnmarshalConfig(rule.Kind(record.Kind), record.Config)
		if err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", record.ID, err)
		}
		rules = append(rules, rule.Rule{
			ID:               record.ID,
			TemplateID:       record.TemplateID,
			Order:            record.Order,
			Active:           record.Active,
			ExclusivityGroup: record.ExclusivityGroup,
			Config:           cfg,
		})
	}
	return rules, nil
}

func (e *Engine) finishNoAward(ctx context.Context, ev event.Event, instance storage.InstanceRecord, configVersion int64, now time.Time) (Result, error) {
	// Zero-award events still enter the history: visit and frequency rules
	// count them on later submissions.
	if err := e.recordEvent(ctx, ev, instance.ID, nil, 0, now); err != nil {
		return Result{}, err
	}
	if err := e.store.FinalizeEvent(ctx, ev.SourceEventID, string(OutcomeNoAward), instance.ID, 0, now); err != nil {
		return Result{}, err
	}
	return Result{
		Outcome:       OutcomeNoAward,
		ConfigVersion: configVersion,
		Instance:      instance,
	}, nil
}

func (e *Engine) recordEvent(ctx context.Context, ev event.Event, instanceID string, ruleIDs []string, stampsAwarded int, now time.Time) error {
	return e.store.AppendEvent(ctx, storage.EventLogRecord{
		InstanceID:    instanceID,
		SourceEventID: ev.SourceEventID,
		Type:          ev.Type,
		OccurredAt:    ev.OccurredAt,
		Amount:        ev.Amount,
		BranchRef:     ev.BranchRef,
		CategoryRefs:  ev.CategoryRefs,
		ItemRefs:      ev.ItemRefs,
		ItemUnits:     ev.ItemUnits,
		RuleIDs:       ruleIDs,
		StampsAwarded: stampsAwarded,
		CreatedAt:     now,
	})
}

// backoff sleeps a jittered multiple of the base delay, honoring cancellation.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	step := e.cfg.RetryBaseDelay * time.Duration(attempt+1)
	jitter := time.Duration(rand.Int64N(int64(step) + 1))
	timer := time.NewTimer(step/2 + jitter/2)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
