package http

import (
	"net/http"
	"time"

	"github.com/selo-app/selo/internal/services/loyalty/domain/event"
	"github.com/selo-app/selo/internal/services/loyalty/domain/money"
	"github.com/selo-app/selo/internal/services/loyalty/engine"
)

type eventRequest struct {
	SourceEventID string         `json:"source_event_id"`
	Type          string         `json:"type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	UserRef       string         `json:"user_ref"`
	TemplateRef   string         `json:"template_ref"`
	AmountCents   int64          `json:"amount_cents"`
	ItemRefs      []string       `json:"item_refs"`
	CategoryRefs  []string       `json:"category_refs"`
	BranchRef     string         `json:"branch_ref"`
	ItemUnits     map[string]int `json:"item_units"`
}

type eventResponse struct {
	Outcome       string            `json:"outcome"`
	StampsAwarded int               `json:"stamps_awarded"`
	RuleIDs       []string          `json:"rule_ids,omitempty"`
	ConfigVersion int64             `json:"config_version,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Instance      *instanceResponse `json:"instance,omitempty"`
}

func toEventResponse(result engine.Result) eventResponse {
	resp := eventResponse{
		Outcome:       string(result.Outcome),
		StampsAwarded: result.StampsAwarded,
		RuleIDs:       result.RuleIDs,
		ConfigVersion: result.ConfigVersion,
		Reason:        string(result.Reason),
	}
	if result.Instance.ID != "" {
		instance := toInstanceResponse(result.Instance)
		resp.Instance = &instance
	}
	return resp
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.engine.Submit(r.Context(), event.Event{
		SourceEventID: req.SourceEventID,
		Type:          req.Type,
		OccurredAt:    req.OccurredAt,
		UserRef:       req.UserRef,
		TemplateRef:   req.TemplateRef,
		Amount:        money.Cents(req.AmountCents),
		ItemRefs:      req.ItemRefs,
		CategoryRefs:  req.CategoryRefs,
		BranchRef:     req.BranchRef,
		ItemUnits:     req.ItemUnits,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(result))
}
