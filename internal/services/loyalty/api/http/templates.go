package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/domain/rule"
	"github.com/selo-app/selo/internal/services/loyalty/domain/template"
	"github.com/selo-app/selo/internal/services/loyalty/filter"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

type templateRequest struct {
	CompanyRef    string     `json:"company_ref"`
	Title         string     `json:"title"`
	StampTotal    int        `json:"stamp_total"`
	PerUserLimit  int        `json:"per_user_limit"`
	EmissionLimit *int64     `json:"emission_limit"`
	EmissionStart *time.Time `json:"emission_start"`
	EmissionEnd   *time.Time `json:"emission_end"`
	Active        *bool      `json:"active"`
}

type templateResponse struct {
	ID            string     `json:"id"`
	CompanyRef    string     `json:"company_ref"`
	Title         string     `json:"title"`
	StampTotal    int        `json:"stamp_total"`
	PerUserLimit  int        `json:"per_user_limit"`
	EmissionLimit *int64     `json:"emission_limit,omitempty"`
	EmissionStart *time.Time `json:"emission_start,omitempty"`
	EmissionEnd   *time.Time `json:"emission_end,omitempty"`
	Active        bool       `json:"active"`
	ConfigVersion int64      `json:"config_version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toTemplateResponse(record storage.TemplateRecord) templateResponse {
	return templateResponse{
		ID:            record.ID,
		CompanyRef:    record.CompanyRef,
		Title:         record.Title,
		StampTotal:    record.StampTotal,
		PerUserLimit:  record.PerUserLimit,
		EmissionLimit: record.EmissionLimit,
		EmissionStart: record.EmissionStart,
		EmissionEnd:   record.EmissionEnd,
		Active:        record.Active,
		ConfigVersion: record.ConfigVersion,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	blueprint := template.Template{
		CompanyRef:    req.CompanyRef,
		Title:         req.Title,
		StampTotal:    req.StampTotal,
		PerUserLimit:  req.PerUserLimit,
		EmissionLimit: req.EmissionLimit,
		EmissionStart: req.EmissionStart,
		EmissionEnd:   req.EmissionEnd,
		Active:        active,
	}
	if err := blueprint.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.store.CreateTemplate(r.Context(), storage.TemplateRecord{
		CompanyRef:    req.CompanyRef,
		Title:         req.Title,
		StampTotal:    req.StampTotal,
		PerUserLimit:  req.PerUserLimit,
		EmissionLimit: req.EmissionLimit,
		EmissionStart: req.EmissionStart,
		EmissionEnd:   req.EmissionEnd,
		Active:        active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(record))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	query := storage.ListTemplatesQuery{
		CompanyRef: r.URL.Query().Get("company_ref"),
	}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		condition, err := filter.ParseTemplateFilter(raw)
		if err != nil {
			writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "parse template filter", err))
			return
		}
		query.Filter = condition
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, r, apperrors.New(apperrors.CodeRequestInvalid, "limit must be a positive integer"))
			return
		}
		query.Limit = limit
	}

	records, err := s.store.ListTemplates(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	responses := make([]templateResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toTemplateResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string][]templateResponse{"templates": responses})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(record))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	current, err := s.store.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Partial update: absent fields keep their stored value. StampTotal and
	// CompanyRef are fixed for the template's lifetime.
	var req struct {
		Title         *string    `json:"title"`
		PerUserLimit  *int       `json:"per_user_limit"`
		EmissionLimit *int64     `json:"emission_limit"`
		EmissionStart *time.Time `json:"emission_start"`
		EmissionEnd   *time.Time `json:"emission_end"`
		Active        *bool      `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Title != nil {
		current.Title = *req.Title
	}
	if req.PerUserLimit != nil {
		current.PerUserLimit = *req.PerUserLimit
	}
	if req.EmissionLimit != nil {
		current.EmissionLimit = req.EmissionLimit
	}
	if req.EmissionStart != nil {
		current.EmissionStart = req.EmissionStart
	}
	if req.EmissionEnd != nil {
		current.EmissionEnd = req.EmissionEnd
	}
	if req.Active != nil {
		current.Active = *req.Active
	}

	blueprint := template.Template{
		ID:            current.ID,
		CompanyRef:    current.CompanyRef,
		Title:         current.Title,
		StampTotal:    current.StampTotal,
		PerUserLimit:  current.PerUserLimit,
		EmissionLimit: current.EmissionLimit,
		EmissionStart: current.EmissionStart,
		EmissionEnd:   current.EmissionEnd,
		Active:        current.Active,
	}
	if err := blueprint.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.store.UpdateTemplate(r.Context(), current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(record))
}

type revisionResponse struct {
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, apperrors.New(apperrors.CodeRequestInvalid, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := s.store.ListRevisions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	responses := make([]revisionResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, revisionResponse{
			Version:   record.Version,
			Payload:   json.RawMessage(record.Payload),
			CreatedAt: record.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]revisionResponse{"revisions": responses})
}

type ruleRequest struct {
	Kind             string          `json:"kind"`
	Config           json.RawMessage `json:"config"`
	Order            int             `json:"order"`
	Active           *bool           `json:"active"`
	ExclusivityGroup string          `json:"exclusivity_group"`
}

type ruleResponse struct {
	ID               string          `json:"id"`
	TemplateID       string          `json:"template_id"`
	Kind             string          `json:"kind"`
	Config           json.RawMessage `json:"config"`
	Order            int             `json:"order"`
	Active           bool            `json:"active"`
	ExclusivityGroup string          `json:"exclusivity_group,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toRuleResponse(record storage.RuleRecord) ruleResponse {
	return ruleResponse{
		ID:               record.ID,
		TemplateID:       record.TemplateID,
		Kind:             record.Kind,
		Config:           json.RawMessage(record.Config),
		Order:            record.Order,
		Active:           record.Active,
		ExclusivityGroup: record.ExclusivityGroup,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	templateID := r.PathValue("id")
	if _, err := s.store.GetTemplate(r.Context(), templateID); err != nil {
		writeError(w, r, err)
		return
	}

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := rule.UnmarshalConfig(rule.Kind(req.Kind), req.Config); err != nil {
		writeError(w, r, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	record, err := s.store.CreateRule(r.Context(), storage.RuleRecord{
		TemplateID:       templateID,
		Kind:             req.Kind,
		Config:           req.Config,
		Order:            req.Order,
		Active:           active,
		ExclusivityGroup: req.ExclusivityGroup,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(record))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRules(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	responses := make([]ruleResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toRuleResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string][]ruleResponse{"rules": responses})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	templateID := r.PathValue("id")
	ruleID := r.PathValue("ruleID")

	rules, err := s.store.ListRules(r.Context(), templateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var current *storage.RuleRecord
	for i := range rules {
		if rules[i].ID == ruleID {
			current = &rules[i]
			break
		}
	}
	if current == nil {
		writeError(w, r, storage.ErrNotFound)
		return
	}

	var req struct {
		Config           json.RawMessage `json:"config"`
		Order            *int            `json:"order"`
		Active           *bool           `json:"active"`
		ExclusivityGroup *string         `json:"exclusivity_group"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Config != nil {
		if _, err := rule.UnmarshalConfig(rule.Kind(current.Kind), req.Config); err != nil {
			writeError(w, r, err)
			return
		}
		current.Config = req.Config
	}
	if req.Order != nil {
		current.Order = *req.Order
	}
	if req.Active != nil {
		current.Active = *req.Active
	}
	if req.ExclusivityGroup != nil {
		current.ExclusivityGroup = *req.ExclusivityGroup
	}

	record, err := s.store.UpdateRule(r.Context(), *current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(record))
}

// handleDeleteRule deactivates a rule. Rules are never hard-deleted: past
// stamps reference them through the configuration history.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	templateID := r.PathValue("id")
	ruleID := r.PathValue("ruleID")

	rules, err := s.store.ListRules(r.Context(), templateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range rules {
		if rules[i].ID != ruleID {
			continue
		}
		rules[i].Active = false
		if _, err := s.store.UpdateRule(r.Context(), rules[i]); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, r, storage.ErrNotFound)
}

type rewardLinkRequest struct {
	Name         string `json:"name"`
	StampNo      int    `json:"stamp_no"`
	InitialStock *int64 `json:"initial_stock"`
}

type rewardLinkResponse struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"template_id"`
	Name         string    `json:"name"`
	StampNo      int       `json:"stamp_no"`
	InitialStock *int64    `json:"initial_stock,omitempty"`
	Stock        *int64    `json:"stock,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRewardLinkResponse(record storage.RewardLinkRecord) rewardLinkResponse {
	return rewardLinkResponse{
		ID:           record.ID,
		TemplateID:   record.TemplateID,
		Name:         record.Name,
		StampNo:      record.StampNo,
		InitialStock: record.InitialStock,
		Stock:        record.Stock,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func (s *Server) handleCreateRewardLink(w http.ResponseWriter, r *http.Request) {
	templateID := r.PathValue("id")
	tmpl, err := s.store.GetTemplate(r.Context(), templateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req rewardLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeError(w, r, apperrors.New(apperrors.CodeRewardNameEmpty, "reward name is required"))
		return
	}
	if req.StampNo < 1 || req.StampNo > tmpl.StampTotal {
		writeError(w, r, apperrors.New(apperrors.CodeRewardStampInvalid, "reward stamp number must fall within the card"))
		return
	}
	if req.InitialStock != nil && *req.InitialStock < 0 {
		writeError(w, r, apperrors.New(apperrors.CodeRewardStockInvalid, "reward stock must not be negative"))
		return
	}

	record, err := s.store.CreateRewardLink(r.Context(), storage.RewardLinkRecord{
		TemplateID:   templateID,
		Name:         req.Name,
		StampNo:      req.StampNo,
		InitialStock: req.InitialStock,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardLinkResponse(record))
}

func (s *Server) handleListRewardLinks(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRewardLinks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	responses := make([]rewardLinkResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toRewardLinkResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string][]rewardLinkResponse{"rewards": responses})
}
