package http

import (
	"net/http"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

type instanceResponse struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"template_id"`
	UserRef     string     `json:"user_ref"`
	StampsGiven int        `json:"stamps_given"`
	StampTotal  int        `json:"stamp_total"`
	IssuedAt    time.Time  `json:"issued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toInstanceResponse(record storage.InstanceRecord) instanceResponse {
	return instanceResponse{
		ID:          record.ID,
		TemplateID:  record.TemplateID,
		UserRef:     record.UserRef,
		StampsGiven: record.StampsGiven,
		StampTotal:  record.StampTotal,
		IssuedAt:    record.IssuedAt,
		CompletedAt: record.CompletedAt,
	}
}

type stampResponse struct {
	StampNo       int       `json:"stamp_no"`
	SourceEventID string    `json:"source_event_id"`
	ConfigVersion int64     `json:"config_version"`
	CreatedAt     time.Time `json:"created_at"`
}

type redemptionResponse struct {
	ID         string     `json:"id"`
	InstanceID string     `json:"instance_id"`
	LinkID     string     `json:"link_id"`
	Used       bool       `json:"used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toRedemptionResponse(record storage.RedemptionRecord) redemptionResponse {
	return redemptionResponse{
		ID:         record.ID,
		InstanceID: record.InstanceID,
		LinkID:     record.LinkID,
		Used:       record.Used,
		UsedAt:     record.UsedAt,
		CreatedAt:  record.CreatedAt,
	}
}

type cardResponse struct {
	Instance    instanceResponse     `json:"instance"`
	Stamps      []stampResponse      `json:"stamps"`
	Unlocked    []rewardLinkResponse `json:"unlocked"`
	Redemptions []redemptionResponse `json:"redemptions"`
}

func (s *Server) handleIssueInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		UserRef    string `json:"user_ref"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.engine.Issue(r.Context(), req.TemplateID, req.UserRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstanceResponse(record))
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.engine.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := cardResponse{
		Instance:    toInstanceResponse(card.Instance),
		Stamps:      make([]stampResponse, 0, len(card.Stamps)),
		Unlocked:    make([]rewardLinkResponse, 0, len(card.Unlocked)),
		Redemptions: make([]redemptionResponse, 0, len(card.Redemptions)),
	}
	for _, stamp := range card.Stamps {
		resp.Stamps = append(resp.Stamps, stampResponse{
			StampNo:       stamp.StampNo,
			SourceEventID: stamp.SourceEventID,
			ConfigVersion: stamp.ConfigVersion,
			CreatedAt:     stamp.CreatedAt,
		})
	}
	for _, link := range card.Unlocked {
		resp.Unlocked = append(resp.Unlocked, toRewardLinkResponse(link))
	}
	for _, redemption := range card.Redemptions {
		resp.Redemptions = append(resp.Redemptions, toRedemptionResponse(redemption))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID string `json:"link_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.LinkID == "" {
		writeError(w, r, apperrors.New(apperrors.CodeRequestInvalid, "link id is required"))
		return
	}

	redemption, err := s.engine.Redeem(r.Context(), r.PathValue("id"), req.LinkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Redemption redemptionResponse `json:"redemption"`
		Token      string             `json:"token"`
	}{
		Redemption: toRedemptionResponse(redemption.Record),
		Token:      redemption.Token,
	})
}

func (s *Server) handleConsumeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Token == "" {
		writeError(w, r, apperrors.New(apperrors.CodeRequestInvalid, "token is required"))
		return
	}

	record, err := s.engine.ConsumeToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionResponse(record))
}
