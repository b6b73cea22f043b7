// Package http exposes the loyalty service as a JSON API for POS integrations
// and merchant tooling.
package http

import (
	"net/http"

	"github.com/selo-app/selo/internal/services/loyalty/engine"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

// Server routes loyalty API requests to the engine and store.
type Server struct {
	engine *engine.Engine
	store  storage.Store
	mux    *http.ServeMux
}

// New builds the API server and registers its routes.
func New(eng *engine.Engine, store storage.Store) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/events", s.handleSubmitEvent)

	s.mux.HandleFunc("POST /v1/templates", s.handleCreateTemplate)
	s.mux.HandleFunc("GET /v1/templates", s.handleListTemplates)
	s.mux.HandleFunc("GET /v1/templates/{id}", s.handleGetTemplate)
	s.mux.HandleFunc("PATCH /v1/templates/{id}", s.handleUpdateTemplate)
	s.mux.HandleFunc("GET /v1/templates/{id}/revisions", s.handleListRevisions)

	s.mux.HandleFunc("POST /v1/templates/{id}/rules", s.handleCreateRule)
	s.mux.HandleFunc("GET /v1/templates/{id}/rules", s.handleListRules)
	s.mux.HandleFunc("PATCH /v1/templates/{id}/rules/{ruleID}", s.handleUpdateRule)
	s.mux.HandleFunc("DELETE /v1/templates/{id}/rules/{ruleID}", s.handleDeleteRule)

	s.mux.HandleFunc("POST /v1/templates/{id}/rewards", s.handleCreateRewardLink)
	s.mux.HandleFunc("GET /v1/templates/{id}/rewards", s.handleListRewardLinks)

	s.mux.HandleFunc("POST /v1/instances", s.handleIssueInstance)
	s.mux.HandleFunc("GET /v1/instances/{id}", s.handleGetCard)
	s.mux.HandleFunc("POST /v1/instances/{id}/redemptions", s.handleRedeem)
	s.mux.HandleFunc("POST /v1/redemptions/consume", s.handleConsumeToken)

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
