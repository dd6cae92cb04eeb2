package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/wizard"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("server", "encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps wizard guard violations to client-error statuses and
// everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wizard.ErrNoSession):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrBusy),
		errors.Is(err, wizard.ErrBadStep),
		errors.Is(err, wizard.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, wizard.ErrNothingSelected),
		errors.Is(err, wizard.ErrNoActivities),
		errors.Is(err, wizard.ErrTitleRequired):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Start()
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.manager.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type fetchRequest struct {
	Tools     []string             `json:"tools"`
	DateRange connectors.DateRange `json:"dateRange"`
	Workspace string               `json:"workspace,omitempty"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Tools) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tools must not be empty"})
		return
	}
	for _, tool := range req.Tools {
		if !normalize.KnownTool(tool) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown tool: " + tool})
			return
		}
	}

	if err := sess.Fetch(r.Context(), req.Tools, req.DateRange, req.Workspace); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id required"})
		return
	}
	if err := sess.Toggle(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

type selectionRequest struct {
	IDs      []string `json:"ids,omitempty"`
	Selected bool     `json:"selected"`
	All      bool     `json:"all,omitempty"`
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var err error
	switch {
	case req.All && req.Selected:
		err = sess.SelectAll()
	case req.All:
		err = sess.ClearSelection()
	default:
		err = sess.SetSelected(req.IDs, req.Selected)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Continue(r.Context()); err != nil {
		// Pipeline failures leave the session in correlations for a
		// re-trigger; report the state alongside the error.
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RunPipeline(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Back(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

type editRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Title != nil {
		if err := sess.SetTitle(*req.Title); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Description != nil {
		if err := sess.SetDescription(*req.Description); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result, err := sess.CreateEntry(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": result, "state": sess.State()})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": normalize.SupportedTools()})
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "integration registry not configured"})
		return
	}
	integrations, err := s.registry.ListIntegrations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": integrations})
}

func (s *Server) handleValidateIntegrations(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "integration registry not configured"})
		return
	}
	validations, err := s.registry.ValidateIntegrations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validations": validations})
}

func (s *Server) handleRecentEntries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history store not configured"})
		return
	}
	recs, err := s.store.RecentEntries(queryLimit(r, 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": recs})
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history store not configured"})
		return
	}
	recs, err := s.store.RecentRuns(queryLimit(r, 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": recs})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.events.Recent(queryLimit(r, 100))})
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
