package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"roastbattle/backend/internal/auth"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/cache"
	"roastbattle/backend/internal/observability"
	"roastbattle/backend/internal/safety"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

type agentEvaluationsRequest struct {
	Evaluations []battle.AgentEvaluation `json:"evaluations"`
}

func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.roster)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	token, clientID, err := auth.IssueClientToken(s.cfg.JWTSecret, clientTokenTTL)
	if err != nil {
		s.logger.Error("issue_token_failed", observability.Fields{
			"request_id": requestIDFromRequest(r),
			"error":      err.Error(),
		})
		writeInternalError(w, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"client_id":  clientID,
		"expires_in": int(clientTokenTTL.Seconds()),
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	battleID := strings.TrimSpace(chi.URLParam(r, "battleID"))
	if battleID == "" {
		writeBadRequest(w, "battle id is required")
		return
	}
	if s.results == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}

	result, err := s.results.Get(r.Context(), battleID)
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		s.logger.Warn("result_cache_read_failed", observability.Fields{
			"battle_id": battleID,
			"error":     err.Error(),
		})
		writeError(w, http.StatusBadGateway, "result cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartBattle(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}

	var cfg battle.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeBadRequest(w, "invalid battle config")
		return
	}

	session, err := eng.Start(r.Context(), cfg)
	if err != nil {
		writeBattleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session": session,
		"view":    eng.View(),
	})
}

func (s *Server) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}
	view := eng.View()
	if view.Session == nil {
		writeNoBattle(w)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetBattle(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}
	eng.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid message payload")
		return
	}

	limits := eng.Store().Limits()
	content, err := safety.ValidateMessage(req.Content, limits.MinMessageLen, limits.MaxMessageLen)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	message, err := eng.SendMessage(r.Context(), content)
	if err != nil {
		writeBattleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}
	view := eng.View()
	if view.Session == nil {
		writeNoBattle(w)
		return
	}

	status := http.StatusOK
	if view.Evaluating {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{
		"status":           view.Session.Status,
		"evaluating":       view.Evaluating,
		"evaluation":       view.Evaluation,
		"evaluation_error": view.EvaluationError,
	})
}

func (s *Server) handleRetryEvaluation(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}
	if err := eng.RetryEvaluation(r.Context()); err != nil {
		writeBattleError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"evaluating": true})
}

func (s *Server) handleDismissResults(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}
	if err := eng.DismissResults(r.Context()); err != nil {
		writeBattleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eng.View())
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}

	var req battle.HumanFeedback
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid feedback payload")
		return
	}

	record, err := eng.SubmitFeedback(r.Context(), req)
	if err != nil {
		s.writeFeedbackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleSubmitAgentEvaluations(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.requireEngine(w, r)
	if !ok {
		return
	}

	var req agentEvaluationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid agent evaluation payload")
		return
	}

	records, err := eng.SubmitAgentEvaluations(r.Context(), req.Evaluations)
	if err != nil {
		s.writeFeedbackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"records": records})
}

// writeFeedbackError separates rejected input from a failed write, which
// surfaces as a bad gateway so the client can keep the form and retry.
func (s *Server) writeFeedbackError(w http.ResponseWriter, r *http.Request, err error) {
	if isSinkFailure(err) {
		s.logger.Error("feedback_write_failed", observability.Fields{
			"request_id": requestIDFromRequest(r),
			"error":      err.Error(),
		})
		writeError(w, http.StatusBadGateway, "could not save feedback, try again")
		return
	}
	writeBattleError(w, err)
}
