package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"roastbattle/backend/internal/auth"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/feedback"
	"roastbattle/backend/internal/safety"
)

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeNoBattle tells the client to leave the battle view.
func writeNoBattle(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":    "no active battle",
		"redirect": "/",
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeTooManyRequests(w http.ResponseWriter, message string) {
	writeError(w, http.StatusTooManyRequests, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}

// writeBattleError maps engine and store errors to a status code.
func writeBattleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, battle.ErrNoSession):
		writeNoBattle(w)
	case errors.Is(err, battle.ErrInvalidConfig),
		errors.Is(err, battle.ErrUnknownPersona),
		errors.Is(err, battle.ErrUnknownIntensity),
		errors.Is(err, battle.ErrEmptyContent),
		errors.Is(err, battle.ErrParticipantUnknown),
		errors.Is(err, safety.ErrEmpty),
		errors.Is(err, safety.ErrTooShort),
		errors.Is(err, safety.ErrTooLong),
		errors.Is(err, safety.ErrLinkSpam):
		writeBadRequest(w, err.Error())
	case errors.Is(err, battle.ErrNotActive),
		errors.Is(err, battle.ErrCapReached),
		errors.Is(err, battle.ErrOutOfTurn),
		errors.Is(err, battle.ErrInvalidStatusTransition),
		errors.Is(err, engine.ErrNotYourTurn),
		errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrHumanInputDisabled),
		errors.Is(err, engine.ErrNoEvaluationError),
		errors.Is(err, engine.ErrEvaluationPending),
		errors.Is(err, engine.ErrNoResult),
		errors.Is(err, engine.ErrFeedbackSubmitted),
		errors.Is(err, feedback.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		writeInternalError(w, "internal server error")
	}
}

func (s *Server) requireEngine(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	clientID, ok := auth.ClientIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing client")
		return nil, false
	}
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "battles are unavailable")
		return nil, false
	}
	return s.registry.Get(clientID), true
}

func isSinkFailure(err error) bool {
	return errors.Is(err, engine.ErrFeedbackStore) && !errors.Is(err, feedback.ErrDuplicate)
}
