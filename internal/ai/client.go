package ai

import (
	"context"
	"errors"
)

// MoveRequest is one opponent turn. Message is either the context payload
// for a participant's first line or the line being answered.
type MoveRequest struct {
	PersonaKey    string
	PersonaName   string
	IntensityKey  string
	SessionID     string
	CorrelationID string
	Message       string
}

type MoveGenerator interface {
	GenerateMove(ctx context.Context, req MoveRequest) (string, error)
}

var ErrAgentNotConfigured = errors.New("no agent configured for persona and intensity")
