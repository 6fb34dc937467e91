package feedback

import (
	"context"
	"errors"

	"roastbattle/backend/internal/battle"
)

var ErrDuplicate = errors.New("feedback already recorded for this battle")

// Sink stores the post-battle rating records. Rows are append-only.
type Sink interface {
	SaveTrainingRecord(ctx context.Context, record battle.BattleTrainingRecord) error
	SaveAgentEvaluations(ctx context.Context, records []battle.AgentEvaluationRecord) error
}
