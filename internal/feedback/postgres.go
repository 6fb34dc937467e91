package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/observability"
)

const (
	tableTraining = "battle_training_data"
	tableAgents   = "agent_evaluation"
)

type PostgresSink struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

func NewPostgresSink(pool *pgxpool.Pool, metrics *observability.Metrics) *PostgresSink {
	return &PostgresSink{pool: pool, metrics: metrics}
}

func (s *PostgresSink) SaveTrainingRecord(ctx context.Context, record battle.BattleTrainingRecord) error {
	started := time.Now()
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO battle_training_data(
			battle_id, session_id, mode, intensity, message_limit, time_limit_seconds,
			agent_a_personality, agent_b_personality, thread_text, a_text, b_text,
			a_humor, a_punch, a_originality, a_relevance, overall_a,
			b_humor, b_punch, b_originality, b_relevance, overall_b,
			winner, margin,
			human_a_humor, human_a_punch, human_a_originality, human_a_relevance, human_overall_a,
			human_b_humor, human_b_punch, human_b_originality, human_b_relevance, human_overall_b,
			human_feedback_text, created_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23,
			$24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33,
			$34, $35
		)
		ON CONFLICT (battle_id) DO NOTHING
		RETURNING id
	`,
		record.BattleID, record.SessionID, string(record.Mode), record.Intensity, record.MessageLimit, record.TimeLimitSeconds,
		record.AgentAPersonality, record.AgentBPersonality, record.ThreadText, record.AText, record.BText,
		record.ModelA.Humor, record.ModelA.Punch, record.ModelA.Originality, record.ModelA.Relevance, record.ModelA.Overall,
		record.ModelB.Humor, record.ModelB.Punch, record.ModelB.Originality, record.ModelB.Relevance, record.ModelB.Overall,
		string(record.Winner), record.Margin,
		record.HumanA.Humor, record.HumanA.Punch, record.HumanA.Originality, record.HumanA.Relevance, record.HumanA.Overall,
		record.HumanB.Humor, record.HumanB.Punch, record.HumanB.Originality, record.HumanB.Relevance, record.HumanB.Overall,
		record.HumanFeedbackText, record.CreatedAt,
	).Scan(&id)
	s.metrics.ObserveDBQuery(time.Since(started))

	if errors.Is(err, pgx.ErrNoRows) {
		s.metrics.ObserveFeedbackWrite(tableTraining, "duplicate")
		return ErrDuplicate
	}
	if err != nil {
		s.metrics.ObserveFeedbackWrite(tableTraining, "error")
		return fmt.Errorf("insert %s: %w", tableTraining, err)
	}
	s.metrics.ObserveFeedbackWrite(tableTraining, "ok")
	return nil
}

// SaveAgentEvaluations writes all rows in one transaction; a duplicate
// (battle, participant) pair rolls the whole submission back.
func (s *PostgresSink) SaveAgentEvaluations(ctx context.Context, records []battle.AgentEvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}
	started := time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, record := range records {
			batch.Queue(`
				INSERT INTO agent_evaluation(
					battle_id, session_id, mode, intensity, agent_participant, agent_personality,
					persona_match, relevance, fun_factor, originality, ethical_violation, created_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (battle_id, agent_participant) DO NOTHING
			`,
				record.BattleID, record.SessionID, string(record.Mode), record.Intensity,
				string(record.AgentParticipant), record.AgentPersonality,
				record.PersonaMatch, record.Relevance, record.FunFactor, record.Originality,
				record.EthicalViolation, record.CreatedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range records {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			if tag.RowsAffected() == 0 {
				_ = results.Close()
				return ErrDuplicate
			}
		}
		return results.Close()
	})
	s.metrics.ObserveDBQuery(time.Since(started))

	switch {
	case errors.Is(err, ErrDuplicate):
		s.metrics.ObserveFeedbackWrite(tableAgents, "duplicate")
		return ErrDuplicate
	case err != nil:
		s.metrics.ObserveFeedbackWrite(tableAgents, "error")
		return fmt.Errorf("insert %s: %w", tableAgents, err)
	}
	s.metrics.ObserveFeedbackWrite(tableAgents, "ok")
	return nil
}
