package battle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"roastbattle/backend/internal/common"
)

const maxFeedbackTextRunes = 2000

// AxisRatings are slider values in [0,1].
type AxisRatings struct {
	Humor       float64 `json:"humor"`
	Punch       float64 `json:"punch"`
	Originality float64 `json:"originality"`
	Relevance   float64 `json:"relevance"`
}

func (r AxisRatings) validate() error {
	for _, value := range []float64{r.Humor, r.Punch, r.Originality, r.Relevance} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: ratings must be between 0 and 1", ErrInvalidConfig)
		}
	}
	return nil
}

func (r AxisRatings) scaled() Scores {
	scores := Scores{
		Humor:       r.Humor * 100,
		Punch:       r.Punch * 100,
		Originality: r.Originality * 100,
		Relevance:   r.Relevance * 100,
	}
	scores.Overall = scores.Mean()
	return scores
}

type HumanFeedback struct {
	A        AxisRatings `json:"participant_a"`
	B        AxisRatings `json:"participant_b"`
	FreeText string      `json:"free_text,omitempty"`
}

type AgentEvaluation struct {
	Participant      Side    `json:"participant"`
	PersonaMatch     float64 `json:"persona_match"`
	Relevance        float64 `json:"relevance"`
	FunFactor        float64 `json:"fun_factor"`
	Originality      float64 `json:"originality"`
	EthicalViolation bool    `json:"ethical_violation"`
}

// BattleTrainingRecord is one row of battle_training_data.
type BattleTrainingRecord struct {
	BattleID          string    `json:"battle_id"`
	SessionID         string    `json:"session_id"`
	Mode              Mode      `json:"mode"`
	Intensity         string    `json:"intensity"`
	MessageLimit      int       `json:"message_limit"`
	TimeLimitSeconds  int       `json:"time_limit_seconds"`
	AgentAPersonality string    `json:"agent_a_personality,omitempty"`
	AgentBPersonality string    `json:"agent_b_personality,omitempty"`
	ThreadText        string    `json:"thread_text"`
	AText             string    `json:"a_text"`
	BText             string    `json:"b_text"`
	ModelA            Scores    `json:"model_a"`
	ModelB            Scores    `json:"model_b"`
	Winner            Winner    `json:"winner"`
	Margin            float64   `json:"margin"`
	HumanA            Scores    `json:"human_a"`
	HumanB            Scores    `json:"human_b"`
	HumanFeedbackText string    `json:"human_feedback_text,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// AgentEvaluationRecord is one row of agent_evaluation. Ratings are stored
// on the 0-100 scale.
type AgentEvaluationRecord struct {
	BattleID         string    `json:"battle_id"`
	SessionID        string    `json:"session_id"`
	Mode             Mode      `json:"mode"`
	Intensity        string    `json:"intensity"`
	AgentParticipant Side      `json:"agent_participant"`
	AgentPersonality string    `json:"agent_personality"`
	PersonaMatch     float64   `json:"persona_match"`
	Relevance        float64   `json:"relevance"`
	FunFactor        float64   `json:"fun_factor"`
	Originality      float64   `json:"originality"`
	EthicalViolation bool      `json:"ethical_violation"`
	CreatedAt        time.Time `json:"created_at"`
}

func BuildTrainingRecord(s Session, result EvaluationResult, feedback HumanFeedback, now time.Time) (BattleTrainingRecord, error) {
	if err := feedback.A.validate(); err != nil {
		return BattleTrainingRecord{}, err
	}
	if err := feedback.B.validate(); err != nil {
		return BattleTrainingRecord{}, err
	}
	aText, bText := SideTexts(s)
	threadText := result.ThreadText
	if threadText == "" {
		threadText = ThreadText(s)
	}
	return BattleTrainingRecord{
		BattleID:          s.ID,
		SessionID:         s.CorrelationID,
		Mode:              s.Mode,
		Intensity:         s.Intensity,
		MessageLimit:      s.MaxMessagesPerParticipant,
		TimeLimitSeconds:  s.TimeLimitSeconds,
		AgentAPersonality: s.A.PersonaID,
		AgentBPersonality: s.B.PersonaID,
		ThreadText:        threadText,
		AText:             aText,
		BText:             bText,
		ModelA:            result.A,
		ModelB:            result.B,
		Winner:            result.Winner,
		Margin:            result.Margin,
		HumanA:            feedback.A.scaled(),
		HumanB:            feedback.B.scaled(),
		HumanFeedbackText: common.TruncateRunes(feedback.FreeText, maxFeedbackTextRunes),
		CreatedAt:         now.UTC(),
	}, nil
}

// RatedSides lists the participants that can receive an agent evaluation:
// only AI participants.
func RatedSides(s Session) []Side {
	sides := make([]Side, 0, 2)
	if s.A.Role == RoleAI {
		sides = append(sides, SideA)
	}
	if s.B.Role == RoleAI {
		sides = append(sides, SideB)
	}
	return sides
}

func BuildAgentEvaluationRecord(s Session, evaluation AgentEvaluation, now time.Time) (AgentEvaluationRecord, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(string(evaluation.Participant))))
	if side != SideA && side != SideB {
		return AgentEvaluationRecord{}, fmt.Errorf("%w: participant must be A or B", ErrParticipantUnknown)
	}
	if !slices.Contains(RatedSides(s), side) {
		return AgentEvaluationRecord{}, fmt.Errorf("%w: participant %s is not an agent", ErrParticipantUnknown, side)
	}
	participant := s.Participant(side)
	for _, value := range []float64{evaluation.PersonaMatch, evaluation.Relevance, evaluation.FunFactor, evaluation.Originality} {
		if value < 0 || value > 1 {
			return AgentEvaluationRecord{}, fmt.Errorf("%w: ratings must be between 0 and 1", ErrInvalidConfig)
		}
	}
	return AgentEvaluationRecord{
		BattleID:         s.ID,
		SessionID:        s.CorrelationID,
		Mode:             s.Mode,
		Intensity:        s.Intensity,
		AgentParticipant: side,
		AgentPersonality: participant.PersonaID,
		PersonaMatch:     evaluation.PersonaMatch * 100,
		Relevance:        evaluation.Relevance * 100,
		FunFactor:        evaluation.FunFactor * 100,
		Originality:      evaluation.Originality * 100,
		EthicalViolation: evaluation.EthicalViolation,
		CreatedAt:        now.UTC(),
	}, nil
}
