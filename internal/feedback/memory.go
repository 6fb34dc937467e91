package feedback

import (
	"context"
	"sync"

	"roastbattle/backend/internal/battle"
)

// MemorySink keeps records in process. Used when DATABASE_URL is unset and
// by tests.
type MemorySink struct {
	mu       sync.Mutex
	training []battle.BattleTrainingRecord
	agents   []battle.AgentEvaluationRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) SaveTrainingRecord(_ context.Context, record battle.BattleTrainingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.training {
		if existing.BattleID == record.BattleID {
			return ErrDuplicate
		}
	}
	s.training = append(s.training, record)
	return nil
}

func (s *MemorySink) SaveAgentEvaluations(_ context.Context, records []battle.AgentEvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		for _, existing := range s.agents {
			if existing.BattleID == record.BattleID && existing.AgentParticipant == record.AgentParticipant {
				return ErrDuplicate
			}
		}
	}
	s.agents = append(s.agents, records...)
	return nil
}

func (s *MemorySink) TrainingRecords() []battle.BattleTrainingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]battle.BattleTrainingRecord(nil), s.training...)
}

func (s *MemorySink) AgentEvaluations() []battle.AgentEvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]battle.AgentEvaluationRecord(nil), s.agents...)
}
