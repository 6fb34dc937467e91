package battle

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"roastbattle/backend/internal/clock"
)

// Store is the single authoritative record of one client's battle. Reads
// return copies; all mutation goes through the methods below.
type Store struct {
	clock  clock.Clock
	roster *Roster
	limits Limits
	newID  func() string

	mu            sync.Mutex
	session       *Session
	evaluation    *EvaluationResult
	correlationID string
}

type StoreOption func(*Store)

// WithIDGenerator replaces uuid generation, for deterministic tests.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewStore(c clock.Clock, roster *Roster, limits Limits, opts ...StoreOption) *Store {
	if c == nil {
		c = clock.Real{}
	}
	if roster == nil {
		roster = DefaultRoster()
	}
	store := &Store{
		clock:  c,
		roster: roster,
		limits: limits.normalized(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(store)
	}
	store.correlationID = store.newID()
	return store
}

func (s *Store) Roster() *Roster { return s.roster }

func (s *Store) Limits() Limits { return s.limits }

// InitBattle discards any prior battle and evaluation and starts a fresh
// active session with new battle and correlation ids.
func (s *Store) InitBattle(cfg Config) (Session, error) {
	a, b, timeLimit, err := s.roster.resolve(cfg)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	s.correlationID = s.newID()
	s.evaluation = nil
	s.session = &Session{
		ID:                        s.newID(),
		CorrelationID:             s.correlationID,
		Mode:                      cfg.Mode,
		A:                         a,
		B:                         b,
		Intensity:                 cfg.Intensity,
		TimeLimitSeconds:          timeLimit,
		MaxMessagesPerParticipant: s.limits.MaxMessagesPerParticipant,
		Messages:                  []Message{},
		Status:                    StatusActive,
		StartedAt:                 &now,
	}
	return s.session.clone(), nil
}

// AppendMessage adds one line to the transcript. A participant may not
// speak twice in a row unless the other side is already capped.
func (s *Store) AppendMessage(participantID, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return Message{}, ErrNoSession
	}
	session := s.session
	if session.Status != StatusActive {
		return Message{}, ErrNotActive
	}
	if _, ok := session.SideOf(participantID); !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrParticipantUnknown, participantID)
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, ErrEmptyContent
	}
	if session.Count(participantID) >= session.MaxMessagesPerParticipant {
		return Message{}, ErrCapReached
	}
	if last, ok := session.LastMessage(); ok && last.ParticipantID == participantID {
		opponent := session.Opponent(participantID)
		if session.Count(opponent.ID) < session.MaxMessagesPerParticipant {
			return Message{}, ErrOutOfTurn
		}
	}

	message := Message{
		ID:            s.newID(),
		ParticipantID: participantID,
		Content:       trimmed,
		CreatedAt:     s.clock.Now().UTC(),
	}
	session.Messages = append(session.Messages, message)
	return message, nil
}

// SetStatus only moves forward: active, evaluating, complete.
func (s *Store) SetStatus(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNoSession
	}
	current := s.session.Status
	if status.rank() != current.rank()+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status)
	}
	s.session.Status = status
	if status == StatusComplete {
		ended := s.clock.Now().UTC()
		s.session.EndedAt = &ended
	}
	return nil
}

// SetEvaluationResult stores or wholesale replaces the verdict.
func (s *Store) SetEvaluationResult(result EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNoSession
	}
	if s.session.Status == StatusActive {
		return fmt.Errorf("%w: battle is still active", ErrInvalidStatusTransition)
	}
	result.BattleID = s.session.ID
	s.evaluation = &result
	return nil
}

// Reset drops the battle and its verdict. Calling it again is a no-op.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.evaluation = nil
}

func (s *Store) Snapshot() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return s.session.clone(), true
}

func (s *Store) Evaluation() (EvaluationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluation == nil {
		return EvaluationResult{}, false
	}
	result := *s.evaluation
	if result.Commentary != nil {
		commentary := *result.Commentary
		result.Commentary = &commentary
	}
	return result, true
}

// CorrelationID groups remote calls and stored feedback for the current
// battle. It survives Reset and changes on InitBattle.
func (s *Store) CorrelationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.correlationID
}
