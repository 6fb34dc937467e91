package battle

import (
	"errors"
	"time"
)

type Mode string

const (
	ModeHumanVsAI Mode = "human_vs_ai"
	ModeAIVsAI    Mode = "ai_vs_ai"
)

func (m Mode) Valid() bool {
	return m == ModeHumanVsAI || m == ModeAIVsAI
}

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusEvaluating Status = "evaluating"
	StatusComplete   Status = "complete"
)

func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 1
	case StatusEvaluating:
		return 2
	case StatusComplete:
		return 3
	default:
		return 0
	}
}

// Side tags a participant slot in transcripts and verdicts.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "TIE"
)

// NormalizeWinner accepts only the exact verdict tags and maps anything
// else to a tie.
func NormalizeWinner(raw string) Winner {
	switch Winner(raw) {
	case WinnerA, WinnerB, WinnerTie:
		return Winner(raw)
	default:
		return WinnerTie
	}
}

const (
	HumanParticipantID = "human"
	AIAParticipantID   = "ai_a"
	AIBParticipantID   = "ai_b"
)

var (
	ErrNoSession               = errors.New("no active battle")
	ErrNotActive               = errors.New("battle is not active")
	ErrParticipantUnknown      = errors.New("participant is not part of this battle")
	ErrCapReached              = errors.New("participant reached the message cap")
	ErrOutOfTurn               = errors.New("participant cannot send two messages in a row")
	ErrEmptyContent            = errors.New("message content cannot be empty")
	ErrInvalidStatusTransition = errors.New("invalid battle status transition")
	ErrUnknownPersona          = errors.New("unknown persona")
	ErrUnknownIntensity        = errors.New("unknown intensity")
	ErrInvalidConfig           = errors.New("invalid battle config")
)

// Profile is the optional self-description a human gives before a battle.
// It only seeds the opponent's first prompt.
type Profile struct {
	Vibes       []string `json:"vibes,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Participant struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      Role     `json:"role"`
	PersonaID string   `json:"persona_id,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
	// Brief introduces this participant to whoever faces them.
	Brief string `json:"-"`
}

type Message struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

type Session struct {
	ID                        string      `json:"id"`
	CorrelationID             string      `json:"correlation_id"`
	Mode                      Mode        `json:"mode"`
	A                         Participant `json:"participant_a"`
	B                         Participant `json:"participant_b"`
	Intensity                 string      `json:"intensity"`
	TimeLimitSeconds          int         `json:"time_limit_seconds"`
	MaxMessagesPerParticipant int         `json:"max_messages_per_participant"`
	Messages                  []Message   `json:"messages"`
	Status                    Status      `json:"status"`
	StartedAt                 *time.Time  `json:"started_at,omitempty"`
	EndedAt                   *time.Time  `json:"ended_at,omitempty"`
}

func (s Session) Count(participantID string) int {
	count := 0
	for _, message := range s.Messages {
		if message.ParticipantID == participantID {
			count++
		}
	}
	return count
}

func (s Session) Participant(side Side) Participant {
	if side == SideB {
		return s.B
	}
	return s.A
}

func (s Session) SideOf(participantID string) (Side, bool) {
	switch participantID {
	case s.A.ID:
		return SideA, true
	case s.B.ID:
		return SideB, true
	default:
		return "", false
	}
}

func (s Session) Opponent(participantID string) Participant {
	if participantID == s.A.ID {
		return s.B
	}
	return s.A
}

func (s Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (s Session) Message(id string) (Message, bool) {
	for _, message := range s.Messages {
		if message.ID == id {
			return message, true
		}
	}
	return Message{}, false
}

func (s Session) CapsReached() bool {
	return s.Count(s.A.ID) >= s.MaxMessagesPerParticipant && s.Count(s.B.ID) >= s.MaxMessagesPerParticipant
}

func (s Session) clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.StartedAt != nil {
		started := *s.StartedAt
		out.StartedAt = &started
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return out
}

type Scores struct {
	Humor       float64 `json:"humor"`
	Punch       float64 `json:"punch"`
	Originality float64 `json:"originality"`
	Relevance   float64 `json:"relevance"`
	Overall     float64 `json:"overall"`
}

func (s Scores) Mean() float64 {
	return (s.Humor + s.Punch + s.Originality + s.Relevance) / 4
}

type CommentaryKind string

const (
	CommentaryWinnerLine  CommentaryKind = "winner_funniest_line"
	CommentaryOverallLine CommentaryKind = "overall_funniest_line"
)

type Commentary struct {
	Kind          CommentaryKind `json:"kind"`
	Speaker       string         `json:"speaker"`
	Line          string         `json:"line"`
	Justification string         `json:"justification"`
}

type EvaluationResult struct {
	BattleID   string      `json:"battle_id"`
	A          Scores      `json:"participant_a_scores"`
	B          Scores      `json:"participant_b_scores"`
	Winner     Winner      `json:"winner"`
	Margin     float64     `json:"margin"`
	Verdict    string      `json:"verdict,omitempty"`
	Commentary *Commentary `json:"commentary,omitempty"`
	ThreadText string      `json:"thread_text,omitempty"`
	JudgedAt   time.Time   `json:"judged_at"`
}
