package battle

import "strings"

type TurnState string

const (
	StateAwaitingFirstMove    TurnState = "awaiting_first_move"
	StateAwaitingHumanInput   TurnState = "awaiting_human_input"
	StateAwaitingOpponentMove TurnState = "awaiting_opponent_move"
	StateBattleEnding         TurnState = "battle_ending"
	StateIdle                 TurnState = "idle"
)

// Decision is what should happen next for a session. Next and Payload are
// only meaningful for the awaiting states.
type Decision struct {
	State     TurnState
	Next      Participant
	FirstMove bool
	Payload   string
}

// Decide derives the next turn from message counts and the last author
// alone, so any transcript prefix maps to the same decision.
func Decide(s Session) Decision {
	if s.Status != StatusActive {
		return Decision{State: StateIdle}
	}
	limit := s.MaxMessagesPerParticipant
	countA := s.Count(s.A.ID)
	countB := s.Count(s.B.ID)
	if countA >= limit && countB >= limit {
		return Decision{State: StateBattleEnding}
	}

	last, hasLast := s.LastMessage()
	if s.Mode == ModeHumanVsAI && countA < limit && (!hasLast || last.ParticipantID != s.A.ID) {
		return Decision{State: StateAwaitingHumanInput, Next: s.A, FirstMove: countA == 0}
	}

	next := nextMover(s, countA, countB, last, hasLast)
	if next.Role == RoleHuman {
		return Decision{State: StateAwaitingHumanInput, Next: next, FirstMove: countA == 0}
	}

	decision := Decision{
		State:     StateAwaitingOpponentMove,
		Next:      next,
		FirstMove: s.Count(next.ID) == 0,
	}
	if !hasLast {
		decision.State = StateAwaitingFirstMove
	}
	decision.Payload = contextPayload(s, next, decision.FirstMove, last, hasLast)
	return decision
}

func nextMover(s Session, countA, countB int, last Message, hasLast bool) Participant {
	limit := s.MaxMessagesPerParticipant
	switch {
	case countA >= limit:
		return s.B
	case countB >= limit:
		return s.A
	case countA < countB:
		return s.A
	case countB < countA:
		return s.B
	case !hasLast:
		return s.A
	case last.ParticipantID == s.A.ID:
		return s.B
	default:
		return s.A
	}
}

// contextPayload is the message handed to the move generator. A first move
// gets the opponent's brief, plus the line being answered if there is one.
// Later moves get only the preceding line.
func contextPayload(s Session, next Participant, firstMove bool, last Message, hasLast bool) string {
	if !firstMove {
		if hasLast {
			return last.Content
		}
		return ""
	}

	opponent := s.Opponent(next.ID)
	var sb strings.Builder
	sb.WriteString(opponent.Brief)
	if hasLast {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if opponent.Role == RoleHuman {
			sb.WriteString("They just said: \"")
		} else {
			sb.WriteString("Their opening line: \"")
		}
		sb.WriteString(last.Content)
		sb.WriteString("\"")
	}
	return sb.String()
}

// CanHumanSend reports whether the send action should be enabled.
func CanHumanSend(s Session) bool {
	return s.Mode == ModeHumanVsAI && Decide(s).State == StateAwaitingHumanInput
}
