package engine

import (
	"roastbattle/backend/internal/battle"
)

// View is what a UI renders: the stored session plus the runtime flags the
// session itself does not carry.
type View struct {
	Session         *battle.Session          `json:"session,omitempty"`
	Evaluation      *battle.EvaluationResult `json:"evaluation,omitempty"`
	EvaluationError string                   `json:"evaluation_error,omitempty"`
	Evaluating      bool                     `json:"evaluating"`
	TurnState       battle.TurnState         `json:"turn_state"`
	Waiting         bool                     `json:"waiting_for_opponent"`
	RevealingID     string                   `json:"revealing_message_id,omitempty"`
	SecondsLeft     int                      `json:"seconds_left"`
	ClockRunning    bool                     `json:"clock_running"`
	CanSend         bool                     `json:"can_send"`
	MessagesA       int                      `json:"messages_a"`
	MessagesB       int                      `json:"messages_b"`
}

type UpdateKind string

const (
	UpdateSnapshot UpdateKind = "snapshot"
	UpdateReveal   UpdateKind = "reveal"
)

// Update is pushed to subscribers. Reveal updates only say how many runes
// of a message are visible; snapshots carry the whole view.
type Update struct {
	Kind      UpdateKind `json:"kind"`
	View      *View      `json:"view,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	Visible   int        `json:"visible,omitempty"`
}

const subscriberBuffer = 64

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	view := View{TurnState: battle.StateIdle}
	session, ok := e.store.Snapshot()
	if !ok {
		return view
	}
	state := e.state

	view.Session = &session
	if result, ok := e.store.Evaluation(); ok {
		view.Evaluation = &result
	}
	view.EvaluationError = state.EvalErr
	view.Evaluating = state.EvalInFlight
	view.TurnState = battle.Decide(session).State
	view.Waiting = state.Waiting
	view.RevealingID = state.Revealing
	view.SecondsLeft = state.SecondsLeft
	view.ClockRunning = state.ClockArmed
	view.CanSend = battle.CanHumanSend(session) && !state.MoveInFlight && state.Revealing == ""
	view.MessagesA = session.Count(session.A.ID)
	view.MessagesB = session.Count(session.B.ID)
	return view
}

// Subscribe returns a channel of updates, starting with the current view.
// Slow subscribers miss updates rather than stall the battle.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	view := e.View()
	ch <- Update{Kind: UpdateSnapshot, View: &view}

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (e *Engine) publishLocked() {
	view := e.viewLocked()
	e.broadcast(Update{Kind: UpdateSnapshot, View: &view})
}

func (e *Engine) broadcast(update Update) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
