package engine

import (
	"errors"
	"time"

	"roastbattle/backend/internal/battle"
)

var (
	ErrNotYourTurn        = errors.New("it is not your turn")
	ErrBusy               = errors.New("opponent is still responding")
	ErrNoEvaluationError  = errors.New("no failed evaluation to retry")
	ErrEvaluationPending  = errors.New("evaluation is still running")
	ErrNoResult           = errors.New("no evaluation result yet")
	ErrFeedbackSubmitted  = errors.New("feedback already submitted for this battle")
	ErrEmptyTranscript    = errors.New("transcript is empty")
	ErrHumanInputDisabled = errors.New("this battle does not take human messages")
	ErrFeedbackStore      = errors.New("feedback store failed")
)

// Options tune pacing. Zero values mean no delay.
type Options struct {
	RevealInterval           time.Duration
	OpeningDelay             time.Duration
	TurnDelay                time.Duration
	PauseClockDuringOpponent bool
}

// State is the runtime bookkeeping that sits beside the stored session.
// Tokens (Turn, ClockToken, EvalAttempt) let stale async results be
// recognized and dropped.
type State struct {
	BattleID string
	Options  Options

	Turn         int
	MoveInFlight bool
	Waiting      bool
	Revealing    string

	ClockToken  int
	ClockArmed  bool
	SecondsLeft int

	Ended        bool
	EvalAttempt  int
	EvalInFlight bool
	EvalErr      string
	ThreadText   string
	HasResult    bool
}

func NewState(opts Options) State {
	return State{Options: opts}
}

type Event interface{ isEvent() }

type (
	// Started follows a successful initBattle.
	Started struct{}
	// HumanMessage is the send action.
	HumanMessage struct{ Content string }
	// MoveGenerated carries generator output, already replaced by the
	// fallback line on failure.
	MoveGenerated struct {
		BattleID      string
		Turn          int
		ParticipantID string
		Content       string
	}
	MessageAppended struct {
		BattleID string
		Message  battle.Message
		FromAI   bool
	}
	AppendFailed struct {
		BattleID string
		FromAI   bool
		Err      error
	}
	RevealComplete struct {
		BattleID  string
		MessageID string
	}
	ClockTick struct {
		BattleID  string
		Token     int
		Remaining int
	}
	ClockExpired struct {
		BattleID string
		Token    int
	}
	EvaluationFinished struct {
		BattleID string
		Attempt  int
		Result   battle.EvaluationResult
		Err      error
	}
	RetryEvaluation struct{}
	DismissResults  struct{}
)

func (Started) isEvent()            {}
func (HumanMessage) isEvent()       {}
func (MoveGenerated) isEvent()      {}
func (MessageAppended) isEvent()    {}
func (AppendFailed) isEvent()       {}
func (RevealComplete) isEvent()     {}
func (ClockTick) isEvent()          {}
func (ClockExpired) isEvent()       {}
func (EvaluationFinished) isEvent() {}
func (RetryEvaluation) isEvent()    {}
func (DismissResults) isEvent()     {}

type Effect interface{ isEffect() }

type (
	ArmClock struct {
		Token   int
		Seconds int
	}
	DisarmClock struct{}
	RequestMove struct {
		Turn        int
		Participant battle.Participant
		Payload     string
		Delay       time.Duration
	}
	AppendMessage struct {
		ParticipantID string
		Content       string
		FromAI        bool
	}
	StartReveal struct {
		MessageID string
		Content   string
		Animated  bool
	}
	SetStatus struct{ Status battle.Status }
	Evaluate  struct {
		Attempt    int
		ThreadText string
	}
	StoreResult struct{ Result battle.EvaluationResult }
	Reject      struct{ Err error }
)

func (ArmClock) isEffect()      {}
func (DisarmClock) isEffect()   {}
func (RequestMove) isEffect()   {}
func (AppendMessage) isEffect() {}
func (StartReveal) isEffect()   {}
func (SetStatus) isEffect()     {}
func (Evaluate) isEffect()      {}
func (StoreResult) isEffect()   {}
func (Reject) isEffect()        {}

// Transition is the whole battle flow as a pure function: it never touches
// the store, timers, or the network, it only says what should happen.
func Transition(state State, session battle.Session, ev Event) (State, []Effect) {
	hasSession := session.ID != ""
	if hasSession && state.BattleID != session.ID {
		// a different battle than the one this state tracks
		if _, ok := ev.(Started); !ok {
			return state, rejectCommand(ev, battle.ErrNoSession)
		}
	}

	switch ev := ev.(type) {
	case Started:
		if !hasSession {
			return state, nil
		}
		fresh := NewState(state.Options)
		fresh.BattleID = session.ID
		var effects []Effect
		if session.Mode == battle.ModeHumanVsAI {
			fresh.SecondsLeft = session.TimeLimitSeconds
			fresh, effects = armClock(fresh, session.TimeLimitSeconds, effects)
		}
		return advance(fresh, session, effects)

	case HumanMessage:
		if !hasSession {
			return state, []Effect{Reject{Err: battle.ErrNoSession}}
		}
		if session.Mode != battle.ModeHumanVsAI {
			return state, []Effect{Reject{Err: ErrHumanInputDisabled}}
		}
		if session.Status != battle.StatusActive {
			return state, []Effect{Reject{Err: battle.ErrNotActive}}
		}
		if state.MoveInFlight || state.Revealing != "" {
			return state, []Effect{Reject{Err: ErrBusy}}
		}
		if decision := battle.Decide(session); decision.State != battle.StateAwaitingHumanInput {
			if session.Count(session.A.ID) >= session.MaxMessagesPerParticipant {
				return state, []Effect{Reject{Err: battle.ErrCapReached}}
			}
			return state, []Effect{Reject{Err: ErrNotYourTurn}}
		}
		return state, []Effect{AppendMessage{ParticipantID: session.A.ID, Content: ev.Content}}

	case MoveGenerated:
		if ev.BattleID != state.BattleID || ev.Turn != state.Turn || !state.MoveInFlight {
			return state, nil
		}
		if session.Status != battle.StatusActive {
			state.MoveInFlight = false
			state.Waiting = false
			return state, nil
		}
		return state, []Effect{AppendMessage{ParticipantID: ev.ParticipantID, Content: ev.Content, FromAI: true}}

	case MessageAppended:
		if ev.BattleID != state.BattleID {
			return state, nil
		}
		if ev.FromAI {
			state.MoveInFlight = false
			state.Waiting = false
		}
		state.Revealing = ev.Message.ID
		return state, []Effect{StartReveal{MessageID: ev.Message.ID, Content: ev.Message.Content, Animated: ev.FromAI}}

	case AppendFailed:
		if ev.BattleID != state.BattleID || !ev.FromAI {
			return state, nil
		}
		state.MoveInFlight = false
		state.Waiting = false
		return advance(state, session, nil)

	case RevealComplete:
		if ev.BattleID != state.BattleID || ev.MessageID != state.Revealing {
			return state, nil
		}
		state.Revealing = ""
		return advance(state, session, nil)

	case ClockTick:
		if ev.BattleID != state.BattleID || ev.Token != state.ClockToken || !state.ClockArmed {
			return state, nil
		}
		state.SecondsLeft = ev.Remaining
		return state, nil

	case ClockExpired:
		if ev.BattleID != state.BattleID || ev.Token != state.ClockToken || !state.ClockArmed {
			return state, nil
		}
		state.ClockArmed = false
		state.SecondsLeft = 0
		if session.Status != battle.StatusActive {
			return state, nil
		}
		return endBattle(state, session, nil)

	case EvaluationFinished:
		if ev.BattleID != state.BattleID || ev.Attempt != state.EvalAttempt || !state.EvalInFlight {
			return state, nil
		}
		state.EvalInFlight = false
		if ev.Err != nil {
			state.EvalErr = ev.Err.Error()
			return state, nil
		}
		state.EvalErr = ""
		state.HasResult = true
		return state, []Effect{StoreResult{Result: ev.Result}}

	case RetryEvaluation:
		if !hasSession {
			return state, []Effect{Reject{Err: battle.ErrNoSession}}
		}
		if state.EvalInFlight {
			return state, []Effect{Reject{Err: ErrEvaluationPending}}
		}
		if !state.Ended || state.EvalErr == "" {
			return state, []Effect{Reject{Err: ErrNoEvaluationError}}
		}
		state.EvalAttempt++
		state.EvalInFlight = true
		state.EvalErr = ""
		return state, []Effect{Evaluate{Attempt: state.EvalAttempt, ThreadText: state.ThreadText}}

	case DismissResults:
		if !hasSession {
			return state, []Effect{Reject{Err: battle.ErrNoSession}}
		}
		if !state.HasResult {
			return state, []Effect{Reject{Err: ErrNoResult}}
		}
		if session.Status != battle.StatusEvaluating {
			return state, []Effect{Reject{Err: battle.ErrInvalidStatusTransition}}
		}
		return state, []Effect{SetStatus{Status: battle.StatusComplete}}
	}
	return state, nil
}

// advance asks the sequencer what comes next, but only once nothing is in
// flight and no reveal is still playing.
func advance(state State, session battle.Session, effects []Effect) (State, []Effect) {
	if session.Status != battle.StatusActive || state.Ended {
		return state, effects
	}
	if state.MoveInFlight || state.Revealing != "" {
		return state, effects
	}

	decision := battle.Decide(session)
	switch decision.State {
	case battle.StateBattleEnding:
		return endBattle(state, session, effects)

	case battle.StateAwaitingHumanInput:
		if state.Options.PauseClockDuringOpponent && !state.ClockArmed && state.SecondsLeft > 0 {
			state, effects = armClock(state, state.SecondsLeft, effects)
		}
		return state, effects

	case battle.StateAwaitingFirstMove, battle.StateAwaitingOpponentMove:
		if state.Options.PauseClockDuringOpponent && state.ClockArmed {
			state.ClockArmed = false
			effects = append(effects, DisarmClock{})
		}
		state.Turn++
		state.MoveInFlight = true
		state.Waiting = true
		effects = append(effects, RequestMove{
			Turn:        state.Turn,
			Participant: decision.Next,
			Payload:     decision.Payload,
			Delay:       moveDelay(state.Options, session, decision.State),
		})
		return state, effects
	}
	return state, effects
}

func moveDelay(opts Options, session battle.Session, turnState battle.TurnState) time.Duration {
	if session.Mode != battle.ModeAIVsAI {
		return 0
	}
	if turnState == battle.StateAwaitingFirstMove {
		return opts.OpeningDelay
	}
	return opts.TurnDelay
}

// endBattle leaves active exactly once: stop the clock, flip the status,
// freeze the transcript, and ask for the verdict.
func endBattle(state State, session battle.Session, effects []Effect) (State, []Effect) {
	if state.Ended {
		return state, effects
	}
	state.Ended = true
	state.ClockArmed = false
	effects = append(effects, DisarmClock{}, SetStatus{Status: battle.StatusEvaluating})

	state.ThreadText = battle.ThreadText(session)
	state.EvalAttempt++
	state.EvalInFlight = true
	state.EvalErr = ""
	effects = append(effects, Evaluate{Attempt: state.EvalAttempt, ThreadText: state.ThreadText})
	return state, effects
}

func armClock(state State, seconds int, effects []Effect) (State, []Effect) {
	state.ClockToken++
	state.ClockArmed = true
	state.SecondsLeft = seconds
	return state, append(effects, ArmClock{Token: state.ClockToken, Seconds: seconds})
}

func rejectCommand(ev Event, err error) []Effect {
	switch ev.(type) {
	case HumanMessage, RetryEvaluation, DismissResults:
		return []Effect{Reject{Err: err}}
	}
	return nil
}
