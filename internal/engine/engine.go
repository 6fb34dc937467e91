package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"roastbattle/backend/internal/ai"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/observability"
)

// FallbackLine replaces an opponent move that failed or timed out.
const FallbackLine = "Sorry, my comeback got lost on the way. Your move!"

const defaultMoveTimeout = 25 * time.Second

// FeedbackSink persists the post-battle rating records.
type FeedbackSink interface {
	SaveTrainingRecord(ctx context.Context, record battle.BattleTrainingRecord) error
	SaveAgentEvaluations(ctx context.Context, records []battle.AgentEvaluationRecord) error
}

// ResultCache keeps verdicts reachable by battle id after the session is gone.
type ResultCache interface {
	Put(ctx context.Context, result battle.EvaluationResult) error
}

type Deps struct {
	Store       *battle.Store
	Generator   ai.MoveGenerator
	Coordinator *Coordinator
	Feedback    FeedbackSink
	Results     ResultCache
	Clock       clock.Clock
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

type Config struct {
	Options
	MoveTimeout time.Duration
	// Spawn runs background work. Defaults to a new goroutine; tests pass a
	// synchronous runner.
	Spawn func(func())
}

// Engine owns one client's battle. Every event, whether a user command or
// an async completion, goes through a single queue and is handled one at a
// time, so Transition never runs concurrently with itself.
type Engine struct {
	store       *battle.Store
	generator   ai.MoveGenerator
	coordinator *Coordinator
	feedback    FeedbackSink
	results     ResultCache
	clock       clock.Clock
	logger      *observability.Logger
	metrics     *observability.Metrics

	opts        Options
	moveTimeout time.Duration
	spawn       func(func())

	countdown *clock.Countdown
	reveals   *revealer

	qmu      sync.Mutex
	queue    []queued
	draining bool

	mu           sync.Mutex
	state        State
	battleCtx    context.Context
	cancelBattle context.CancelFunc
	moveTimer    clock.Timer

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int

	fbMu      sync.Mutex
	submitted map[string]bool
}

type queued struct {
	ev  Event
	cmd *command
}

type command struct {
	ctx      context.Context
	reply    chan commandResult
	resolved bool
}

type commandResult struct {
	session battle.Session
	message battle.Message
	err     error
}

func (c *command) abandoned() error {
	if c == nil || c.ctx == nil {
		return nil
	}
	return c.ctx.Err()
}

func (c *command) resolve(result commandResult) {
	if c == nil || c.resolved {
		return
	}
	c.resolved = true
	c.reply <- result
}

// startCommand and resetCommand touch the store before the machine sees
// them, so they are handled outside Transition.
type (
	startCommand struct{ cfg battle.Config }
	resetCommand struct{}
)

func (startCommand) isEvent() {}
func (resetCommand) isEvent() {}

func New(deps Deps, cfg Config) *Engine {
	c := deps.Clock
	if c == nil {
		c = clock.Real{}
	}
	store := deps.Store
	if store == nil {
		store = battle.NewStore(c, nil, battle.DefaultLimits())
	}
	generator := deps.Generator
	if generator == nil {
		generator = ai.NewMockClient()
	}
	moveTimeout := cfg.MoveTimeout
	if moveTimeout <= 0 {
		moveTimeout = defaultMoveTimeout
	}
	spawn := cfg.Spawn
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}

	return &Engine{
		store:       store,
		generator:   generator,
		coordinator: deps.Coordinator,
		feedback:    deps.Feedback,
		results:     deps.Results,
		clock:       c,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		opts:        cfg.Options,
		moveTimeout: moveTimeout,
		spawn:       spawn,
		countdown:   clock.NewCountdown(c),
		reveals:     newRevealer(c, cfg.RevealInterval),
		state:       NewState(cfg.Options),
		subs:        map[int]chan Update{},
		submitted:   map[string]bool{},
	}
}

func (e *Engine) Store() *battle.Store { return e.store }

// Start discards whatever battle was running and begins a new one.
func (e *Engine) Start(ctx context.Context, cfg battle.Config) (battle.Session, error) {
	result, err := e.run(ctx, startCommand{cfg: cfg})
	if err != nil {
		return battle.Session{}, err
	}
	return result.session, result.err
}

// SendMessage appends the human's line. Only valid in human_vs_ai when it
// is the human's turn and nothing is being generated or revealed.
func (e *Engine) SendMessage(ctx context.Context, content string) (battle.Message, error) {
	result, err := e.run(ctx, HumanMessage{Content: content})
	if err != nil {
		return battle.Message{}, err
	}
	return result.message, result.err
}

// RetryEvaluation replays the frozen transcript after a failed judge call.
func (e *Engine) RetryEvaluation(ctx context.Context) error {
	result, err := e.run(ctx, RetryEvaluation{})
	if err != nil {
		return err
	}
	return result.err
}

func (e *Engine) DismissResults(ctx context.Context) error {
	result, err := e.run(ctx, DismissResults{})
	if err != nil {
		return err
	}
	return result.err
}

// Reset stops timers and pending work and clears the session. Safe to call
// any number of times.
func (e *Engine) Reset() {
	_, _ = e.run(context.Background(), resetCommand{})
}

func (e *Engine) run(ctx context.Context, ev Event) (commandResult, error) {
	if err := ctx.Err(); err != nil {
		return commandResult{}, err
	}
	cmd := &command{ctx: ctx, reply: make(chan commandResult, 1)}
	e.post(queued{ev: ev, cmd: cmd})
	select {
	case result := <-cmd.reply:
		return result, nil
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}

// post queues an item. The first poster to find the queue idle drains it;
// anyone posting meanwhile (timers, spawned work, effects) only enqueues.
func (e *Engine) post(item queued) {
	e.qmu.Lock()
	e.queue = append(e.queue, item)
	if e.draining {
		e.qmu.Unlock()
		return
	}
	e.draining = true
	e.qmu.Unlock()

	for {
		e.qmu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.qmu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		e.handle(next)
	}
}

func (e *Engine) postEvent(ev Event) {
	e.post(queued{ev: ev})
}

func (e *Engine) handle(item queued) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The caller already gave up; drop the command unrun.
	if err := item.cmd.abandoned(); err != nil {
		item.cmd.resolve(commandResult{err: err})
		return
	}

	switch ev := item.ev.(type) {
	case startCommand:
		session, err := e.store.InitBattle(ev.cfg)
		if err != nil {
			item.cmd.resolve(commandResult{err: err})
			return
		}
		e.stopRuntimeLocked()
		e.battleCtx, e.cancelBattle = context.WithCancel(context.Background())
		e.state = NewState(e.opts)
		e.metrics.BattleStarted(string(session.Mode), session.Intensity)
		e.logger.Info("battle_started", observability.Fields{
			"battle_id":      session.ID,
			"correlation_id": session.CorrelationID,
			"mode":           string(session.Mode),
			"persona_a":      session.A.PersonaID,
			"persona_b":      session.B.PersonaID,
			"intensity":      session.Intensity,
			"time_limit":     session.TimeLimitSeconds,
		})
		e.apply(item, Started{})
		item.cmd.resolve(commandResult{session: session})

	case resetCommand:
		e.stopRuntimeLocked()
		if session, ok := e.store.Snapshot(); ok {
			e.logger.Info("battle_reset", observability.Fields{"battle_id": session.ID})
		}
		e.store.Reset()
		e.state = NewState(e.opts)

	default:
		e.apply(item, item.ev)
	}

	item.cmd.resolve(commandResult{})
	e.publishLocked()
}

func (e *Engine) apply(item queued, ev Event) {
	session, _ := e.store.Snapshot()
	next, effects := Transition(e.state, session, ev)
	e.state = next
	for _, effect := range effects {
		e.execute(item, effect)
	}
}

func (e *Engine) execute(item queued, effect Effect) {
	battleID := e.state.BattleID

	switch eff := effect.(type) {
	case ArmClock:
		token := eff.Token
		e.countdown.Arm(eff.Seconds,
			func(_ uint64, remaining int) {
				e.postEvent(ClockTick{BattleID: battleID, Token: token, Remaining: remaining})
			},
			func(uint64) {
				e.postEvent(ClockExpired{BattleID: battleID, Token: token})
			},
		)

	case DisarmClock:
		e.countdown.Disarm()

	case RequestMove:
		e.dispatchMove(eff)

	case AppendMessage:
		message, err := e.store.AppendMessage(eff.ParticipantID, eff.Content)
		if err != nil {
			e.logger.Warn("append_rejected", observability.Fields{
				"battle_id":      battleID,
				"participant_id": eff.ParticipantID,
				"error":          err,
			})
			if !eff.FromAI {
				item.cmd.resolve(commandResult{err: err})
			}
			e.postEvent(AppendFailed{BattleID: battleID, FromAI: eff.FromAI, Err: err})
			return
		}
		e.logger.Info("message_appended", observability.Fields{
			"battle_id":      battleID,
			"participant_id": message.ParticipantID,
			"message_id":     message.ID,
			"preview":        observability.Preview(message.Content),
		})
		if !eff.FromAI {
			item.cmd.resolve(commandResult{message: message})
		}
		e.postEvent(MessageAppended{BattleID: battleID, Message: message, FromAI: eff.FromAI})

	case StartReveal:
		e.reveals.start(eff.MessageID, eff.Content, eff.Animated,
			func(id string, shown int) {
				e.broadcast(Update{Kind: UpdateReveal, MessageID: id, Visible: shown})
			},
			func(id string) {
				e.postEvent(RevealComplete{BattleID: battleID, MessageID: id})
			},
		)

	case SetStatus:
		if err := e.store.SetStatus(eff.Status); err != nil {
			e.logger.Error("status_change_failed", observability.Fields{
				"battle_id": battleID,
				"status":    string(eff.Status),
				"error":     err,
			})
			item.cmd.resolve(commandResult{err: err})
			return
		}
		e.logger.Info("battle_status_changed", observability.Fields{
			"battle_id": battleID,
			"status":    string(eff.Status),
		})

	case Evaluate:
		e.dispatchEvaluation(eff)

	case StoreResult:
		if err := e.store.SetEvaluationResult(eff.Result); err != nil {
			e.logger.Error("store_result_failed", observability.Fields{"battle_id": battleID, "error": err})
			return
		}
		stored, _ := e.store.Evaluation()
		e.metrics.BattleJudged(string(stored.Winner))
		e.logger.Info("battle_judged", observability.Fields{
			"battle_id": battleID,
			"winner":    string(stored.Winner),
			"margin":    stored.Margin,
		})
		e.cacheResult(stored)

	case Reject:
		item.cmd.resolve(commandResult{err: eff.Err})
	}
}

func (e *Engine) dispatchMove(eff RequestMove) {
	session, ok := e.store.Snapshot()
	if !ok {
		return
	}
	battleID := e.state.BattleID
	ctx := e.battleCtx
	req := ai.MoveRequest{
		PersonaKey:    eff.Participant.PersonaID,
		PersonaName:   eff.Participant.Name,
		IntensityKey:  session.Intensity,
		SessionID:     session.ID + "-" + eff.Participant.ID,
		CorrelationID: session.CorrelationID,
		Message:       eff.Payload,
	}

	launch := func() {
		e.spawn(func() {
			content := e.generate(ctx, req, battleID, eff)
			e.postEvent(MoveGenerated{
				BattleID:      battleID,
				Turn:          eff.Turn,
				ParticipantID: eff.Participant.ID,
				Content:       content,
			})
		})
	}
	if eff.Delay > 0 {
		e.moveTimer = e.clock.AfterFunc(eff.Delay, launch)
		return
	}
	launch()
}

// generate never fails: any error or empty reply becomes FallbackLine.
func (e *Engine) generate(ctx context.Context, req ai.MoveRequest, battleID string, eff RequestMove) string {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.moveTimeout)
	defer cancel()

	started := e.clock.Now()
	content, err := e.generator.GenerateMove(ctx, req)
	content = strings.TrimSpace(content)
	elapsed := e.clock.Now().Sub(started)

	if err == nil && content != "" {
		e.metrics.ObserveMove("ok", elapsed)
		return content
	}

	outcome := "fallback"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	if err == nil {
		err = errors.New("empty response")
	}
	e.metrics.ObserveMove(outcome, elapsed)
	e.logger.Warn("opponent_move_fallback", observability.Fields{
		"battle_id":      battleID,
		"correlation_id": req.CorrelationID,
		"participant_id": eff.Participant.ID,
		"turn":           eff.Turn,
		"error":          err,
	})
	return FallbackLine
}

func (e *Engine) dispatchEvaluation(eff Evaluate) {
	battleID := e.state.BattleID
	ctx := e.battleCtx
	if ctx == nil {
		ctx = context.Background()
	}
	e.logger.Info("evaluation_requested", observability.Fields{
		"battle_id": battleID,
		"attempt":   eff.Attempt,
	})

	e.spawn(func() {
		started := e.clock.Now()
		var (
			result battle.EvaluationResult
			err    error
		)
		if e.coordinator == nil {
			err = errors.New("no judge configured")
		} else {
			result, err = e.coordinator.Evaluate(ctx, eff.ThreadText)
		}

		outcome := "ok"
		if err != nil {
			outcome = "error"
			e.logger.Error("evaluation_failed", observability.Fields{
				"battle_id": battleID,
				"attempt":   eff.Attempt,
				"error":     err,
			})
		}
		e.metrics.ObserveEvaluation(outcome, e.clock.Now().Sub(started))
		e.postEvent(EvaluationFinished{BattleID: battleID, Attempt: eff.Attempt, Result: result, Err: err})
	})
}

func (e *Engine) cacheResult(result battle.EvaluationResult) {
	if e.results == nil {
		return
	}
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.results.Put(ctx, result); err != nil {
			e.logger.Warn("result_cache_failed", observability.Fields{
				"battle_id": result.BattleID,
				"error":     err,
			})
		}
	})
}

func (e *Engine) stopRuntimeLocked() {
	e.countdown.Disarm()
	e.reveals.stopAll()
	if e.moveTimer != nil {
		e.moveTimer.Stop()
		e.moveTimer = nil
	}
	if e.cancelBattle != nil {
		e.cancelBattle()
		e.cancelBattle = nil
	}
	e.battleCtx = nil
}

// SubmitFeedback turns the human's ratings into a training record. Each
// battle accepts one submission.
func (e *Engine) SubmitFeedback(ctx context.Context, feedback battle.HumanFeedback) (battle.BattleTrainingRecord, error) {
	session, ok := e.store.Snapshot()
	if !ok {
		return battle.BattleTrainingRecord{}, battle.ErrNoSession
	}
	result, ok := e.store.Evaluation()
	if !ok {
		return battle.BattleTrainingRecord{}, ErrNoResult
	}

	e.fbMu.Lock()
	defer e.fbMu.Unlock()
	key := session.ID + ":human"
	if e.submitted[key] {
		return battle.BattleTrainingRecord{}, ErrFeedbackSubmitted
	}

	record, err := battle.BuildTrainingRecord(session, result, feedback, e.clock.Now())
	if err != nil {
		return battle.BattleTrainingRecord{}, err
	}
	if e.feedback != nil {
		if err := e.feedback.SaveTrainingRecord(ctx, record); err != nil {
			return battle.BattleTrainingRecord{}, fmt.Errorf("%w: save training record: %w", ErrFeedbackStore, err)
		}
	}
	e.submitted[key] = true
	e.logger.Info("feedback_submitted", observability.Fields{
		"battle_id":      session.ID,
		"correlation_id": session.CorrelationID,
	})
	return record, nil
}

// SubmitAgentEvaluations rates the AI participants: B only in human_vs_ai,
// both sides in ai_vs_ai.
func (e *Engine) SubmitAgentEvaluations(ctx context.Context, evaluations []battle.AgentEvaluation) ([]battle.AgentEvaluationRecord, error) {
	session, ok := e.store.Snapshot()
	if !ok {
		return nil, battle.ErrNoSession
	}
	if _, ok := e.store.Evaluation(); !ok {
		return nil, ErrNoResult
	}
	if len(evaluations) == 0 {
		return nil, fmt.Errorf("%w: no agent evaluations", battle.ErrInvalidConfig)
	}
	if rated := battle.RatedSides(session); len(evaluations) > len(rated) {
		return nil, fmt.Errorf("%w: %d evaluations for %d agents", battle.ErrInvalidConfig, len(evaluations), len(rated))
	}

	e.fbMu.Lock()
	defer e.fbMu.Unlock()
	key := session.ID + ":agents"
	if e.submitted[key] {
		return nil, ErrFeedbackSubmitted
	}

	seen := map[battle.Side]bool{}
	records := make([]battle.AgentEvaluationRecord, 0, len(evaluations))
	for _, evaluation := range evaluations {
		record, err := battle.BuildAgentEvaluationRecord(session, evaluation, e.clock.Now())
		if err != nil {
			return nil, err
		}
		side := record.AgentParticipant
		if seen[side] {
			return nil, fmt.Errorf("%w: participant %s rated twice", battle.ErrInvalidConfig, side)
		}
		seen[side] = true
		records = append(records, record)
	}

	if e.feedback != nil {
		if err := e.feedback.SaveAgentEvaluations(ctx, records); err != nil {
			return nil, fmt.Errorf("%w: save agent evaluations: %w", ErrFeedbackStore, err)
		}
	}
	e.submitted[key] = true
	e.logger.Info("agent_evaluations_submitted", observability.Fields{
		"battle_id": session.ID,
		"count":     len(records),
	})
	return records, nil
}
