package battle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"roastbattle/backend/internal/clock"
)

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	seq := 0
	store := NewStore(fake, DefaultRoster(), DefaultLimits(), WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}))
	return store, fake
}

func humanConfig() Config {
	return Config{Mode: ModeHumanVsAI, PersonaB: "trump", Intensity: "spicy"}
}

func aiConfig() Config {
	return Config{Mode: ModeAIVsAI, PersonaA: "gandhi", PersonaB: "hawking", Intensity: "mild", TimeLimitSeconds: 90}
}

func TestInitBattleBuildsParticipants(t *testing.T) {
	store, _ := newTestStore(t)

	session, err := store.InitBattle(humanConfig())
	if err != nil {
		t.Fatalf("init battle: %v", err)
	}
	if session.Status != StatusActive || session.StartedAt == nil {
		t.Fatalf("expected active session with start time, got %+v", session)
	}
	if session.A.ID != HumanParticipantID || session.A.Role != RoleHuman || session.A.Name != "You" {
		t.Fatalf("unexpected participant A %+v", session.A)
	}
	if session.B.ID != AIBParticipantID || session.B.PersonaID != "trump" || session.B.Name != "Donald Trump" {
		t.Fatalf("unexpected participant B %+v", session.B)
	}
	if session.TimeLimitSeconds != 60 || session.MaxMessagesPerParticipant != 3 {
		t.Fatalf("expected defaults 60s/3, got %d/%d", session.TimeLimitSeconds, session.MaxMessagesPerParticipant)
	}

	ai, err := store.InitBattle(aiConfig())
	if err != nil {
		t.Fatalf("init ai battle: %v", err)
	}
	if ai.A.ID != AIAParticipantID || ai.A.PersonaID != "gandhi" || ai.TimeLimitSeconds != 90 {
		t.Fatalf("unexpected ai_vs_ai session %+v", ai)
	}
}

func TestAIBattleDefaultsToLongerClock(t *testing.T) {
	store, _ := newTestStore(t)
	cfg := aiConfig()
	cfg.TimeLimitSeconds = 0

	session, err := store.InitBattle(cfg)
	if err != nil {
		t.Fatalf("init ai battle: %v", err)
	}
	if session.TimeLimitSeconds != 120 {
		t.Fatalf("expected 120s for ai_vs_ai, got %d", session.TimeLimitSeconds)
	}

	cfg.TimeLimitSeconds = 120
	if _, err := store.InitBattle(cfg); err != nil {
		t.Fatalf("120s should be accepted for ai_vs_ai: %v", err)
	}
}

func TestInitBattleRotatesIdentifiersAndDropsEvaluation(t *testing.T) {
	store, _ := newTestStore(t)
	first, _ := store.InitBattle(humanConfig())
	_ = store.SetStatus(StatusEvaluating)
	if err := store.SetEvaluationResult(EvaluationResult{Winner: WinnerA}); err != nil {
		t.Fatalf("set evaluation: %v", err)
	}

	second, err := store.InitBattle(humanConfig())
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if second.ID == first.ID || second.CorrelationID == first.CorrelationID {
		t.Fatalf("expected fresh ids, got %s/%s and %s/%s", first.ID, first.CorrelationID, second.ID, second.CorrelationID)
	}
	if _, ok := store.Evaluation(); ok {
		t.Fatalf("expected evaluation to be discarded")
	}
	if store.CorrelationID() != second.CorrelationID {
		t.Fatalf("store correlation id out of sync")
	}
}

func TestInitBattleRejectsBadConfig(t *testing.T) {
	store, _ := newTestStore(t)
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"mode", Config{Mode: "duel", PersonaB: "trump", Intensity: "mild"}, ErrInvalidConfig},
		{"intensity", Config{Mode: ModeHumanVsAI, PersonaB: "trump", Intensity: "nuclear"}, ErrUnknownIntensity},
		{"persona b", Config{Mode: ModeHumanVsAI, PersonaB: "nobody", Intensity: "mild"}, ErrUnknownPersona},
		{"persona a", Config{Mode: ModeAIVsAI, PersonaA: "", PersonaB: "trump", Intensity: "mild"}, ErrUnknownPersona},
		{"time limit", Config{Mode: ModeHumanVsAI, PersonaB: "trump", Intensity: "mild", TimeLimitSeconds: 45}, ErrInvalidConfig},
		{"time limit for mode", Config{Mode: ModeHumanVsAI, PersonaB: "trump", Intensity: "mild", TimeLimitSeconds: 120}, ErrInvalidConfig},
		{"same persona", Config{Mode: ModeAIVsAI, PersonaA: "hawking", PersonaB: "hawking", Intensity: "mild"}, ErrInvalidConfig},
		{"vibe", Config{Mode: ModeHumanVsAI, PersonaB: "trump", Intensity: "mild", HumanProfile: &Profile{Vibes: []string{"astronaut"}}}, ErrInvalidConfig},
	}
	for _, tc := range cases {
		if _, err := store.InitBattle(tc.cfg); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, ok := store.Snapshot(); ok {
		t.Fatalf("failed init must not create a session")
	}
}

func TestHumanProfileFeedsBrief(t *testing.T) {
	store, _ := newTestStore(t)
	cfg := humanConfig()
	cfg.HumanProfile = &Profile{Vibes: []string{"gamer", "coffee_addict", "gamer"}, Description: "  backend dev who never sleeps "}
	session, err := store.InitBattle(cfg)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(session.A.Profile.Vibes) != 2 || session.A.Profile.Vibes[0] != "Gamer" {
		t.Fatalf("expected deduplicated vibe labels, got %v", session.A.Profile.Vibes)
	}
	want := "You're up against a human challenger. They describe themselves as: backend dev who never sleeps. Their vibe: Gamer, Coffee Addict."
	if session.A.Brief != want {
		t.Fatalf("unexpected brief\n got: %q\nwant: %q", session.A.Brief, want)
	}
}

func TestAppendMessageEnforcesRules(t *testing.T) {
	store, fake := newTestStore(t)
	if _, err := store.AppendMessage(HumanParticipantID, "hi"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	_, _ = store.InitBattle(humanConfig())

	if _, err := store.AppendMessage("stranger", "hi"); !errors.Is(err, ErrParticipantUnknown) {
		t.Fatalf("expected ErrParticipantUnknown, got %v", err)
	}
	if _, err := store.AppendMessage(HumanParticipantID, "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}

	fake.Advance(2 * time.Second)
	message, err := store.AppendMessage(HumanParticipantID, "  first roast ")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if message.Content != "first roast" || !message.CreatedAt.Equal(fake.Now()) {
		t.Fatalf("unexpected message %+v", message)
	}
	if _, err := store.AppendMessage(HumanParticipantID, "again"); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
}

func TestAppendMessageCapInvariant(t *testing.T) {
	store, _ := newTestStore(t)
	_, _ = store.InitBattle(aiConfig())

	ids := []string{AIAParticipantID, AIBParticipantID}
	for turn := 0; turn < 6; turn++ {
		if _, err := store.AppendMessage(ids[turn%2], fmt.Sprintf("line %d", turn)); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
	}
	for _, id := range ids {
		if _, err := store.AppendMessage(id, "one more"); !errors.Is(err, ErrCapReached) {
			t.Fatalf("expected ErrCapReached for %s, got %v", id, err)
		}
	}
	session, _ := store.Snapshot()
	if session.Count(AIAParticipantID) != 3 || session.Count(AIBParticipantID) != 3 {
		t.Fatalf("cap exceeded: %d/%d", session.Count(AIAParticipantID), session.Count(AIBParticipantID))
	}
}

func TestAppendAllowsRepeatWhenOpponentCapped(t *testing.T) {
	store, _ := newTestStore(t)
	_, _ = store.InitBattle(aiConfig())
	store.mu.Lock()
	// a non-alternating transcript: B already used every line
	for idx := 0; idx < 3; idx++ {
		store.session.Messages = append(store.session.Messages, Message{ID: fmt.Sprintf("b%d", idx), ParticipantID: AIBParticipantID, Content: "x"})
	}
	store.session.Messages = append(store.session.Messages, Message{ID: "a0", ParticipantID: AIAParticipantID, Content: "y"})
	store.mu.Unlock()

	if _, err := store.AppendMessage(AIAParticipantID, "second in a row"); err != nil {
		t.Fatalf("expected repeat to be allowed once opponent is capped, got %v", err)
	}
}

func TestSetStatusForwardOnly(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.SetStatus(StatusEvaluating); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	_, _ = store.InitBattle(humanConfig())

	if err := store.SetStatus(StatusComplete); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("active -> complete must be rejected, got %v", err)
	}
	if err := store.SetStatus(StatusEvaluating); err != nil {
		t.Fatalf("active -> evaluating: %v", err)
	}
	if _, err := store.AppendMessage(HumanParticipantID, "late"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after evaluation started, got %v", err)
	}
	if err := store.SetStatus(StatusActive); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("evaluating -> active must be rejected, got %v", err)
	}
	if err := store.SetStatus(StatusComplete); err != nil {
		t.Fatalf("evaluating -> complete: %v", err)
	}
	session, _ := store.Snapshot()
	if session.EndedAt == nil {
		t.Fatalf("expected end time on completion")
	}
	if err := store.SetStatus(StatusComplete); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("complete -> complete must be rejected, got %v", err)
	}
}

func TestSetEvaluationResultRequiresEvaluation(t *testing.T) {
	store, _ := newTestStore(t)
	session, _ := store.InitBattle(humanConfig())
	if err := store.SetEvaluationResult(EvaluationResult{}); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected rejection while active, got %v", err)
	}
	_ = store.SetStatus(StatusEvaluating)
	if err := store.SetEvaluationResult(EvaluationResult{Winner: WinnerB, Commentary: &Commentary{Line: "zing"}}); err != nil {
		t.Fatalf("set evaluation: %v", err)
	}
	result, ok := store.Evaluation()
	if !ok || result.BattleID != session.ID || result.Winner != WinnerB {
		t.Fatalf("unexpected result %+v", result)
	}
	result.Commentary.Line = "mutated"
	again, _ := store.Evaluation()
	if again.Commentary.Line != "zing" {
		t.Fatalf("evaluation snapshot must be a copy")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	session, _ := store.InitBattle(humanConfig())
	_, _ = store.AppendMessage(HumanParticipantID, "hello")

	store.Reset()
	_, hasSession := store.Snapshot()
	_, hasEval := store.Evaluation()
	correlation := store.CorrelationID()

	store.Reset()
	_, hasSession2 := store.Snapshot()
	_, hasEval2 := store.Evaluation()

	if hasSession || hasEval || hasSession2 || hasEval2 {
		t.Fatalf("expected empty store after reset")
	}
	if correlation != session.CorrelationID || store.CorrelationID() != correlation {
		t.Fatalf("reset must not rotate the correlation id")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store, _ := newTestStore(t)
	_, _ = store.InitBattle(humanConfig())
	_, _ = store.AppendMessage(HumanParticipantID, "original")

	snapshot, _ := store.Snapshot()
	snapshot.Messages[0].Content = "changed"
	snapshot.Status = StatusComplete

	fresh, _ := store.Snapshot()
	if fresh.Messages[0].Content != "original" || fresh.Status != StatusActive {
		t.Fatalf("snapshot mutation leaked into store: %+v", fresh)
	}
}
