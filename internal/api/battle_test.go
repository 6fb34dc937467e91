package api

import (
	"net/http"
	"strings"
	"testing"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/feedback"
)

func TestRosterHidesAgentSecrets(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/roster", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, `"personas"`) {
		t.Fatalf("expected personas in roster, got %s", body)
	}
	if strings.Contains(body, `"agents"`) {
		t.Fatalf("agent routing must not leak to clients: %s", body)
	}
}

func TestBattleRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/battle/", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodGet, "/battle/", "not-a-jwt", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", recorder.Code)
	}
}

func TestBattleViewWithoutSessionRedirectsToSetup(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	recorder := env.do(t, http.MethodGet, "/battle/", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	var payload map[string]any
	decodeBody(t, recorder, &payload)
	if payload["redirect"] != "/" {
		t.Fatalf("expected redirect to setup, got %v", payload)
	}

	recorder = env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": "hello there"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when sending without a battle, got %d", recorder.Code)
	}
}

func TestStartBattleRejectsBadConfig(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	recorder := env.do(t, http.MethodPost, "/battle/", token, battle.Config{Mode: battle.ModeHumanVsAI, PersonaB: "nobody", Intensity: "spicy"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown persona, got %d", recorder.Code)
	}

	recorder = env.do(t, http.MethodPost, "/battle/", token, `{"mode":"human_vs_ai","persona_b":"trump","intensity":"spicy","extra":true}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", recorder.Code)
	}
}

func TestHumanBattleRunsToVerdictOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	recorder := env.do(t, http.MethodPost, "/battle/", token, humanBattle())
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var started struct {
		Session battle.Session `json:"session"`
	}
	decodeBody(t, recorder, &started)
	battleID := started.Session.ID
	if battleID == "" {
		t.Fatalf("expected a battle id")
	}

	lines := []string{"Nice hair. Did you lose a bet?", "Your tweets have more typos than facts.", "Even your tan needs a fact check."}
	for _, line := range lines {
		recorder = env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": line})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201 on send, got %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	recorder = env.do(t, http.MethodGet, "/battle/", token, nil)
	var view engine.View
	decodeBody(t, recorder, &view)
	if view.MessagesA != 3 || view.MessagesB != 3 {
		t.Fatalf("expected 3 messages per side, got %d/%d", view.MessagesA, view.MessagesB)
	}
	if view.Session.Status != battle.StatusEvaluating {
		t.Fatalf("expected evaluating status, got %s", view.Session.Status)
	}

	recorder = env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": "one more?"})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 after the battle ended, got %d", recorder.Code)
	}

	recorder = env.do(t, http.MethodGet, "/battle/evaluation", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on evaluation, got %d", recorder.Code)
	}
	var evaluation struct {
		Evaluation *battle.EvaluationResult `json:"evaluation"`
	}
	decodeBody(t, recorder, &evaluation)
	if evaluation.Evaluation == nil || evaluation.Evaluation.BattleID != battleID {
		t.Fatalf("expected evaluation for %s, got %+v", battleID, evaluation.Evaluation)
	}

	recorder = env.do(t, http.MethodGet, "/results/"+battleID, "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected cached result, got %d", recorder.Code)
	}

	ratings := battle.AxisRatings{Humor: 1, Punch: 0.75, Originality: 0.5, Relevance: 0.25}
	fb := battle.HumanFeedback{A: ratings, B: ratings, FreeText: "close one"}
	recorder = env.do(t, http.MethodPost, "/battle/feedback", token, fb)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on feedback, got %d: %s", recorder.Code, recorder.Body.String())
	}
	recorder = env.do(t, http.MethodPost, "/battle/feedback", token, fb)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second feedback, got %d", recorder.Code)
	}

	agentRatings := map[string]any{"evaluations": []battle.AgentEvaluation{{
		Participant: battle.SideB, PersonaMatch: 0.9, Relevance: 0.8, FunFactor: 0.7, Originality: 0.6,
	}}}
	recorder = env.do(t, http.MethodPost, "/battle/agent-evaluations", token, agentRatings)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on agent evaluations, got %d: %s", recorder.Code, recorder.Body.String())
	}

	sink := env.sink.(*feedback.MemorySink)
	if len(sink.TrainingRecords()) != 1 || len(sink.AgentEvaluations()) != 1 {
		t.Fatalf("expected one training record and one agent rating, got %d/%d", len(sink.TrainingRecords()), len(sink.AgentEvaluations()))
	}

	recorder = env.do(t, http.MethodPost, "/battle/results/dismiss", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on dismiss, got %d: %s", recorder.Code, recorder.Body.String())
	}
	decodeBody(t, recorder, &view)
	if view.Session.Status != battle.StatusComplete {
		t.Fatalf("expected complete status, got %s", view.Session.Status)
	}

	recorder = env.do(t, http.MethodDelete, "/battle/", token, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on reset, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodGet, "/results/"+battleID, "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected result to outlive the reset, got %d", recorder.Code)
	}
}

func TestSendMessageValidatesContent(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)
	if recorder := env.do(t, http.MethodPost, "/battle/", token, humanBattle()); recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d", recorder.Code)
	}

	recorder := env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": "   "})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": strings.Repeat("x", 501)})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized message, got %d", recorder.Code)
	}
}

func TestRetryWithoutFailureConflicts(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)
	env.do(t, http.MethodPost, "/battle/", token, humanBattle())

	recorder := env.do(t, http.MethodPost, "/battle/evaluation/retry", token, nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 when nothing failed, got %d", recorder.Code)
	}
}

func TestFeedbackWriteFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, withSink(failingSink{}))
	token := env.token(t)
	env.do(t, http.MethodPost, "/battle/", token, humanBattle())
	for _, line := range []string{"first jab here", "second jab here", "third jab here"} {
		env.do(t, http.MethodPost, "/battle/messages", token, map[string]string{"content": line})
	}

	ratings := battle.AxisRatings{Humor: 0.5, Punch: 0.5, Originality: 0.5, Relevance: 0.5}
	recorder := env.do(t, http.MethodPost, "/battle/feedback", token, battle.HumanFeedback{A: ratings, B: ratings})
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when the store is down, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestUnknownResultIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/results/missing", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestClientsDoNotShareBattles(t *testing.T) {
	env := newTestEnv(t)
	first := env.token(t)
	second := env.token(t)

	env.do(t, http.MethodPost, "/battle/", first, humanBattle())
	recorder := env.do(t, http.MethodGet, "/battle/", second, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected the second client to have no battle, got %d", recorder.Code)
	}
}
