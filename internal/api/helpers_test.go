package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roastbattle/backend/internal/ai"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/cache"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/config"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/feedback"
	"roastbattle/backend/internal/judge"
	"roastbattle/backend/internal/observability"
)

type testEnv struct {
	clock   *clock.Fake
	sink    feedback.Sink
	results *cache.MemoryCache
	server  *Server
	router  http.Handler
}

type envOption func(*config.Config, *Deps, *testEnv)

func withSink(sink feedback.Sink) envOption {
	return func(_ *config.Config, _ *Deps, env *testEnv) { env.sink = sink }
}

func withMessageRate(rps float64, burst int) envOption {
	return func(cfg *config.Config, _ *Deps, _ *testEnv) {
		cfg.MessageRatePerSec = rps
		cfg.MessageRateBurst = burst
	}
}

func withDatabase(p Pinger) envOption {
	return func(_ *config.Config, deps *Deps, _ *testEnv) { deps.Database = p }
}

func withJudgeHealth(h HealthChecker) envOption {
	return func(_ *config.Config, deps *Deps, _ *testEnv) { deps.Judge = h }
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:           "api-test-secret",
		CORSAllowedOrigins:  []string{"http://localhost:5173"},
		APIRequestTimeout:   5 * time.Second,
		RequestBodyMaxBytes: 64 << 10,
		MessageRatePerSec:   100,
		MessageRateBurst:    100,
	}
}

// newTestEnv wires engines that run every async step inline, so a request
// returns only after the opponent has answered.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		clock: clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)),
		sink:  feedback.NewMemorySink(),
	}
	env.results = cache.NewMemoryCache(env.clock, time.Hour)

	cfg := testConfig()
	deps := Deps{Results: env.results, Logger: observability.Discard()}
	for _, opt := range opts {
		opt(&cfg, &deps, env)
	}

	roster := battle.DefaultRoster()
	factory := func() *engine.Engine {
		return engine.New(engine.Deps{
			Store:       battle.NewStore(env.clock, roster, battle.DefaultLimits()),
			Generator:   ai.NewMockClient(),
			Coordinator: engine.NewCoordinator(judge.NewMockJudge(), judge.NewMockCommentator(), env.clock, observability.Discard()),
			Feedback:    env.sink,
			Results:     env.results,
			Clock:       env.clock,
			Logger:      observability.Discard(),
		}, engine.Config{Spawn: func(f func()) { f() }})
	}
	deps.Registry = engine.NewRegistry(factory, env.clock, time.Hour, nil)
	deps.Roster = roster

	env.server = New(cfg, deps)
	env.router = env.server.Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	return recorder
}

func (env *testEnv) token(t *testing.T) string {
	t.Helper()
	recorder := env.do(t, http.MethodPost, "/sessions", "", nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from /sessions, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Token    string `json:"token"`
		ClientID string `json:"client_id"`
	}
	decodeBody(t, recorder, &resp)
	if resp.Token == "" || resp.ClientID == "" {
		t.Fatalf("expected token and client id, got %+v", resp)
	}
	return resp.Token
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
}

func humanBattle() battle.Config {
	return battle.Config{Mode: battle.ModeHumanVsAI, PersonaB: "trump", Intensity: "spicy"}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubHealth struct{ err error }

func (h stubHealth) Health(context.Context) error { return h.err }

type failingSink struct{}

func (failingSink) SaveTrainingRecord(context.Context, battle.BattleTrainingRecord) error {
	return errors.New("connection refused")
}

func (failingSink) SaveAgentEvaluations(context.Context, []battle.AgentEvaluationRecord) error {
	return errors.New("connection refused")
}
