package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesJSONLineWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo("battle", &buf)
	logger.Info("move_generated", Fields{
		"battle_id": "b-1",
		"empty":     "  ",
		"nil":       nil,
		"err":       errors.New("boom"),
	})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["service"] != "battle" || entry["msg"] != "move_generated" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %+v", entry)
	}
	if _, ok := entry["empty"]; ok {
		t.Fatalf("blank string fields must be dropped")
	}
	if _, ok := entry["nil"]; ok {
		t.Fatalf("nil fields must be dropped")
	}
	if entry["err"] != "boom" {
		t.Fatalf("expected error rendered as string, got %v", entry["err"])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.With(Fields{"a": 1}) != nil {
		t.Fatalf("expected nil child logger")
	}
}

func TestPreviewTruncatesByRunes(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := Preview(long)
	if len([]rune(got)) != 81 {
		t.Fatalf("expected 80 runes plus ellipsis, got %d", len([]rune(got)))
	}
	if Preview("  short ") != "short" {
		t.Fatalf("expected trimmed short text")
	}
}

func TestMetricsHandlerExposesSeries(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveHTTPRequest("/battle", "post", 201, 20*time.Millisecond)
	metrics.IncRateLimited("client", "/battle/messages")
	metrics.BattleStarted("human_vs_ai", "spicy")
	metrics.ObserveMove("fallback", time.Second)
	metrics.ObserveEvaluation("ok", 2*time.Second)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`http_requests_total{method="POST",route="/battle",status="201"} 1`,
		`rate_limit_events_total{endpoint="/battle/messages",scope="client"} 1`,
		`battles_started_total{intensity="spicy",mode="human_vs_ai"} 1`,
		`ai_moves_total{outcome="fallback"} 1`,
		`evaluations_total{outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
