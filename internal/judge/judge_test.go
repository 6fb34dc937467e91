package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roastbattle/backend/internal/battle"
)

func TestParseScorecardToleratesBadFields(t *testing.T) {
	card, err := ParseScorecard([]byte(`{
		"A_humor": 81.5, "A_punch": "72", "A_originality": "lots", "A_relevance": null,
		"B_humor": 60, "overall_A": 70, "margin": 5, "winner": "A", "verdict": " sharp "
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if card.AHumor == nil || *card.AHumor != 81.5 {
		t.Fatalf("expected A_humor 81.5")
	}
	if card.APunch == nil || *card.APunch != 72 {
		t.Fatalf("numeric strings should parse")
	}
	if card.AOriginality != nil || card.ARelevance != nil || card.BPunch != nil || card.OverallB != nil {
		t.Fatalf("malformed or missing fields must be nil")
	}
	if card.Winner != "A" || card.Verdict != "sharp" {
		t.Fatalf("unexpected text fields %+v", card)
	}

	for _, body := range []string{`not json`, `[1,2]`, `null`, `"str"`} {
		if _, err := ParseScorecard([]byte(body)); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse for %q, got %v", body, err)
		}
	}
}

func TestParseScorecardKeepsWinnerTagVerbatim(t *testing.T) {
	card, err := ParseScorecard([]byte(`{"overall_A": null, "margin": null, "winner": " B\n"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if card.OverallA != nil || card.Margin != nil {
		t.Fatalf("null numbers must be nil, got %v %v", card.OverallA, card.Margin)
	}
	if card.Winner != " B\n" {
		t.Fatalf("winner tag should not be trimmed, got %q", card.Winner)
	}
}

func TestHTTPJudgeScore(t *testing.T) {
	var gotThread string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/judge_battle" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotThread = body["thread_text"]
		_, _ = w.Write([]byte(`{"A_humor": 70, "B_humor": 50, "winner": "A"}`))
	}))
	defer server.Close()

	judge := NewHTTPJudge(server.URL+"/", "judge_battle", time.Second)
	card, err := judge.Score(context.Background(), "A: hi\nB: bye")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if gotThread != "A: hi\nB: bye" || card.Winner != "A" || *card.AHumor != 70 {
		t.Fatalf("unexpected exchange thread=%q card=%+v", gotThread, card)
	}
}

func TestHTTPJudgeFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/judge_battle":
			http.Error(w, "model cold start", http.StatusServiceUnavailable)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	judge := NewHTTPJudge(server.URL, "", time.Second)
	if _, err := judge.Score(context.Background(), "A: x"); err == nil || !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("expected status error, got %v", err)
	}
	if err := judge.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	slow := NewHTTPJudge(server.URL, "/slow", 20*time.Millisecond)
	if _, err := slow.Score(context.Background(), "A: x"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestParseCommentaryShapes(t *testing.T) {
	winner, err := ParseCommentary("```json\n{\"winner_funniest_line\": {\"speaker\": \"B\", \"line\": \"zing\"}, \"justification\": \"tight\"}\n```")
	if err != nil {
		t.Fatalf("parse winner commentary: %v", err)
	}
	if winner.Kind != battle.CommentaryWinnerLine || winner.Speaker != "B" || winner.Line != "zing" || winner.Justification != "tight" {
		t.Fatalf("unexpected commentary %+v", winner)
	}

	overall, err := ParseCommentary(`{"overall_funniest_line": {"speaker": "A", "line": "boom"}, "justification": "x"}`)
	if err != nil || overall.Kind != battle.CommentaryOverallLine {
		t.Fatalf("unexpected overall commentary %+v %v", overall, err)
	}

	if _, err := ParseCommentary(`{"justification": "nothing"}`); !errors.Is(err, ErrCommentaryEmpty) {
		t.Fatalf("expected ErrCommentaryEmpty, got %v", err)
	}
	if _, err := ParseCommentary(`garbage`); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHTTPCommentatorSendsWinner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["winner"] != "TIE" {
			t.Errorf("expected TIE winner, got %q", body["winner"])
		}
		_, _ = w.Write([]byte(`{"overall_funniest_line": {"speaker": "A", "line": "boom"}, "justification": "x"}`))
	}))
	defer server.Close()

	commentary, err := NewHTTPCommentator(server.URL, time.Second).Comment(context.Background(), "A: boom", battle.WinnerTie)
	if err != nil || commentary.Line != "boom" {
		t.Fatalf("unexpected commentary %+v %v", commentary, err)
	}
}

func TestMocksAreUsable(t *testing.T) {
	card, err := NewMockJudge().Score(context.Background(), "A: short\nB: a much longer line")
	if err != nil || card.AHumor == nil || card.BHumor == nil {
		t.Fatalf("unexpected mock card %+v %v", card, err)
	}
	commentary, err := NewMockCommentator().Comment(context.Background(), "A: first\nB: second", battle.WinnerB)
	if err != nil || commentary.Line != "second" || commentary.Speaker != "B" {
		t.Fatalf("unexpected mock commentary %+v %v", commentary, err)
	}
}
