package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/judge"
	"roastbattle/backend/internal/observability"
)

type recordingJudge struct {
	mu      sync.Mutex
	threads []string
	errs    []error
	card    judge.Scorecard
}

func (j *recordingJudge) Score(_ context.Context, threadText string) (judge.Scorecard, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.threads = append(j.threads, threadText)
	if len(j.errs) > 0 {
		err := j.errs[0]
		j.errs = j.errs[1:]
		if err != nil {
			return judge.Scorecard{}, err
		}
	}
	return j.card, nil
}

func (j *recordingJudge) calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.threads...)
}

type stubCommentator struct {
	commentary battle.Commentary
	err        error
	winners    []battle.Winner
}

func (c *stubCommentator) Comment(_ context.Context, _ string, winner battle.Winner) (battle.Commentary, error) {
	c.winners = append(c.winners, winner)
	return c.commentary, c.err
}

func ptr(value float64) *float64 { return &value }

func fullCard() judge.Scorecard {
	return judge.Scorecard{
		AHumor: ptr(80), APunch: ptr(70), AOriginality: ptr(60), ARelevance: ptr(90),
		BHumor: ptr(50), BPunch: ptr(40), BOriginality: ptr(30), BRelevance: ptr(60),
		OverallA: ptr(75), OverallB: ptr(45), Margin: ptr(30),
		Winner: "A", Verdict: "A cooked.",
	}
}

func TestCoordinatorRejectsEmptyTranscript(t *testing.T) {
	j := &recordingJudge{card: fullCard()}
	coordinator := NewCoordinator(j, nil, clock.NewFake(time.Unix(0, 0)), observability.Discard())

	for _, thread := range []string{"", "  \n\t"} {
		if _, err := coordinator.Evaluate(context.Background(), thread); !errors.Is(err, ErrEmptyTranscript) {
			t.Fatalf("expected empty transcript error, got %v", err)
		}
	}
	if calls := j.calls(); len(calls) != 0 {
		t.Fatalf("judge must not be called for an empty transcript, got %d calls", len(calls))
	}
}

func TestCoordinatorMapsScorecard(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	commentator := &stubCommentator{commentary: battle.Commentary{Kind: battle.CommentaryWinnerLine, Speaker: "A", Line: "zing", Justification: "tight"}}
	coordinator := NewCoordinator(&recordingJudge{card: fullCard()}, commentator, clock.NewFake(now), observability.Discard())

	result, err := coordinator.Evaluate(context.Background(), "A: hi\nB: yo")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.A.Humor != 80 || result.B.Relevance != 60 || result.A.Overall != 75 || result.B.Overall != 45 {
		t.Fatalf("unexpected scores %#v %#v", result.A, result.B)
	}
	if result.Winner != battle.WinnerA || result.Margin != 30 || result.Verdict != "A cooked." {
		t.Fatalf("unexpected verdict fields %#v", result)
	}
	if result.ThreadText != "A: hi\nB: yo" || !result.JudgedAt.Equal(now) {
		t.Fatalf("expected transcript and timestamp to be recorded, got %#v", result)
	}
	if result.Commentary == nil || result.Commentary.Line != "zing" {
		t.Fatalf("expected commentary, got %#v", result.Commentary)
	}
	if len(commentator.winners) != 1 || commentator.winners[0] != battle.WinnerA {
		t.Fatalf("commentary should be keyed off the computed winner, got %v", commentator.winners)
	}
}

func TestCoordinatorDefaultsMissingFields(t *testing.T) {
	card := judge.Scorecard{
		AHumor: ptr(60), APunch: ptr(80), ARelevance: ptr(140),
		BHumor: ptr(20),
		Winner: "Participant A",
	}
	coordinator := NewCoordinator(&recordingJudge{card: card}, nil, nil, nil)

	result, err := coordinator.Evaluate(context.Background(), "A: hi")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.A.Originality != 0 || result.B.Punch != 0 {
		t.Fatalf("missing axes should default to 0, got %#v %#v", result.A, result.B)
	}
	if result.A.Relevance != 100 {
		t.Fatalf("scores should clamp to 100, got %v", result.A.Relevance)
	}
	if result.A.Overall != 60 || result.B.Overall != 5 {
		t.Fatalf("missing overall should be the axis mean, got %v and %v", result.A.Overall, result.B.Overall)
	}
	if result.Margin != 55 {
		t.Fatalf("missing margin should be the overall gap, got %v", result.Margin)
	}
	if result.Winner != battle.WinnerTie {
		t.Fatalf("unrecognized winner should normalize to TIE, got %s", result.Winner)
	}
	if result.Verdict == "" {
		t.Fatalf("expected a generic verdict")
	}
}

func TestCoordinatorRequiresExactWinnerTag(t *testing.T) {
	card := fullCard()
	card.Winner = " B\n"
	card.OverallA, card.OverallB, card.Margin = nil, nil, nil
	coordinator := NewCoordinator(&recordingJudge{card: card}, nil, nil, nil)

	result, err := coordinator.Evaluate(context.Background(), "A: hi\nB: yo")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Winner != battle.WinnerTie {
		t.Fatalf("padded winner tag should normalize to TIE, got %s", result.Winner)
	}
	if result.A.Overall != 75 || result.B.Overall != 45 || result.Margin != 30 {
		t.Fatalf("null overall and margin should fall back to computed values, got %v %v %v", result.A.Overall, result.B.Overall, result.Margin)
	}
}

func TestCoordinatorCommentaryFailureKeepsScores(t *testing.T) {
	commentator := &stubCommentator{err: errors.New("commentary service down")}
	card := fullCard()
	card.Verdict = ""
	coordinator := NewCoordinator(&recordingJudge{card: card}, commentator, nil, observability.Discard())

	result, err := coordinator.Evaluate(context.Background(), "A: hi\nB: yo")
	if err != nil {
		t.Fatalf("commentary failure must not fail the evaluation: %v", err)
	}
	if result.Commentary != nil {
		t.Fatalf("commentary should be omitted, got %#v", result.Commentary)
	}
	if result.Winner != battle.WinnerA || result.A.Overall != 75 || result.Margin != 30 {
		t.Fatalf("scores should be intact, got %#v", result)
	}
	if result.Verdict != "Participant A takes the crown by 30.0 points." {
		t.Fatalf("expected generic verdict, got %q", result.Verdict)
	}
}

func TestCoordinatorWrapsJudgeFailure(t *testing.T) {
	cause := errors.New("status=502")
	coordinator := NewCoordinator(&recordingJudge{errs: []error{cause}}, nil, nil, nil)

	if _, err := coordinator.Evaluate(context.Background(), "A: hi"); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped judge error, got %v", err)
	}
}
