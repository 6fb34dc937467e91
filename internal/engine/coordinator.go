package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/judge"
	"roastbattle/backend/internal/observability"
)

// Coordinator turns a serialized transcript into an EvaluationResult. It
// makes one judge call per Evaluate; retries are the caller's decision.
type Coordinator struct {
	judge       judge.Judge
	commentator judge.Commentator
	clock       clock.Clock
	logger      *observability.Logger
}

func NewCoordinator(j judge.Judge, commentator judge.Commentator, c clock.Clock, logger *observability.Logger) *Coordinator {
	if c == nil {
		c = clock.Real{}
	}
	return &Coordinator{judge: j, commentator: commentator, clock: c, logger: logger}
}

func (c *Coordinator) Evaluate(ctx context.Context, threadText string) (battle.EvaluationResult, error) {
	if strings.TrimSpace(threadText) == "" {
		return battle.EvaluationResult{}, ErrEmptyTranscript
	}

	card, err := c.judge.Score(ctx, threadText)
	if err != nil {
		return battle.EvaluationResult{}, fmt.Errorf("evaluate battle: %w", err)
	}

	result := mapScorecard(card)
	result.ThreadText = threadText
	result.JudgedAt = c.clock.Now().UTC()

	if c.commentator != nil {
		commentary, err := c.commentator.Comment(ctx, threadText, result.Winner)
		if err != nil {
			c.logger.Warn("commentary_failed", observability.Fields{
				"winner": string(result.Winner),
				"error":  err,
			})
		} else {
			result.Commentary = &commentary
		}
	}
	if result.Verdict == "" {
		result.Verdict = genericVerdict(result.Winner, result.Margin)
	}
	return result, nil
}

func mapScorecard(card judge.Scorecard) battle.EvaluationResult {
	a := battle.Scores{
		Humor:       axis(card.AHumor),
		Punch:       axis(card.APunch),
		Originality: axis(card.AOriginality),
		Relevance:   axis(card.ARelevance),
	}
	b := battle.Scores{
		Humor:       axis(card.BHumor),
		Punch:       axis(card.BPunch),
		Originality: axis(card.BOriginality),
		Relevance:   axis(card.BRelevance),
	}
	a.Overall = overall(card.OverallA, a)
	b.Overall = overall(card.OverallB, b)

	margin := math.Abs(a.Overall - b.Overall)
	if card.Margin != nil {
		margin = math.Abs(*card.Margin)
	}
	return battle.EvaluationResult{
		A:       a,
		B:       b,
		Winner:  battle.NormalizeWinner(card.Winner),
		Margin:  margin,
		Verdict: card.Verdict,
	}
}

func axis(value *float64) float64 {
	if value == nil {
		return 0
	}
	return clamp(*value)
}

func overall(value *float64, scores battle.Scores) float64 {
	if value != nil {
		return clamp(*value)
	}
	return scores.Mean()
}

func clamp(value float64) float64 {
	return math.Max(0, math.Min(100, value))
}

func genericVerdict(winner battle.Winner, margin float64) string {
	switch winner {
	case battle.WinnerA, battle.WinnerB:
		return fmt.Sprintf("Participant %s takes the crown by %.1f points.", winner, margin)
	default:
		return "Dead heat. Nobody landed the knockout."
	}
}
