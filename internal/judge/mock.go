package judge

import (
	"context"
	"strings"
	"unicode/utf8"

	"roastbattle/backend/internal/battle"
)

// MockJudge scores by line length so local runs produce stable verdicts.
type MockJudge struct{}

func NewMockJudge() *MockJudge {
	return &MockJudge{}
}

func (MockJudge) Score(_ context.Context, threadText string) (Scorecard, error) {
	var aRunes, bRunes int
	for _, line := range strings.Split(threadText, "\n") {
		switch {
		case strings.HasPrefix(line, "A: "):
			aRunes += utf8.RuneCountInString(line) - 3
		case strings.HasPrefix(line, "B: "):
			bRunes += utf8.RuneCountInString(line) - 3
		}
	}
	a := mockScore(aRunes)
	b := mockScore(bRunes)
	return Scorecard{
		AHumor: &a, APunch: &a, AOriginality: &a, ARelevance: &a,
		BHumor: &b, BPunch: &b, BOriginality: &b, BRelevance: &b,
	}, nil
}

func mockScore(runes int) float64 {
	score := 40 + float64(runes%60)
	if score > 100 {
		score = 100
	}
	return score
}

// MockCommentator quotes the first line from the relevant side.
type MockCommentator struct{}

func NewMockCommentator() *MockCommentator {
	return &MockCommentator{}
}

func (MockCommentator) Comment(_ context.Context, threadText string, winner battle.Winner) (battle.Commentary, error) {
	speaker := string(winner)
	kind := battle.CommentaryWinnerLine
	if winner == battle.WinnerTie {
		speaker = "A"
		kind = battle.CommentaryOverallLine
	}
	for _, line := range strings.Split(threadText, "\n") {
		if strings.HasPrefix(line, speaker+": ") {
			return battle.Commentary{
				Kind:          kind,
				Speaker:       speaker,
				Line:          strings.TrimPrefix(line, speaker+": "),
				Justification: "Clean setup, quick payoff.",
			}, nil
		}
	}
	return battle.Commentary{}, ErrCommentaryEmpty
}
