package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/common"
)

// Scorecard is a judge response as received. Nil fields were absent or not
// numeric; callers decide the defaults.
type Scorecard struct {
	AHumor       *float64
	APunch       *float64
	AOriginality *float64
	ARelevance   *float64
	BHumor       *float64
	BPunch       *float64
	BOriginality *float64
	BRelevance   *float64
	OverallA     *float64
	OverallB     *float64
	Margin       *float64
	Winner       string
	Verdict      string
}

type Judge interface {
	Score(ctx context.Context, threadText string) (Scorecard, error)
}

type Commentator interface {
	Comment(ctx context.Context, threadText string, winner battle.Winner) (battle.Commentary, error)
}

var (
	ErrMalformedResponse = errors.New("malformed judge response")
	ErrCommentaryEmpty   = errors.New("commentary response has no funniest line")
)

// ParseScorecard reads the judge's JSON object. Only a body that is not a
// JSON object is an error; individual fields degrade to nil.
func ParseScorecard(raw []byte) (Scorecard, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Scorecard{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}
	return Scorecard{
		AHumor:       number(fields, "A_humor"),
		APunch:       number(fields, "A_punch"),
		AOriginality: number(fields, "A_originality"),
		ARelevance:   number(fields, "A_relevance"),
		BHumor:       number(fields, "B_humor"),
		BPunch:       number(fields, "B_punch"),
		BOriginality: number(fields, "B_originality"),
		BRelevance:   number(fields, "B_relevance"),
		OverallA:     number(fields, "overall_A"),
		OverallB:     number(fields, "overall_B"),
		Margin:       number(fields, "margin"),
		Winner:       rawText(fields, "winner"),
		Verdict:      text(fields, "verdict"),
	}, nil
}

func number(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err == nil {
		return finite(value)
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(asString), 64); err == nil {
			return finite(parsed)
		}
	}
	return nil
}

func finite(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

func text(fields map[string]json.RawMessage, key string) string {
	return strings.TrimSpace(rawText(fields, key))
}

// rawText keeps the string exactly as sent.
func rawText(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

type funniestLine struct {
	Speaker string `json:"speaker"`
	Line    string `json:"line"`
}

// ParseCommentary reads either commentary shape, tolerating code fences
// around the JSON.
func ParseCommentary(raw string) (battle.Commentary, error) {
	var out struct {
		WinnerLine    *funniestLine `json:"winner_funniest_line"`
		OverallLine   *funniestLine `json:"overall_funniest_line"`
		Justification string        `json:"justification"`
	}
	if err := json.Unmarshal([]byte(common.StripCodeFence(raw)), &out); err != nil {
		return battle.Commentary{}, fmt.Errorf("decode commentary: %w", err)
	}

	commentary := battle.Commentary{Justification: strings.TrimSpace(out.Justification)}
	switch {
	case out.WinnerLine != nil && strings.TrimSpace(out.WinnerLine.Line) != "":
		commentary.Kind = battle.CommentaryWinnerLine
		commentary.Speaker = strings.TrimSpace(out.WinnerLine.Speaker)
		commentary.Line = strings.TrimSpace(out.WinnerLine.Line)
	case out.OverallLine != nil && strings.TrimSpace(out.OverallLine.Line) != "":
		commentary.Kind = battle.CommentaryOverallLine
		commentary.Speaker = strings.TrimSpace(out.OverallLine.Speaker)
		commentary.Line = strings.TrimSpace(out.OverallLine.Line)
	default:
		return battle.Commentary{}, ErrCommentaryEmpty
	}
	return commentary, nil
}
