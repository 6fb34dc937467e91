package judge

import (
	"context"

	"roastbattle/backend/internal/config"
)

func NewFromConfig(cfg config.Config) Judge {
	if cfg.JudgeProvider == "http" {
		return NewHTTPJudge(cfg.JudgeBaseURL, cfg.JudgePath, cfg.JudgeTimeout)
	}
	return NewMockJudge()
}

// NewCommentatorFromConfig returns nil when commentary is switched off.
func NewCommentatorFromConfig(ctx context.Context, cfg config.Config) (Commentator, error) {
	switch cfg.CommentaryProvider {
	case "off", "none":
		return nil, nil
	case "gemini":
		commentator, err := NewGeminiCommentator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.CommentaryTimeout)
		if err != nil {
			return nil, err
		}
		return commentator, nil
	case "http":
		return NewHTTPCommentator(cfg.CommentaryURL, cfg.CommentaryTimeout), nil
	default:
		return NewMockCommentator(), nil
	}
}
