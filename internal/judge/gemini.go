package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"roastbattle/backend/internal/ai/prompts"
	"roastbattle/backend/internal/battle"
)

// GeminiCommentator asks a Gemini model for the funniest line.
type GeminiCommentator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiCommentator(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiCommentator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required for gemini commentary")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiCommentator{client: client, model: model, timeout: timeout}, nil
}

func (g *GeminiCommentator) Comment(ctx context.Context, threadText string, winner battle.Winner) (battle.Commentary, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := prompts.Commentary(threadText, string(winner))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
		MaxOutputTokens:   500,
	})
	if err != nil {
		return battle.Commentary{}, fmt.Errorf("gemini commentary: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return battle.Commentary{}, errors.New("gemini commentary: empty response")
	}
	return ParseCommentary(out)
}
