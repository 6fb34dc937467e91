package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"roastbattle/backend/internal/ai/prompts"
	"roastbattle/backend/internal/battle"
)

const (
	moveTemperature = 0.9
	moveMaxTokens   = 120
)

// OpenAIClient plays a persona through a chat-completions endpoint using
// the roster's persona tagline as its character sheet.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	model      string
	roster     *battle.Roster
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	http       *http.Client
}

func NewOpenAIClient(apiKey, baseURL, model string, roster *battle.Roster, requestTimeout time.Duration, maxRetries int, retryBase time.Duration) *OpenAIClient {
	if requestTimeout <= 0 {
		requestTimeout = 20 * time.Second
	}
	maxRetries = min(max(maxRetries, 0), 5)
	if roster == nil {
		roster = battle.DefaultRoster()
	}

	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}
	return &OpenAIClient{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   endpoint + "/chat/completions",
		model:      model,
		roster:     roster,
		timeout:    requestTimeout,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		http:       &http.Client{Timeout: requestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) GenerateMove(ctx context.Context, req MoveRequest) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is required for openai provider")
	}
	persona, ok := c.roster.Persona(req.PersonaKey)
	if !ok {
		return "", fmt.Errorf("%w: %q", battle.ErrUnknownPersona, req.PersonaKey)
	}
	intensity, ok := c.roster.Intensity(req.IntensityKey)
	if !ok {
		return "", fmt.Errorf("%w: %q", battle.ErrUnknownIntensity, req.IntensityKey)
	}
	prompt := prompts.RoastMove(
		prompts.Persona{Name: persona.Name, Tagline: persona.Tagline},
		prompts.Intensity{Name: intensity.Name, Description: intensity.Description},
		req.Message,
	)

	ctx, cancel := boundedContext(ctx, c.timeout)
	defer cancel()

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature: moveTemperature,
		MaxTokens:   moveMaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	return withRetry(ctx, c.maxRetries, c.retryBase, func(ctx context.Context) (string, error) {
		var out chatResponse
		if err := postJSON(ctx, c.http, "openai", c.endpoint, headers, payload, &out); err != nil {
			return "", err
		}
		if len(out.Choices) == 0 {
			return "", errEmptyReply
		}
		content := cleanReply(out.Choices[0].Message.Content)
		if content == "" {
			return "", errEmptyReply
		}
		return content, nil
	})
}
