package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"roastbattle/backend/internal/battle"
)

// AgentClient relays moves to hosted persona agents. Each persona and
// intensity pair maps to one agent id and one of several API keys.
type AgentClient struct {
	url            string
	keys           map[string]string
	roster         *battle.Roster
	requestTimeout time.Duration
	http           *http.Client
}

func NewAgentClient(url string, keys map[string]string, roster *battle.Roster, requestTimeout time.Duration) *AgentClient {
	if requestTimeout <= 0 {
		requestTimeout = 25 * time.Second
	}
	copied := make(map[string]string, len(keys))
	for group, key := range keys {
		copied[group] = strings.TrimSpace(key)
	}
	return &AgentClient{
		url:            strings.TrimSpace(url),
		keys:           copied,
		roster:         roster,
		requestTimeout: requestTimeout,
		http:           &http.Client{Timeout: requestTimeout},
	}
}

func (c *AgentClient) GenerateMove(ctx context.Context, req MoveRequest) (string, error) {
	agent, ok := c.roster.Agent(req.PersonaKey, req.IntensityKey)
	if !ok {
		return "", fmt.Errorf("%w: %s_%s", ErrAgentNotConfigured, req.PersonaKey, req.IntensityKey)
	}
	apiKey := c.keys[agent.KeyGroup]
	if apiKey == "" {
		return "", fmt.Errorf("agent api key group %q is not configured", agent.KeyGroup)
	}

	ctx, cancel := boundedContext(ctx, c.requestTimeout)
	defer cancel()

	payload := map[string]string{
		"user_id":    req.CorrelationID,
		"agent_id":   agent.AgentID,
		"session_id": req.SessionID,
		"message":    req.Message,
	}
	var out struct {
		Response string `json:"response"`
		Message  string `json:"message"`
	}
	if err := postJSON(ctx, c.http, "agent", c.url, map[string]string{"x-api-key": apiKey}, payload, &out); err != nil {
		return "", err
	}
	content := cleanReply(out.Response)
	if content == "" {
		content = cleanReply(out.Message)
	}
	if content == "" {
		return "", errEmptyReply
	}
	return content, nil
}
