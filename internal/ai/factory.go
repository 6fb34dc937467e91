package ai

import (
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/config"
)

func NewFromConfig(cfg config.Config, roster *battle.Roster) MoveGenerator {
	switch cfg.LLMProvider {
	case "agent":
		return NewAgentClient(cfg.AgentAPIURL, cfg.AgentAPIKeys, roster, cfg.MoveTimeout)
	case "openai":
		return NewOpenAIClient(
			cfg.OpenAIAPIKey,
			cfg.OpenAIBaseURL,
			cfg.OpenAIModel,
			roster,
			cfg.OpenAIRequestTimeout,
			cfg.OpenAIMaxRetries,
			cfg.OpenAIRetryBase,
		)
	default:
		return NewMockClient()
	}
}
