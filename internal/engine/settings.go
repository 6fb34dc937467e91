package engine

import (
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/config"
)

// ConfigFromSettings maps process settings onto engine pacing.
func ConfigFromSettings(cfg config.Config) Config {
	return Config{
		Options: Options{
			RevealInterval:           cfg.RevealCharInterval,
			OpeningDelay:             cfg.OpeningDelay,
			TurnDelay:                cfg.TurnDelay,
			PauseClockDuringOpponent: cfg.PauseClockDuringOpponent,
		},
		MoveTimeout: cfg.MoveTimeout,
	}
}

func LimitsFromSettings(cfg config.Config) battle.Limits {
	limits := battle.DefaultLimits()
	if cfg.MaxMessagesPerParticipant > 0 {
		limits.MaxMessagesPerParticipant = cfg.MaxMessagesPerParticipant
	}
	if cfg.MinMessageLen > 0 {
		limits.MinMessageLen = cfg.MinMessageLen
	}
	if cfg.MaxMessageLen > 0 {
		limits.MaxMessageLen = cfg.MaxMessageLen
	}
	return limits
}
