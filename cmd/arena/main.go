// Command arena runs one ai_vs_ai battle headless and prints the verdict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"roastbattle/backend/internal/ai"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/config"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/judge"
	"roastbattle/backend/internal/observability"
)

func main() {
	personaA := flag.String("a", "genz", "persona for participant A")
	personaB := flag.String("b", "hawking", "persona for participant B")
	intensity := flag.String("intensity", "mild", "roast intensity")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	cfg := config.Load()
	logger := observability.NewLogger("arena")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, battle.Config{
		Mode:      battle.ModeAIVsAI,
		PersonaA:  *personaA,
		PersonaB:  *personaB,
		Intensity: *intensity,
	}); err != nil {
		logger.Error("arena_failed", observability.Fields{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *observability.Logger, battleCfg battle.Config) error {
	roster, err := battle.LoadRoster(cfg.RosterFile)
	if err != nil {
		return err
	}
	commentator, err := judge.NewCommentatorFromConfig(ctx, cfg)
	if err != nil {
		logger.Warn("commentary_disabled", observability.Fields{"error": err.Error()})
	}

	engineCfg := engine.ConfigFromSettings(cfg)
	// nobody is watching the reveal
	engineCfg.RevealInterval = 0

	eng := engine.New(engine.Deps{
		Store:       battle.NewStore(clock.Real{}, roster, engine.LimitsFromSettings(cfg)),
		Generator:   ai.NewFromConfig(cfg, roster),
		Coordinator: engine.NewCoordinator(judge.NewFromConfig(cfg), commentator, clock.Real{}, logger),
		Clock:       clock.Real{},
		Logger:      logger,
	}, engineCfg)
	defer eng.Reset()

	updates, unsubscribe := eng.Subscribe()
	defer unsubscribe()

	if _, err := eng.Start(ctx, battleCfg); err != nil {
		return err
	}

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("engine closed the stream")
			}
			if update.Kind != engine.UpdateSnapshot {
				continue
			}
			view := eng.View()
			if view.Session == nil {
				continue
			}
			printed = printTranscript(*view.Session, printed)
			if view.Evaluation != nil {
				printVerdict(*view.Session, *view.Evaluation)
				return nil
			}
			if view.EvaluationError != "" {
				return fmt.Errorf("judging failed: %s", view.EvaluationError)
			}
		}
	}
}

func printTranscript(session battle.Session, from int) int {
	for _, message := range session.Messages[from:] {
		name := session.A.Name
		if message.ParticipantID == session.B.ID {
			name = session.B.Name
		}
		fmt.Printf("%s: %s\n\n", name, message.Content)
	}
	return len(session.Messages)
}

func printVerdict(session battle.Session, result battle.EvaluationResult) {
	fmt.Println(strings.Repeat("-", 40))
	switch result.Winner {
	case battle.WinnerA:
		fmt.Printf("Winner: %s (+%.1f)\n", session.A.Name, result.Margin)
	case battle.WinnerB:
		fmt.Printf("Winner: %s (+%.1f)\n", session.B.Name, result.Margin)
	default:
		fmt.Println("Winner: nobody, it's a tie")
	}
	fmt.Printf("%s %.1f vs %s %.1f\n", session.A.Name, result.A.Overall, session.B.Name, result.B.Overall)
	if result.Verdict != "" {
		fmt.Println(result.Verdict)
	}
	if result.Commentary != nil {
		fmt.Printf("Funniest line: %q (%s)\n", result.Commentary.Line, result.Commentary.Speaker)
	}
}
