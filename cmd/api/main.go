package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roastbattle/backend/internal/ai"
	"roastbattle/backend/internal/api"
	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/cache"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/config"
	"roastbattle/backend/internal/db"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/feedback"
	"roastbattle/backend/internal/judge"
	"roastbattle/backend/internal/observability"
)

const (
	engineIdleTTL = 30 * time.Minute
	sweepInterval = time.Minute
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger("api")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fail := func(step string, err error) {
		logger.Error("startup_failed", observability.Fields{
			"step":  step,
			"error": err.Error(),
		})
		os.Exit(1)
	}

	roster, err := battle.LoadRoster(cfg.RosterFile)
	if err != nil {
		fail("load_roster", err)
	}

	deps := api.Deps{Roster: roster, Logger: logger, Metrics: metrics}

	var sink feedback.Sink = feedback.NewMemorySink()
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			fail("db_connect", err)
		}
		defer pool.Close()

		applied, err := db.RunMigrations(ctx, pool, db.Migrations())
		if err != nil {
			fail("run_migrations", err)
		}
		logger.Info("migrations_applied", observability.Fields{"count": len(applied)})
		sink = feedback.NewPostgresSink(pool, metrics)
		deps.Database = pool
	} else {
		logger.Warn("feedback_store_in_memory", observability.Fields{"reason": "DATABASE_URL not set"})
	}

	var results cache.ResultCache = cache.NewMemoryCache(clock.Real{}, cfg.ResultCacheTTL)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fail("redis_connect", err)
		}
		defer client.Close()
		results = cache.NewRedisCache(client, cfg.ResultCacheTTL)
	}
	deps.Results = results

	generator := ai.NewFromConfig(cfg, roster)
	scorer := judge.NewFromConfig(cfg)
	if checker, ok := scorer.(api.HealthChecker); ok {
		deps.Judge = checker
	}
	commentator, err := judge.NewCommentatorFromConfig(ctx, cfg)
	if err != nil {
		// verdicts still render without commentary
		logger.Warn("commentary_disabled", observability.Fields{"error": err.Error()})
	}
	coordinator := engine.NewCoordinator(scorer, commentator, clock.Real{}, logger.With(observability.Fields{"component": "judge"}))

	engineCfg := engine.ConfigFromSettings(cfg)
	limits := engine.LimitsFromSettings(cfg)
	registry := engine.NewRegistry(func() *engine.Engine {
		return engine.New(engine.Deps{
			Store:       battle.NewStore(clock.Real{}, roster, limits),
			Generator:   generator,
			Coordinator: coordinator,
			Feedback:    sink,
			Results:     results,
			Clock:       clock.Real{},
			Logger:      logger.With(observability.Fields{"component": "engine"}),
			Metrics:     metrics,
		}, engineCfg)
	}, clock.Real{}, engineIdleTTL, metrics)
	defer registry.Close()
	deps.Registry = registry
	go registry.Run(ctx, sweepInterval)

	server := api.New(cfg, deps)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.APIReadTimeout,
		WriteTimeout:      cfg.APIWriteTimeout,
		IdleTimeout:       cfg.APIIdleTimeout,
	}
	serverErrCh := make(chan error, 1)

	go func() {
		logger.Info("api_listening", observability.Fields{
			"addr":          ":" + cfg.Port,
			"llm_provider":  cfg.LLMProvider,
			"judge":         cfg.JudgeProvider,
			"commentary":    cfg.CommentaryProvider,
			"message_limit": limits.MaxMessagesPerParticipant,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErrCh:
		logger.Error("http_server_failed", observability.Fields{"error": err.Error()})
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful_shutdown_failed", observability.Fields{"error": err.Error()})
	}
	logger.Info("api_stopped", nil)
}
