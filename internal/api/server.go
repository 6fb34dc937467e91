package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/cache"
	"roastbattle/backend/internal/config"
	"roastbattle/backend/internal/engine"
	"roastbattle/backend/internal/observability"
)

const clientTokenTTL = 24 * time.Hour

// HealthChecker is an optional remote dependency reported by /readyz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Pinger is a required dependency: /readyz fails when it does.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Registry *engine.Registry
	Roster   *battle.Roster
	Results  cache.ResultCache
	Judge    HealthChecker
	Database Pinger
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

type Server struct {
	cfg      config.Config
	registry *engine.Registry
	roster   *battle.Roster
	results  cache.ResultCache
	judge    HealthChecker
	database Pinger
	logger   *observability.Logger
	metrics  *observability.Metrics

	sessionLimiter *limiterPool
	startLimiter   *limiterPool
	messageLimiter *limiterPool
	upgrader       websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	roster := deps.Roster
	if roster == nil {
		roster = battle.DefaultRoster()
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger("api")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	s := &Server{
		cfg:            cfg,
		registry:       deps.Registry,
		roster:         roster,
		results:        deps.Results,
		judge:          deps.Judge,
		database:       deps.Database,
		logger:         logger,
		metrics:        metrics,
		sessionLimiter: newLimiterPool(0.5, 5),
		startLimiter:   newLimiterPool(0.2, 3),
		messageLimiter: newLimiterPool(cfg.MessageRatePerSec, cfg.MessageRateBurst),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.allowedOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestObservabilityMiddleware)
	r.Use(s.recoverJSONMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requestContextTimeoutMiddleware)
		r.Use(s.maxBodyBytesMiddleware(s.cfg.RequestBodyMaxBytes))

		r.Get("/roster", s.handleRoster)
		r.With(s.ipRateLimit(s.sessionLimiter, "sessions")).Post("/sessions", s.handleCreateSession)
		r.Get("/results/{battleID}", s.handleGetResult)
	})

	r.Route("/battle", func(r chi.Router) {
		r.Use(s.authMiddleware())

		// the stream outlives any request timeout
		r.Get("/events", s.handleBattleEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.requestContextTimeoutMiddleware)
			r.Use(s.maxBodyBytesMiddleware(s.cfg.RequestBodyMaxBytes))

			r.With(s.clientRateLimit(s.startLimiter, "start")).Post("/", s.handleStartBattle)
			r.Get("/", s.handleGetBattle)
			r.Delete("/", s.handleResetBattle)
			r.With(s.clientRateLimit(s.messageLimiter, "message")).Post("/messages", s.handleSendMessage)
			r.Get("/evaluation", s.handleGetEvaluation)
			r.Post("/evaluation/retry", s.handleRetryEvaluation)
			r.Post("/results/dismiss", s.handleDismissResults)
			r.Post("/feedback", s.handleSubmitFeedback)
			r.Post("/agent-evaluations", s.handleSubmitAgentEvaluations)
		})
	})

	return r
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		if strings.EqualFold(origin, allowed) || allowed == "*" {
			return true
		}
	}
	return false
}
