package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"roastbattle/backend/internal/auth"
	"roastbattle/backend/internal/observability"
)

const readinessTimeout = 2 * time.Second

func (s *Server) requestObservabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}
		latency := time.Since(startedAt)
		s.metrics.ObserveHTTPRequest(routePatternFromRequest(r), r.Method, status, latency)

		fields := requestFields(r, status)
		fields["latency_ms"] = latency.Milliseconds()
		fields["bytes"] = wrapped.BytesWritten()
		s.logger.Info("http_request", fields)
	})
}

func (s *Server) recoverJSONMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := requestFields(r, http.StatusInternalServerError)
			fields["panic"] = fmt.Sprint(rec)
			fields["stack"] = string(debug.Stack())
			s.logger.Error("panic_recovered", fields)
			writeInternalError(w, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// requestFields is the common log context for one request.
func requestFields(r *http.Request, status int) observability.Fields {
	fields := observability.Fields{
		"request_id": requestIDFromRequest(r),
		"route":      routePatternFromRequest(r),
		"method":     strings.ToUpper(r.Method),
		"status":     status,
	}
	if clientID, ok := auth.ClientIDFromContext(r.Context()); ok {
		fields["client_id"] = clientID
	}
	return fields
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := s.checkReady(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	payload := map[string]any{"ok": true}
	if s.judge != nil {
		// a sleeping judge only delays verdicts, battles still run
		if err := s.judge.Health(ctx); err != nil {
			payload["judge"] = err.Error()
		} else {
			payload["judge"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) checkReady(ctx context.Context) error {
	if s.registry == nil {
		return fmt.Errorf("battle registry is not configured")
	}
	if s.database == nil {
		return nil
	}

	pingStartedAt := time.Now()
	err := s.database.Ping(ctx)
	s.metrics.ObserveDBQuery(time.Since(pingStartedAt))
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func routePatternFromRequest(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func requestIDFromRequest(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
