package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"roastbattle/backend/internal/auth"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per key and forgets keys that
// have been quiet for limiterIdleTTL.
type limiterPool struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastPrune) > time.Minute {
		cutoff := now.Add(-limiterIdleTTL)
		for k, entry := range p.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(p.entries, k)
			}
		}
		p.lastPrune = now
	}

	entry, ok := p.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// clientRateLimit keys on the client id set by the auth middleware.
func (s *Server) clientRateLimit(pool *limiterPool, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := auth.ClientIDFromContext(r.Context())
			if !ok {
				clientID = clientIP(r)
			}
			if !pool.allow(clientID) {
				s.writeRateLimitResponse(w, r, "client", endpoint, "slow down, the crowd is still laughing")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) ipRateLimit(pool *limiterPool, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(clientIP(r)) {
				s.writeRateLimitResponse(w, r, "ip", endpoint, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (s *Server) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(s.cfg.JWTSecret)
}

func (s *Server) requestContextTimeoutMiddleware(next http.Handler) http.Handler {
	timeout := s.cfg.APIRequestTimeout
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) maxBodyBytesMiddleware(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 64 << 10
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := strings.ToUpper(strings.TrimSpace(r.Method))
			if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeRateLimitResponse(w http.ResponseWriter, r *http.Request, scope, endpoint, message string) {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = routePatternFromRequest(r)
	}
	s.metrics.IncRateLimited(scope, endpoint)

	fields := requestFields(r, http.StatusTooManyRequests)
	fields["scope"] = scope
	fields["endpoint"] = endpoint
	s.logger.Warn("rate_limited", fields)
	writeTooManyRequests(w, message)
}
