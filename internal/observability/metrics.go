package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDurations   *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	dbQuery         prometheus.Histogram
	battlesStarted  *prometheus.CounterVec
	battlesFinished *prometheus.CounterVec
	moves           *prometheus.CounterVec
	moveDurations   *prometheus.HistogramVec
	evaluations     *prometheus.CounterVec
	evalDurations   prometheus.Histogram
	activeBattles   prometheus.Gauge
	feedbackWrites  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests handled by API.",
		}, []string{"route", "method", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: defaultDurationBuckets,
		}, []string{"route", "method"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_events_total",
			Help: "Rate-limit rejections by scope and endpoint.",
		}, []string{"scope", "endpoint"}),
		dbQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds.",
			Buckets: defaultDurationBuckets,
		}),
		battlesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battles_started_total",
			Help: "Battles started by mode and intensity.",
		}, []string{"mode", "intensity"}),
		battlesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battles_judged_total",
			Help: "Battles that received a verdict, by winner.",
		}, []string{"winner"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_moves_total",
			Help: "AI move generations by outcome.",
		}, []string{"outcome"}),
		moveDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_move_duration_seconds",
			Help:    "AI move generation latency in seconds.",
			Buckets: defaultDurationBuckets,
		}, []string{"outcome"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Judge evaluations by outcome.",
		}, []string{"outcome"}),
		evalDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evaluation_duration_seconds",
			Help:    "Judge plus commentary latency in seconds.",
			Buckets: defaultDurationBuckets,
		}),
		activeBattles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battles_active",
			Help: "Battles currently in the active or evaluating status.",
		}),
		feedbackWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_records_total",
			Help: "Training and evaluation records written, by table and outcome.",
		}, []string{"table", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDurations,
		m.rateLimited,
		m.dbQuery,
		m.battlesStarted,
		m.battlesFinished,
		m.moves,
		m.moveDurations,
		m.evaluations,
		m.evalDurations,
		m.activeBattles,
		m.feedbackWrites,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	cleanRoute := normalizeMetricValue(route, "unknown")
	cleanMethod := normalizeMetricValue(strings.ToUpper(strings.TrimSpace(method)), "UNKNOWN")
	m.httpRequests.WithLabelValues(cleanRoute, cleanMethod, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(cleanRoute, cleanMethod).Observe(duration.Seconds())
}

func (m *Metrics) IncRateLimited(scope, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeMetricValue(scope, "unknown"), normalizeMetricValue(endpoint, "unknown")).Inc()
}

func (m *Metrics) ObserveDBQuery(duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQuery.Observe(duration.Seconds())
}

func (m *Metrics) BattleStarted(mode, intensity string) {
	if m == nil {
		return
	}
	m.battlesStarted.WithLabelValues(normalizeMetricValue(mode, "unknown"), normalizeMetricValue(intensity, "unknown")).Inc()
}

func (m *Metrics) BattleJudged(winner string) {
	if m == nil {
		return
	}
	m.battlesFinished.WithLabelValues(normalizeMetricValue(winner, "unknown")).Inc()
}

func (m *Metrics) ObserveMove(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	clean := normalizeMetricValue(outcome, "unknown")
	m.moves.WithLabelValues(clean).Inc()
	m.moveDurations.WithLabelValues(clean).Observe(duration.Seconds())
}

func (m *Metrics) ObserveEvaluation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(normalizeMetricValue(outcome, "unknown")).Inc()
	m.evalDurations.Observe(duration.Seconds())
}

func (m *Metrics) SetActiveBattles(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.activeBattles.Set(float64(count))
}

func (m *Metrics) ObserveFeedbackWrite(table, outcome string) {
	if m == nil {
		return
	}
	m.feedbackWrites.WithLabelValues(normalizeMetricValue(table, "unknown"), normalizeMetricValue(outcome, "unknown")).Inc()
}

func normalizeMetricValue(value, fallback string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return fallback
	}
	return clean
}
