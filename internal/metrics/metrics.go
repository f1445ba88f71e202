package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescope_provider_calls_total",
			Help: "Total number of provider adapter calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitescope_provider_duration_seconds",
			Help:    "Duration of provider adapter calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitescope_provider_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	CrawlBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescope_crawl_bytes_total",
			Help: "Total bytes downloaded by the crawl and sitemap adapters",
		},
		[]string{"domain"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescope_report_cache_lookups_total",
			Help: "Report cache lookups by result",
		},
		[]string{"result"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitescope_report_cache_entries",
			Help: "Number of entries currently held by the report cache",
		},
	)

	CacheEvictions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitescope_report_cache_evictions",
			Help: "Report cache entries removed since start, by reason (lru, expired)",
		},
		[]string{"reason"},
	)

	AdmissionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescope_admission_decisions_total",
			Help: "Admission gate decisions",
		},
		[]string{"decision"},
	)

	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitescope_report_generation_seconds",
			Help:    "Time spent generating a report on a cache miss",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescope_http_requests_total",
			Help: "HTTP requests served by route and status",
		},
		[]string{"route", "status"},
	)
)

// RecordProviderCall updates the provider counters for one adapter call.
func RecordProviderCall(provider, outcome string, d time.Duration) {
	ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeSkipped && outcome != OutcomeRejected {
		ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordCacheLookup counts a report cache lookup and publishes the size.
func RecordCacheLookup(hit bool, size int) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
	CacheEntries.Set(float64(size))
}

// RecordCacheEvictions publishes the cache's cumulative removal counters.
func RecordCacheEvictions(lru, expired int64) {
	CacheEvictions.WithLabelValues("lru").Set(float64(lru))
	CacheEvictions.WithLabelValues("expired").Set(float64(expired))
}

// RecordAdmission counts an admission gate decision.
func RecordAdmission(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	AdmissionTotal.WithLabelValues(decision).Inc()
}

// RecordHTTP counts a served HTTP request.
func RecordHTTP(route string, status int) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates a standalone HTTP server for Prometheus metrics, used
// when metrics are served on a port separate from the API.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
