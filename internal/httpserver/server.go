// Package httpserver exposes the report pipeline over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/sitescope/internal/metrics"
	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/internal/pipeline"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	msgRateLimited  = "Rate limit exceeded. Please try again later."
	msgInternal     = "Failed to generate report"
	msgInvalidBody  = "Invalid request body"
	defaultBodySize = 64 << 10
)

// ReportService produces reports. *pipeline.Service implements it.
type ReportService interface {
	Report(ctx context.Context, req pipeline.Request) (*model.Report, bool, error)
}

// Config configures the server.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// SweepInterval controls how often idle rate buckets are dropped. Zero
	// disables sweeping.
	SweepInterval time.Duration
	MaxBodyBytes  int64
}

// Server serves the report endpoint, health and metrics.
type Server struct {
	cfg      Config
	reports  ReportService
	gate     *ratelimit.Gate
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	httpServer *http.Server
	stopOnce   sync.Once
	stop       chan struct{}
}

// New creates a server.
func New(cfg Config, reports ReportService, gate *ratelimit.Gate, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// Reports wait on the slowest provider, which may take a minute.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultBodySize
	}

	s := &Server{
		cfg:      cfg,
		reports:  reports,
		gate:     gate,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/api/seo/report", s.handleReport)
	return r
}

// Start listens until Shutdown. It also runs the rate bucket sweeper.
func (s *Server) Start() error {
	if s.cfg.SweepInterval > 0 && s.gate != nil {
		go s.sweep()
	}
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) sweep() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.gate.Sweep(); n > 0 {
				s.logger.Debug("swept idle rate buckets", "removed", n, "remaining", s.gate.Len())
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reportRequest struct {
	Domain           string `json:"domain" validate:"omitempty,max=253"`
	Keyword          string `json:"keyword" validate:"omitempty,max=200"`
	Type             string `json:"type" validate:"omitempty,oneof=domain keyword"`
	AccessCredential string `json:"accessCredential" validate:"omitempty,max=4096"`
	// GSCToken is accepted as an alias of AccessCredential.
	GSCToken string `json:"gscToken" validate:"omitempty,max=4096"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.gate != nil {
		id := clientID(r)
		allowed := s.gate.Allow(id)
		metrics.RecordAdmission(allowed)
		remaining := s.gate.RemainingTokens(id)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(s.gate.ResetTime(id), s.now())))
			s.logger.Warn("rate limit exceeded", "client", id)
			writeError(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
	}

	var body reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	credential := body.AccessCredential
	if credential == "" {
		credential = body.GSCToken
	}

	rep, cached, err := s.reports.Report(r.Context(), pipeline.Request{
		Domain:     body.Domain,
		Keyword:    body.Keyword,
		Type:       body.Type,
		Credential: credential,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), pipeline.ErrInvalidRequest.Error()+": "))
		return
	case err != nil:
		s.logger.Error("report generation failed",
			"request_id", middleware.GetReqID(r.Context()),
			"domain", body.Domain,
			"keyword", body.Keyword,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, rep)
}

// clientID is the caller's IP. RealIP has already applied any forwarding
// headers.
func clientID(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

// retryAfter is the whole number of seconds until reset, at least one.
func retryAfter(reset, now time.Time) int {
	if reset.IsZero() {
		return 1
	}
	return max(1, int(math.Ceil(reset.Sub(now).Seconds())))
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "oneof" {
			return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	return "Invalid request"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordHTTP(route, status)

		s.logger.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
