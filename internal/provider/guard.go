// Package provider wraps calls to external data sources so that every
// failure settles as an absent value instead of an error.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FranksOps/sitescope/internal/metrics"
	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrSkipped marks a call that was not attempted, for example because the
// provider has no credentials or the request has no target. Skipped calls
// never count against a breaker.
var ErrSkipped = errors.New("provider skipped")

// Settled is the outcome of one guarded call. OK is false whenever the call
// failed, was skipped, was rejected by an open breaker or panicked.
type Settled[T any] struct {
	Value T
	OK    bool
	Err   error
}

// Get returns the value and whether it is present.
func (s Settled[T]) Get() (T, bool) {
	return s.Value, s.OK
}

// Absent returns an unsettled value carrying err.
func Absent[T any](err error) Settled[T] {
	return Settled[T]{Err: err}
}

// Call identifies a guarded call for logging and the fetch log.
type Call struct {
	ReportID string
	Provider string
	Target   string
}

// Recorder persists fetch records. storage.Backend satisfies it.
type Recorder interface {
	Save(ctx context.Context, record *storage.FetchRecord) error
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts are cleared.
	Interval time.Duration
	// Timeout an open breaker waits before going half-open.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
	// ConsecutiveFailures that open the breaker regardless of ratio.
	ConsecutiveFailures uint32
}

func (c *BreakerConfig) applyDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 5
	}
}

// Guard runs provider calls behind per-provider circuit breakers. Breakers
// are created lazily and shared by every request.
type Guard struct {
	cfg      BreakerConfig
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewGuard creates a guard. recorder may be nil to disable the fetch log.
func NewGuard(cfg BreakerConfig, recorder Recorder, logger *slog.Logger) *Guard {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// State reports the breaker state for a provider. Providers that were never
// called are closed.
func (g *Guard) State(name string) gobreaker.State {
	g.mu.Lock()
	cb, ok := g.breakers[name]
	g.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (g *Guard) breaker(name string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[name]; ok {
		return cb
	}

	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: g.cfg.MaxRequests,
		Interval:    g.cfg.Interval,
		Timeout:     g.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= g.cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < g.cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= g.cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("provider breaker state change", "provider", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSkipped) || errors.Is(err, context.Canceled)
		},
	})
	g.breakers[name] = cb
	return cb
}

// Run executes fn behind the breaker for call.Provider and settles the
// result. It never returns an error and never panics.
func Run[T any](ctx context.Context, g *Guard, call Call, fn func(context.Context) (T, error)) Settled[T] {
	start := g.now()

	out, err := g.breaker(call.Provider).Execute(func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("provider %s panicked: %v", call.Provider, r)
			}
		}()
		return fn(ctx)
	})
	elapsed := g.now().Sub(start)

	var outcome string
	switch {
	case err == nil:
		outcome = metrics.OutcomeOK
	case errors.Is(err, ErrSkipped):
		outcome = metrics.OutcomeSkipped
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeFailed
	}
	metrics.RecordProviderCall(call.Provider, outcome, elapsed)

	switch outcome {
	case metrics.OutcomeSkipped:
		g.logger.Debug("provider skipped", "provider", call.Provider, "report_id", call.ReportID, "reason", err)
		return Absent[T](err)
	case metrics.OutcomeRejected:
		g.logger.Warn("provider rejected by open breaker", "provider", call.Provider, "report_id", call.ReportID)
	case metrics.OutcomeFailed:
		g.logger.Warn("provider failed", "provider", call.Provider, "report_id", call.ReportID, "target", call.Target, "duration", elapsed, "err", err)
	default:
		g.logger.Debug("provider ok", "provider", call.Provider, "report_id", call.ReportID, "duration", elapsed)
	}

	g.record(ctx, call, storage.Outcome(outcome), err, elapsed, start)

	if err != nil {
		return Absent[T](err)
	}
	v, _ := out.(T)
	return Settled[T]{Value: v, OK: true}
}

func (g *Guard) record(ctx context.Context, call Call, outcome storage.Outcome, callErr error, d time.Duration, at time.Time) {
	if g.recorder == nil {
		return
	}

	rec := &storage.FetchRecord{
		ID:        uuid.NewString(),
		ReportID:  call.ReportID,
		Provider:  call.Provider,
		Target:    call.Target,
		Outcome:   outcome,
		Duration:  d,
		CreatedAt: at.UTC(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}

	// The log entry outlives a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.recorder.Save(ctx, rec); err != nil {
		g.logger.Warn("fetch log write failed", "provider", call.Provider, "err", err)
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
