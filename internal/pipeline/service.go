package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/sitescope/internal/cache"
	"github.com/FranksOps/sitescope/internal/metrics"
	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/internal/provider"
	"github.com/FranksOps/sitescope/internal/recommend"
	"github.com/FranksOps/sitescope/internal/transform"
	"github.com/google/uuid"
)

// ReportCache is the cache the service reads and fills.
type ReportCache = cache.Cache[*model.Report]

// Service answers report requests from the cache or by running the
// pipeline. Concurrent misses for the same key each run the pipeline; the
// last one to finish wins the cache slot.
type Service struct {
	orch   *Orchestrator
	cache  *ReportCache
	engine *recommend.Engine
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a report service.
func NewService(orch *Orchestrator, c *ReportCache, engine *recommend.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = recommend.New(nil)
	}
	return &Service{
		orch:   orch,
		cache:  c,
		engine: engine,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Report returns the report for req and whether it came from the cache.
// Validation failures wrap ErrInvalidRequest.
func (s *Service) Report(ctx context.Context, req Request) (*model.Report, bool, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, false, err
	}

	key := req.CacheKey()
	if rep, ok := s.cache.Get(key); ok {
		metrics.RecordCacheLookup(true, s.cache.Len())
		s.logger.Debug("report cache hit", "key", key, "report_id", rep.ID)
		return rep, true, nil
	}
	metrics.RecordCacheLookup(false, s.cache.Len())

	start := s.now()
	rep, err := s.generate(ctx, req)
	if err != nil {
		return nil, false, err
	}
	metrics.ReportDuration.Observe(s.now().Sub(start).Seconds())

	s.cache.Set(key, rep)
	stats := s.cache.Stats()
	metrics.CacheEntries.Set(float64(stats.Size))
	metrics.RecordCacheEvictions(stats.Evictions, stats.Expired)

	s.logger.Info("report generated", "report_id", rep.ID, "type", req.Type, "query", req.Query(), "duration", s.now().Sub(start))
	return rep, false, nil
}

// generate runs the pipeline for a normalized request. A panic anywhere in
// assembly becomes an error and no report.
func (s *Service) generate(ctx context.Context, req Request) (rep *model.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report generation panicked: %v", r)
		}
	}()

	id := s.newID()
	searchQuery := req.Domain
	if req.Type == TypeKeyword {
		searchQuery = req.Keyword
	}

	b := s.orch.Fetch(ctx, Query{
		ReportID:    id,
		Domain:      req.Domain,
		SearchQuery: searchQuery,
		Credential:  req.Credential,
	})
	// A cancelled request would otherwise cache a report of absent values.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}

	return s.assemble(id, req, b), nil
}

func (s *Service) assemble(id string, req Request, b *Batch) *model.Report {
	now := s.now().UTC()

	mobile, _ := b.Mobile.Get()
	desktop, _ := b.Desktop.Get()
	search, _ := b.Search.Get()
	crawl, _ := b.Crawl.Get()
	sc, _ := b.SearchConsole.Get()
	disc, _ := b.Sitemap.Get()

	technical := transform.Technical(mobile, desktop, disc)
	onPage := transform.OnPage(crawl)
	serp := transform.SERP(search, req.Domain)

	overview := transform.OverviewInput{
		Domain:        req.Domain,
		Rank:          optional(b.Rank),
		IndexedPages:  optional(b.IndexedPages),
		SearchConsole: sc,
		Crawl:         crawl,
	}
	if sc == nil {
		overview.OrganicEstimate = s.engine.OrganicKeywordsEstimate()
	}

	var related []string
	if search != nil {
		related = search.RelatedSearches
	}

	return &model.Report{
		ID:        id,
		Domain:    req.Domain,
		Keyword:   req.Keyword,
		Timestamp: now,
		Overview:  transform.Overview(overview),
		Technical: technical,
		OnPage:    onPage,
		SERP:      serp,
		Keywords: s.engine.Keywords(recommend.KeywordInput{
			Domain:  req.Domain,
			Keyword: req.Keyword,
			Related: related,
			SERP:    serp,
			Now:     now,
		}),
		GrowthPlan: recommend.GrowthPlan(recommend.PlanInput{
			Technical:    technical,
			OnPage:       onPage,
			Competitors:  len(serp.Competitors),
			DomainRank:   optional(b.Rank),
			IndexedPages: optional(b.IndexedPages),
		}),
	}
}

func optional[T any](s provider.Settled[T]) *T {
	if !s.OK {
		return nil
	}
	v := s.Value
	return &v
}
