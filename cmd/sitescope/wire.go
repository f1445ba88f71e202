package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FranksOps/sitescope/internal/cache"
	"github.com/FranksOps/sitescope/internal/config"
	"github.com/FranksOps/sitescope/internal/fingerprint"
	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/internal/pagerank"
	"github.com/FranksOps/sitescope/internal/pagespeed"
	"github.com/FranksOps/sitescope/internal/pipeline"
	"github.com/FranksOps/sitescope/internal/provider"
	"github.com/FranksOps/sitescope/internal/recommend"
	"github.com/FranksOps/sitescope/internal/scraper"
	"github.com/FranksOps/sitescope/internal/searchconsole"
	"github.com/FranksOps/sitescope/internal/serp"
	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/FranksOps/sitescope/internal/storage/jsonbackend"
	"github.com/FranksOps/sitescope/internal/storage/postgres"
	"github.com/FranksOps/sitescope/internal/storage/sqlite"
	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
)

// app is the wired report pipeline.
type app struct {
	service *pipeline.Service
	backend storage.Backend
}

func (a *app) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// openBackend opens the configured fetch log. It returns nil for none.
func openBackend(ctx context.Context, cfg config.FetchLogConfig) (storage.Backend, error) {
	kind, err := storage.ParseKind(cfg.Backend)
	if err != nil {
		return nil, err
	}
	switch kind {
	case storage.KindSQLite:
		return sqlite.New(cfg.DSN)
	case storage.KindPostgres:
		return postgres.New(ctx, cfg.DSN)
	case storage.KindJSON:
		return jsonbackend.New(cfg.DSN)
	default:
		return nil, nil
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	backend, err := openBackend(ctx, cfg.FetchLog)
	if err != nil {
		return nil, fmt.Errorf("open fetch log: %w", err)
	}
	a := &app{backend: backend}

	providers, engine, err := buildProviders(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var recorder provider.Recorder
	if backend != nil {
		recorder = backend
	}
	guard := provider.NewGuard(provider.BreakerConfig{
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		MinRequests:         cfg.Breaker.MinRequests,
		FailureRatio:        cfg.Breaker.FailureRatio,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}, recorder, logger)

	reports := cache.New[*model.Report](cache.Config{
		MaxSize: cfg.Cache.MaxSize,
		TTL:     cfg.Cache.TTL,
	})

	orch := pipeline.NewOrchestrator(providers, guard, logger)
	a.service = pipeline.NewService(orch, reports, engine, logger)
	return a, nil
}

func buildProviders(cfg *config.Config, logger *slog.Logger) (pipeline.Providers, *recommend.Engine, error) {
	// Per-call deadlines are applied by each adapter; this only bounds a
	// call that ignores its context.
	api, err := httpclient.New(httpclient.Config{
		Timeout:      2 * cfg.Providers.PageSpeed.Timeout,
		MaxRedirects: 5,
		UserAgent:    scraper.DefaultUserAgent,
	})
	if err != nil {
		return pipeline.Providers{}, nil, err
	}

	profile, err := fingerprint.ParseProfile(cfg.Crawler.Fingerprint)
	if err != nil {
		return pipeline.Providers{}, nil, err
	}
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Crawler.Timeout,
		MaxRedirects: cfg.Crawler.MaxRedirects,
		UserAgent:    cfg.Crawler.UserAgent,
		Fingerprint:  profile,
		Limiter:      ratelimit.NewLimiter(cfg.Crawler.RPS, cfg.Crawler.Jitter),
	})
	if err != nil {
		return pipeline.Providers{}, nil, err
	}
	robots := scraper.NewRobotsTxtAuditor(fetcher, logger)

	src := recommend.NewSource(cfg.Recommend.Seed)
	engine := recommend.New(src)

	p := cfg.Providers
	return pipeline.Providers{
		Performance: pagespeed.New(pagespeed.Config{
			Endpoint: p.PageSpeed.Endpoint,
			APIKey:   p.PageSpeed.APIKey,
			Timeout:  p.PageSpeed.Timeout,
			Limiter:  ratelimit.NewLimiter(p.PageSpeed.RPS, 0),
		}, api, logger),
		Search: serp.New(serp.Config{
			Endpoint: p.SERP.Endpoint,
			APIKey:   p.SERP.APIKey,
			Location: p.SERP.Location,
			Timeout:  p.SERP.Timeout,
			Limiter:  ratelimit.NewLimiter(p.SERP.RPS, 0),
		}, api, logger),
		Crawler: scraper.NewCrawler(fetcher, cfg.Crawler.Timeout, logger),
		Rank: pagerank.New(pagerank.Config{
			Endpoint: p.PageRank.Endpoint,
			APIKey:   p.PageRank.APIKey,
			Timeout:  p.PageRank.Timeout,
			Limiter:  ratelimit.NewLimiter(p.PageRank.RPS, 0),
		}, api, src, logger),
		SearchConsole: searchconsole.New(searchconsole.Config{
			Endpoint:  p.SearchConsole.Endpoint,
			StartDate: p.SearchConsole.StartDate,
			Timeout:   p.SearchConsole.Timeout,
			Limiter:   ratelimit.NewLimiter(p.SearchConsole.RPS, 0),
		}, api, logger),
		Sitemap: scraper.NewSitemapFetcher(fetcher, robots, cfg.Crawler.SitemapTimeout, cfg.Crawler.MaxSitemapURLs, logger),
	}, engine, nil
}
