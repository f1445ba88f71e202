// Package pipeline generates reports: it fans out to the providers, turns
// their settled results into report sections and caches the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/internal/pagespeed"
	"github.com/FranksOps/sitescope/internal/provider"
	"github.com/FranksOps/sitescope/internal/searchconsole"
	"golang.org/x/sync/errgroup"
)

// Provider names, used for breakers, metrics and the fetch log.
const (
	ProviderPerformanceMobile  = "pagespeed-mobile"
	ProviderPerformanceDesktop = "pagespeed-desktop"
	ProviderSearch             = "serp"
	ProviderCrawl              = "crawl"
	ProviderRank               = "pagerank"
	ProviderSearchConsole      = "searchconsole"
	ProviderIndexedPages       = "serp-indexed"
	ProviderSitemap            = "sitemap"
)

type PerformanceAuditor interface {
	Analyze(ctx context.Context, targetURL string, strategy pagespeed.Strategy) (*model.PerformanceResult, error)
}

type SearchProvider interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
	IndexedPages(ctx context.Context, domain string) (int, error)
}

type PageCrawler interface {
	Crawl(ctx context.Context, targetURL string) (*model.PageMetadata, error)
}

type RankProvider interface {
	Rank(ctx context.Context, domain string) (int, error)
}

type SearchConsoleProvider interface {
	Analytics(ctx context.Context, domain, credential string) (*model.SearchConsoleResult, error)
}

type SitemapDiscoverer interface {
	Discover(ctx context.Context, targetURL string) (*model.Discoverability, error)
}

// Providers holds the adapters. A nil adapter skips its branches.
type Providers struct {
	Performance   PerformanceAuditor
	Search        SearchProvider
	Crawler       PageCrawler
	Rank          RankProvider
	SearchConsole SearchConsoleProvider
	Sitemap       SitemapDiscoverer
}

// Query describes one fan-out.
type Query struct {
	ReportID string
	// Domain is empty for keyword-only reports; every target-dependent
	// branch is then skipped.
	Domain      string
	SearchQuery string
	Credential  string
}

// Batch holds every branch's settlement, addressed by role.
type Batch struct {
	Mobile        provider.Settled[*model.PerformanceResult]
	Desktop       provider.Settled[*model.PerformanceResult]
	Search        provider.Settled[*model.SearchResult]
	Crawl         provider.Settled[*model.PageMetadata]
	Rank          provider.Settled[int]
	SearchConsole provider.Settled[*model.SearchConsoleResult]
	IndexedPages  provider.Settled[int]
	Sitemap       provider.Settled[*model.Discoverability]
}

// Orchestrator runs the two fan-out phases. It never fails: every branch
// settles, and phase 2 starts only after all of phase 1 has settled.
type Orchestrator struct {
	providers Providers
	guard     *provider.Guard
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(providers Providers, guard *provider.Guard, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{providers: providers, guard: guard, logger: logger}
}

// Fetch runs every branch for q and waits for all of them.
func (o *Orchestrator) Fetch(ctx context.Context, q Query) *Batch {
	b := &Batch{}
	p := o.providers
	targetURL := model.TargetURL(q.Domain)
	hasTarget := q.Domain != ""

	// Each goroutine writes only its own field and always returns nil, so
	// Wait is a plain join.
	var phase1 errgroup.Group
	phase1.Go(func() error {
		b.Mobile = settle(ctx, o, q, ProviderPerformanceMobile, targetURL, p.Performance != nil && hasTarget,
			func(ctx context.Context) (*model.PerformanceResult, error) {
				return p.Performance.Analyze(ctx, targetURL, pagespeed.Mobile)
			})
		return nil
	})
	phase1.Go(func() error {
		b.Desktop = settle(ctx, o, q, ProviderPerformanceDesktop, targetURL, p.Performance != nil && hasTarget,
			func(ctx context.Context) (*model.PerformanceResult, error) {
				return p.Performance.Analyze(ctx, targetURL, pagespeed.Desktop)
			})
		return nil
	})
	phase1.Go(func() error {
		b.Search = settle(ctx, o, q, ProviderSearch, q.SearchQuery, p.Search != nil && q.SearchQuery != "",
			func(ctx context.Context) (*model.SearchResult, error) {
				return p.Search.Search(ctx, q.SearchQuery)
			})
		return nil
	})
	phase1.Go(func() error {
		b.Crawl = settle(ctx, o, q, ProviderCrawl, targetURL, p.Crawler != nil && hasTarget,
			func(ctx context.Context) (*model.PageMetadata, error) {
				return p.Crawler.Crawl(ctx, targetURL)
			})
		return nil
	})
	phase1.Go(func() error {
		b.Rank = settle(ctx, o, q, ProviderRank, q.Domain, p.Rank != nil && hasTarget,
			func(ctx context.Context) (int, error) {
				return p.Rank.Rank(ctx, q.Domain)
			})
		return nil
	})
	phase1.Go(func() error {
		b.SearchConsole = settle(ctx, o, q, ProviderSearchConsole, q.Domain, p.SearchConsole != nil && hasTarget && q.Credential != "",
			func(ctx context.Context) (*model.SearchConsoleResult, error) {
				return p.SearchConsole.Analytics(ctx, q.Domain, q.Credential)
			})
		return nil
	})
	_ = phase1.Wait()

	var phase2 errgroup.Group
	phase2.Go(func() error {
		b.IndexedPages = settle(ctx, o, q, ProviderIndexedPages, q.Domain, p.Search != nil && hasTarget,
			func(ctx context.Context) (int, error) {
				return p.Search.IndexedPages(ctx, q.Domain)
			})
		return nil
	})
	phase2.Go(func() error {
		b.Sitemap = settle(ctx, o, q, ProviderSitemap, targetURL, p.Sitemap != nil && hasTarget,
			func(ctx context.Context) (*model.Discoverability, error) {
				return p.Sitemap.Discover(ctx, targetURL)
			})
		return nil
	})
	_ = phase2.Wait()

	o.logger.Debug("provider batch settled", "report_id", q.ReportID,
		"mobile", b.Mobile.OK, "desktop", b.Desktop.OK, "search", b.Search.OK, "crawl", b.Crawl.OK,
		"rank", b.Rank.OK, "search_console", b.SearchConsole.OK, "indexed_pages", b.IndexedPages.OK, "sitemap", b.Sitemap.OK)
	return b
}

// settle runs one branch through the guard. Branches that cannot run, and
// adapters reporting missing configuration, settle as skipped.
func settle[T any](ctx context.Context, o *Orchestrator, q Query, name, target string, enabled bool, fn func(context.Context) (T, error)) provider.Settled[T] {
	call := provider.Call{ReportID: q.ReportID, Provider: name, Target: target}
	return provider.Run(ctx, o.guard, call, func(ctx context.Context) (T, error) {
		if !enabled {
			var zero T
			return zero, provider.ErrSkipped
		}
		v, err := fn(ctx)
		if errors.Is(err, pagespeed.ErrNotConfigured) || errors.Is(err, searchconsole.ErrNoCredential) {
			return v, fmt.Errorf("%w: %w", provider.ErrSkipped, err)
		}
		return v, err
	})
}
