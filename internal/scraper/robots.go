package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/sitescope/internal/cache"
	"github.com/temoto/robotstxt"
)

// SearchEngineAgent is the user agent robots.txt rules are evaluated for when
// judging whether a site is visible to search engines.
const SearchEngineAgent = "Googlebot"

const (
	robotsCacheSize = 256
	robotsCacheTTL  = time.Hour
)

type robotsEntry struct {
	data *robotstxt.RobotsData // nil when the site has no usable robots.txt
}

// RobotsTxtAuditor fetches and caches robots.txt per origin.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	cache   *cache.Cache[robotsEntry]
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   cache.New[robotsEntry](cache.Config{MaxSize: robotsCacheSize, TTL: robotsCacheTTL}),
	}
}

// Found reports whether origin serves a parseable robots.txt.
func (r *RobotsTxtAuditor) Found(ctx context.Context, origin string) bool {
	return r.get(ctx, normalizeOrigin(origin)).data != nil
}

// IsAllowed determines if the given URL is allowed by the host's robots.txt
// for the provided user agent. A missing robots.txt allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	entry := r.get(ctx, u.Scheme+"://"+u.Host)
	if entry.data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.FindGroup(userAgent).Test(path), nil
}

// SitemapExtracts returns the sitemap URLs declared in the robots.txt of the
// given host.
func (r *RobotsTxtAuditor) SitemapExtracts(ctx context.Context, host string) ([]string, error) {
	entry := r.get(ctx, normalizeOrigin(host))
	if entry.data == nil {
		return nil, nil
	}
	return entry.data.Sitemaps, nil
}

func (r *RobotsTxtAuditor) get(ctx context.Context, origin string) robotsEntry {
	if entry, ok := r.cache.Get(origin); ok {
		return entry
	}

	entry, err := r.fetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt unavailable", "origin", origin, "err", err)
	}
	// A fetch cut short by the caller says nothing about the site.
	if ctx.Err() == nil {
		r.cache.Set(origin, entry)
	}
	return entry
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, origin string) (robotsEntry, error) {
	result, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return robotsEntry{}, fmt.Errorf("fetch error: %w", err)
	}
	if !result.OK() {
		return robotsEntry{}, fmt.Errorf("status %d", result.StatusCode)
	}

	parsed, err := robotstxt.FromBytes(result.Body)
	if err != nil {
		return robotsEntry{}, fmt.Errorf("parse error: %w", err)
	}
	return robotsEntry{data: parsed}, nil
}

func normalizeOrigin(host string) string {
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return host
}
