package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/oxffaa/gopher-parse-sitemap"
)

const (
	// DefaultSitemapTimeout bounds the whole discovery, robots.txt included.
	DefaultSitemapTimeout = 5 * time.Second
	// DefaultMaxSitemapURLs caps the page URLs kept from sitemaps.
	DefaultMaxSitemapURLs = 50
)

// SitemapFetcher is responsible for finding and parsing a site's sitemaps.
type SitemapFetcher struct {
	fetcher *Fetcher
	robots  *RobotsTxtAuditor
	logger  *slog.Logger
	timeout time.Duration
	maxURLs int
}

// NewSitemapFetcher initializes a new SitemapFetcher. Zero timeout or maxURLs
// select the defaults.
func NewSitemapFetcher(fetcher *Fetcher, robots *RobotsTxtAuditor, timeout time.Duration, maxURLs int, logger *slog.Logger) *SitemapFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if robots == nil {
		robots = NewRobotsTxtAuditor(fetcher, logger)
	}
	if timeout <= 0 {
		timeout = DefaultSitemapTimeout
	}
	if maxURLs <= 0 {
		maxURLs = DefaultMaxSitemapURLs
	}
	return &SitemapFetcher{
		fetcher: fetcher,
		robots:  robots,
		logger:  logger,
		timeout: timeout,
		maxURLs: maxURLs,
	}
}

// Discover looks up the sitemaps of the site serving targetURL. Sitemap
// files come from the robots.txt Sitemap lines, falling back to
// /sitemap.xml at the origin. Sitemap files that fail to load are skipped.
func (s *SitemapFetcher) Discover(ctx context.Context, targetURL string) (*model.Discoverability, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid target url %q", targetURL)
	}
	origin := u.Scheme + "://" + u.Host

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := &model.Discoverability{
		RobotsTxt: s.robots.Found(ctx, origin),
		Sitemaps:  []string{},
		URLs:      []string{},
	}
	out.CrawlAllowed, _ = s.robots.IsAllowed(ctx, targetURL, SearchEngineAgent)

	candidates, _ := s.robots.SitemapExtracts(ctx, origin)
	if len(candidates) == 0 {
		candidates = []string{origin + "/sitemap.xml"}
	}

	for _, candidate := range candidates {
		if len(out.URLs) >= s.maxURLs {
			break
		}
		urls, err := s.FetchSitemap(ctx, candidate)
		if err != nil {
			s.logger.Debug("sitemap skipped", "url", candidate, "err", err)
			continue
		}
		out.Sitemaps = append(out.Sitemaps, candidate)
		out.URLs = append(out.URLs, urls...)
	}

	if len(out.URLs) > s.maxURLs {
		out.URLs = out.URLs[:s.maxURLs]
	}
	return out, nil
}

// FetchSitemap fetches a sitemap XML or sitemap index and extracts its page
// URLs. An index is followed one level deep.
func (s *SitemapFetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.fetchSitemap(ctx, sitemapURL, 1)
}

func (s *SitemapFetcher) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL)

	result, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	if !result.OK() {
		return nil, fmt.Errorf("bad status code: %d", result.StatusCode)
	}

	var urls []string

	err = sitemap.Parse(bytes.NewReader(result.Body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})

	if err != nil || len(urls) == 0 {
		// It might be a sitemap index or invalid XML
		var nestedSitemaps []string
		indexErr := sitemap.ParseIndex(bytes.NewReader(result.Body), func(e sitemap.IndexEntry) error {
			nestedSitemaps = append(nestedSitemaps, e.GetLocation())
			return nil
		})

		if indexErr != nil || (len(urls) == 0 && len(nestedSitemaps) == 0) {
			return nil, fmt.Errorf("failed to parse as sitemap or index: %w", err)
		}

		if depth == 0 {
			return nil, fmt.Errorf("nested sitemap index at %s", sitemapURL)
		}

		for _, nestedURL := range nestedSitemaps {
			if len(urls) >= s.maxURLs {
				break
			}
			nestedURLs, fetchErr := s.fetchSitemap(ctx, nestedURL, depth-1)
			if fetchErr != nil {
				s.logger.Warn("failed to fetch nested sitemap", "url", nestedURL, "err", fetchErr)
				continue
			}
			urls = append(urls, nestedURLs...)
		}
	}

	if len(urls) > s.maxURLs {
		urls = urls[:s.maxURLs]
	}
	return urls, nil
}
