// Package scraper fetches and parses the audited site itself: the landing
// page, robots.txt and sitemaps.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FranksOps/sitescope/internal/bypass"
	"github.com/FranksOps/sitescope/internal/fingerprint"
	"github.com/FranksOps/sitescope/internal/metrics"
	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
)

// DefaultUserAgent identifies the crawler when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (compatible; SiteScope/1.0; +https://github.com/FranksOps/sitescope)"

// defaultMaxBody caps how much of a page is read into memory.
const defaultMaxBody = 5 << 20

// FetchConfig configures the Fetcher shared by the crawl and sitemap adapters.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify is passed to the TLS transport. Tests only.
	InsecureSkipVerify bool
	MaxBodyBytes       int64
	Limiter            *ratelimit.Limiter
}

// Response is the captured outcome of a single GET.
type Response struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome"
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs single URL fetches with the configured TLS fingerprint
// and user agent.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
// A single client is held across requests so connections are pooled.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UserAgent:    cfg.UserAgent,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// UserAgent returns the user agent sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.config.UserAgent
}

// Fetch executes a GET request to the target URL. Transport failures are
// returned as errors; any HTTP status is a successful fetch and is left to
// the caller to judge. The response is run through the bot-challenge
// detectors.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter failed: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	metrics.CrawlBytesTotal.WithLabelValues(req.URL.Hostname()).Add(float64(len(body)))

	result := &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}

	result.DetectedBot, result.DetectionSrc = bypass.Analyze(&bypass.Response{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       result.Body,
	}, bypass.DefaultDetectors())

	return result, nil
}
