// Package searchconsole aggregates search analytics for a verified property
// using a caller-supplied OAuth access token.
package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/webmasters/v3/sites"
	DefaultTimeout  = 20 * time.Second
	// DefaultLookback is used when no start date is configured.
	DefaultLookback = 90 * 24 * time.Hour

	queryRowLimit = 25000
	pageRowLimit  = 1000
	topKeywords   = 50
	topPages      = 20

	dateLayout = "2006-01-02"
)

// ErrNoCredential is returned when no access credential was supplied.
var ErrNoCredential = errors.New("searchconsole: no access credential")

// Config configures the search console client.
type Config struct {
	Endpoint string
	// StartDate is the first day (YYYY-MM-DD) of the analytics window.
	StartDate string
	Timeout   time.Duration
	Limiter   *ratelimit.Limiter
	Now       func() time.Time
}

// Client queries the search analytics API.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config, hc *httpclient.Client, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: hc, logger: logger}
}

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
	StartRow   int      `json:"startRow"`
}

type row struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

type queryResponse struct {
	Rows []row `json:"rows"`
}

// DateRange returns the analytics window ending today.
func (c *Client) DateRange() model.DateRange {
	now := c.cfg.Now().UTC()
	start := c.cfg.StartDate
	if start == "" {
		start = now.Add(-DefaultLookback).Format(dateLayout)
	}
	return model.DateRange{StartDate: start, EndDate: now.Format(dateLayout)}
}

// Analytics aggregates clicks, impressions, CTR and position for domain.
// A failed query by page only empties TopPages.
func (c *Client) Analytics(ctx context.Context, domain, credential string) (*model.SearchConsoleResult, error) {
	if credential == "" {
		return nil, ErrNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	siteURL := model.TargetURL(domain)
	endpoint := c.cfg.Endpoint + "/" + url.PathEscape(siteURL) + "/searchAnalytics/query"
	header := http.Header{"Authorization": {"Bearer " + credential}}
	dr := c.DateRange()

	var queries queryResponse
	if err := c.query(ctx, endpoint, header, dr, "query", queryRowLimit, &queries); err != nil {
		return nil, fmt.Errorf("search console %s: %w", siteURL, err)
	}

	var pages queryResponse
	if err := c.query(ctx, endpoint, header, dr, "page", pageRowLimit, &pages); err != nil {
		c.logger.Warn("search console page query failed", "site", siteURL, "err", err)
		pages.Rows = nil
	}

	return aggregate(queries.Rows, pages.Rows, dr), nil
}

func (c *Client) query(ctx context.Context, endpoint string, header http.Header, dr model.DateRange, dimension string, limit int, out *queryResponse) error {
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return err
	}
	body := queryRequest{
		StartDate:  dr.StartDate,
		EndDate:    dr.EndDate,
		Dimensions: []string{dimension},
		RowLimit:   limit,
	}
	return c.http.PostJSON(ctx, endpoint, header, body, out)
}

func aggregate(queryRows, pageRows []row, dr model.DateRange) *model.SearchConsoleResult {
	res := &model.SearchConsoleResult{
		TopKeywords: make([]model.KeywordMetrics, 0, min(len(queryRows), topKeywords)),
		TopPages:    make([]model.PageMetrics, 0, min(len(pageRows), topPages)),
		DateRange:   dr,
	}

	var positions float64
	for _, r := range queryRows {
		res.TotalClicks += r.Clicks
		res.TotalImpressions += r.Impressions
		positions += r.Position
	}
	if res.TotalImpressions > 0 {
		res.AverageCTR = res.TotalClicks / res.TotalImpressions * 100
	}
	if len(queryRows) > 0 {
		res.AveragePosition = positions / float64(len(queryRows))
	}

	for _, r := range queryRows[:min(len(queryRows), topKeywords)] {
		res.TopKeywords = append(res.TopKeywords, model.KeywordMetrics{
			Query:       firstKey(r.Keys),
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR * 100,
			Position:    r.Position,
		})
	}
	for _, r := range pageRows[:min(len(pageRows), topPages)] {
		res.TopPages = append(res.TopPages, model.PageMetrics{
			Page:        firstKey(r.Keys),
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR * 100,
			Position:    r.Position,
		})
	}
	return res
}

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
