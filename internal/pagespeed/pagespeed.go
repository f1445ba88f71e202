// Package pagespeed runs performance audits through the PageSpeed Insights API.
package pagespeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultTimeout  = 60 * time.Second
)

// Strategy selects the device class the audit emulates.
type Strategy string

const (
	Mobile  Strategy = "mobile"
	Desktop Strategy = "desktop"
)

// ErrNotConfigured is returned when no API key is set. No request is made.
var ErrNotConfigured = errors.New("pagespeed: api key not configured")

// Config configures the PageSpeed client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
}

// Client fetches performance audits.
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
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: hc, logger: logger}
}

type audit struct {
	NumericValue float64 `json:"numericValue"`
}

type fieldMetric struct {
	Percentile float64 `json:"percentile"`
	Category   string  `json:"category"`
}

type wireResult struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]audit `json:"audits"`
	} `json:"lighthouseResult"`
	LoadingExperience *struct {
		Metrics map[string]fieldMetric `json:"metrics"`
	} `json:"loadingExperience"`
}

// Analyze runs a performance audit of targetURL for the given strategy.
func (c *Client) Analyze(ctx context.Context, targetURL string, strategy Strategy) (*model.PerformanceResult, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := url.Values{
		"url":      {targetURL},
		"key":      {c.cfg.APIKey},
		"strategy": {string(strategy)},
		"category": {"PERFORMANCE"},
	}

	start := time.Now()
	var wire wireResult
	if err := c.http.GetJSON(ctx, c.cfg.Endpoint+"?"+params.Encode(), nil, &wire); err != nil {
		return nil, fmt.Errorf("pagespeed %s %s: %w", strategy, targetURL, err)
	}

	if wire.LighthouseResult.Categories.Performance.Score == nil {
		return nil, fmt.Errorf("pagespeed %s %s: response has no performance score", strategy, targetURL)
	}

	audits := wire.LighthouseResult.Audits
	res := &model.PerformanceResult{
		Strategy:  string(strategy),
		Score:     *wire.LighthouseResult.Categories.Performance.Score,
		LCPMillis: audits["largest-contentful-paint"].NumericValue,
		FIDMillis: audits["first-input-delay"].NumericValue,
		CLS:       audits["cumulative-layout-shift"].NumericValue,
	}

	if le := wire.LoadingExperience; le != nil {
		res.FieldLCPMillis = le.Metrics["LARGEST_CONTENTFUL_PAINT_MS"].Percentile
		res.FieldFIDMillis = le.Metrics["FIRST_INPUT_DELAY_MS"].Percentile
		// CrUX reports the CLS percentile multiplied by 100.
		res.FieldCLS = le.Metrics["CUMULATIVE_LAYOUT_SHIFT_SCORE"].Percentile / 100
	}

	c.logger.Debug("pagespeed audit complete", "url", targetURL, "strategy", strategy, "score", res.Score, "duration", time.Since(start))
	return res, nil
}
