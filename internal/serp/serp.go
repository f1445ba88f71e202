// Package serp queries a search-results API and derives the site-indexed
// page estimate from a site: query.
package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
)

const (
	DefaultEndpoint = "https://serpapi.com/search"
	DefaultLocation = "United States"
	DefaultTimeout  = 15 * time.Second
)

// ErrNoEstimate is returned by IndexedPages when only a placeholder result
// was available, so no real estimate can be made.
var ErrNoEstimate = errors.New("serp: no indexed page estimate available")

// Searcher abstracts a search engine provider. Implementations may use
// official APIs or other mechanisms.
type Searcher interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
}

// Config configures the SerpAPI client.
type Config struct {
	Endpoint string
	APIKey   string
	Location string
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
}

// Client talks to SerpAPI. Without an API key, or when the API fails, it
// answers with a locally synthesized placeholder instead of an error.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *slog.Logger
}

var _ Searcher = (*Client)(nil)

// New creates a Client.
func New(cfg Config, hc *httpclient.Client, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: hc, logger: logger}
}

type wireResult struct {
	OrganicResults []model.OrganicResult `json:"organic_results"`
	AnswerBox      *model.AnswerBox      `json:"answer_box"`
	PeopleAlsoAsk  []struct {
		Question string `json:"question"`
	} `json:"people_also_ask"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"related_searches"`
}

// Search returns the search results page for query.
func (c *Client) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	if c.cfg.APIKey == "" {
		c.logger.Debug("serp api key not configured, using placeholder results", "query", query)
		return Placeholder(query), nil
	}

	res, err := c.search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("serp api failed, using placeholder results", "query", query, "err", err)
		return Placeholder(query), nil
	}
	return res, nil
}

func (c *Client) search(ctx context.Context, query string) (*model.SearchResult, error) {
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := url.Values{
		"q":        {query},
		"engine":   {"google"},
		"api_key":  {c.cfg.APIKey},
		"location": {c.cfg.Location},
		"gl":       {"us"},
		"hl":       {"en"},
	}

	var wire wireResult
	if err := c.http.GetJSON(ctx, c.cfg.Endpoint+"?"+params.Encode(), http.Header{}, &wire); err != nil {
		return nil, fmt.Errorf("serp search %q: %w", query, err)
	}

	res := &model.SearchResult{
		OrganicResults:  wire.OrganicResults,
		AnswerBox:       wire.AnswerBox,
		PeopleAlsoAsk:   make([]string, 0, len(wire.PeopleAlsoAsk)),
		RelatedSearches: make([]string, 0, len(wire.RelatedSearches)),
	}
	if res.OrganicResults == nil {
		res.OrganicResults = []model.OrganicResult{}
	}
	for _, q := range wire.PeopleAlsoAsk {
		if q.Question != "" {
			res.PeopleAlsoAsk = append(res.PeopleAlsoAsk, q.Question)
		}
	}
	for _, r := range wire.RelatedSearches {
		if r.Query != "" {
			res.RelatedSearches = append(res.RelatedSearches, r.Query)
		}
	}
	return res, nil
}

// IndexedPages estimates how many pages of domain are indexed by issuing a
// site: query. The API does not report totals, so any hit is scaled up to
// max(results*10, 100); no hit means 0.
func (c *Client) IndexedPages(ctx context.Context, domain string) (int, error) {
	res, err := c.Search(ctx, "site:"+model.CleanDomain(domain))
	if err != nil {
		return 0, err
	}
	if res.Placeholder {
		return 0, ErrNoEstimate
	}
	n := len(res.OrganicResults)
	if n == 0 {
		return 0, nil
	}
	return max(n*10, 100), nil
}

// Placeholder synthesizes a plausible results page for query.
func Placeholder(query string) *model.SearchResult {
	lower := strings.ToLower(query)
	slug := strings.Join(strings.Fields(lower), "-")

	return &model.SearchResult{
		OrganicResults: []model.OrganicResult{
			{
				Position:      1,
				Title:         query + " - Official Website",
				Link:          "https://example.com/" + url.PathEscape(slug),
				Snippet:       "Official information about " + query + ". Find the latest updates and comprehensive details.",
				DisplayedLink: "example.com",
			},
			{
				Position:      2,
				Title:         "Complete Guide to " + query,
				Link:          "https://guide-site.com/" + url.PathEscape(lower),
				Snippet:       "Everything you need to know about " + query + ". Complete guide with tips and best practices.",
				DisplayedLink: "guide-site.com",
			},
			{
				Position:      3,
				Title:         query + " Reviews and Comparisons",
				Link:          "https://reviews.com/" + url.PathEscape(query) + "-reviews",
				Snippet:       "Read honest reviews and detailed comparisons of " + query + ". Make informed decisions.",
				DisplayedLink: "reviews.com",
			},
		},
		PeopleAlsoAsk: []string{
			"What is " + query + "?",
			"How does " + query + " work?",
			"Why is " + query + " important?",
			"Best practices for " + query + "?",
		},
		RelatedSearches: []string{
			query + " guide",
			query + " tutorial",
			query + " best practices",
			query + " examples",
		},
		Placeholder: true,
	}
}
