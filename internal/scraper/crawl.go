package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
)

// DefaultCrawlTimeout bounds a single page crawl.
const DefaultCrawlTimeout = 10 * time.Second

// ErrBotChallenge is returned when the target answered with a bot-protection
// challenge instead of its own markup.
var ErrBotChallenge = errors.New("bot challenge page")

// Crawler fetches the audited page and extracts its on-page SEO signals.
type Crawler struct {
	fetcher *Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewCrawler creates a page crawler. A zero timeout selects DefaultCrawlTimeout.
func NewCrawler(fetcher *Fetcher, timeout time.Duration, logger *slog.Logger) *Crawler {
	if timeout <= 0 {
		timeout = DefaultCrawlTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{fetcher: fetcher, timeout: timeout, logger: logger}
}

// Crawl fetches targetURL and parses it. Non-2xx statuses and challenge
// pages are errors.
func (c *Crawler) Crawl(ctx context.Context, targetURL string) (*model.PageMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", targetURL, err)
	}
	if res.DetectedBot {
		return nil, fmt.Errorf("crawl %s: %w (%s)", targetURL, ErrBotChallenge, res.DetectionSrc)
	}
	if !res.OK() {
		return nil, fmt.Errorf("crawl %s: HTTP %d", targetURL, res.StatusCode)
	}

	meta, err := ParsePage(res.URL, res.Body)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", targetURL, err)
	}
	meta.LoadTimeMillis = res.Duration.Milliseconds()

	c.logger.Debug("page crawled", "url", res.URL, "status", res.StatusCode, "bytes", len(res.Body), "duration", res.Duration)
	return meta, nil
}

// ParsePage extracts on-page signals from an HTML document served at pageURL.
func ParsePage(pageURL string, body []byte) (*model.PageMetadata, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := &model.PageMetadata{
		URL:             pageURL,
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: attr(doc, `meta[name="description"]`, "content"),
		Robots:          attr(doc, `meta[name="robots"]`, "content"),
		Canonical:       attr(doc, `link[rel="canonical"]`, "href"),
		H1:              []string{},
		Hreflang:        []model.HreflangLink{},
		SchemaTypes:     []string{},
	}

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			meta.H1 = append(meta.H1, text)
		}
	})

	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		meta.Hreflang = append(meta.Hreflang, model.HreflangLink{Lang: lang, Href: href})
	})

	seen := make(map[string]struct{})
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, typ := range schemaTypes([]byte(s.Text())) {
			if _, dup := seen[typ]; dup {
				continue
			}
			seen[typ] = struct{}{}
			meta.SchemaTypes = append(meta.SchemaTypes, typ)
		}
	})

	host := base.Hostname()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base.ResolveReference(u).Hostname() == host {
			meta.InternalLinks++
		} else {
			meta.ExternalLinks++
		}
	})

	meta.Images = doc.Find("img").Length()

	return meta, nil
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// schemaTypes returns the @type values of a JSON-LD block. A top-level @type
// wins over @graph; @type may be a string or an array of strings. Malformed
// blocks yield nothing.
func schemaTypes(raw []byte) []string {
	var data map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &data); err != nil {
		return nil
	}
	if t, ok := data["@type"]; ok {
		return typeNames(t)
	}
	graph, ok := data["@graph"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range graph {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, typeNames(obj["@type"])...)
		}
	}
	return out
}

func typeNames(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
