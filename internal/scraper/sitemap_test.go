package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/sitescope/internal/fingerprint"
)

func TestSitemapFetcher_FlatSitemap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url>
      <loc>http://example.com/</loc>
      <lastmod>2023-01-01</lastmod>
      <changefreq>monthly</changefreq>
      <priority>0.8</priority>
   </url>
   <url>
      <loc>http://example.com/page1</loc>
   </url>
</urlset>`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	sf := NewSitemapFetcher(fetcher, nil, 0, 0, slog.Default())
	ctx := context.Background()

	urls, err := sf.FetchSitemap(ctx, ts.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("expected 2 URLs, got %d", len(urls))
	}

	if urls[0] != "http://example.com/" {
		t.Errorf("expected first url to be http://example.com/, got %s", urls[0])
	}
	if urls[1] != "http://example.com/page1" {
		t.Errorf("expected second url to be http://example.com/page1, got %s", urls[1])
	}
}

func TestSitemapFetcher_SitemapIndex(t *testing.T) {
	mux := http.NewServeMux()

	// Track the base URL to inject into the test XML
	var baseURL string

	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <sitemap>
      <loc>` + baseURL + `/sitemap1.xml</loc>
   </sitemap>
   <sitemap>
      <loc>` + baseURL + `/sitemap2.xml</loc>
   </sitemap>
</sitemapindex>`))
	})

	mux.HandleFunc("/sitemap1.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url><loc>http://example.com/s1-1</loc></url>
</urlset>`))
	})

	mux.HandleFunc("/sitemap2.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url><loc>http://example.com/s2-1</loc></url>
   <url><loc>http://example.com/s2-2</loc></url>
</urlset>`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()
	baseURL = ts.URL

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	sf := NewSitemapFetcher(fetcher, nil, 0, 0, slog.Default())
	ctx := context.Background()

	urls, err := sf.FetchSitemap(ctx, ts.URL+"/sitemap_index.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(urls) != 3 {
		t.Fatalf("expected 3 URLs from nested sitemaps, got %d", len(urls))
	}

	expected := map[string]bool{
		"http://example.com/s1-1": true,
		"http://example.com/s2-1": true,
		"http://example.com/s2-2": true,
	}

	for _, u := range urls {
		if !expected[u] {
			t.Errorf("unexpected URL parsed: %s", u)
		}
	}
}

func TestSitemapFetcher_InvalidXML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`this is not xml`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	sf := NewSitemapFetcher(fetcher, nil, 0, 0, slog.Default())
	ctx := context.Background()

	_, err := sf.FetchSitemap(ctx, ts.URL+"/sitemap.xml")
	if err == nil || !strings.Contains(err.Error(), "failed to parse as sitemap or index") {
		t.Errorf("expected parsing error, got: %v", err)
	}
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return fetcher
}

func urlset(urls ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, u := range urls {
		b.WriteString("<url><loc>" + u + "</loc></url>")
	}
	b.WriteString("</urlset>")
	return b.String()
}

func TestSitemapFetcher_DiscoverFromRobots(t *testing.T) {
	mux := http.NewServeMux()
	var baseURL string

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin/\nSitemap: " + baseURL + "/pages.xml\n"))
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlset("http://example.com/a", "http://example.com/b")))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()
	baseURL = ts.URL

	fetcher := newTestFetcher(t)
	sf := NewSitemapFetcher(fetcher, NewRobotsTxtAuditor(fetcher, nil), 0, 0, nil)

	got, err := sf.Discover(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.RobotsTxt {
		t.Errorf("expected robots.txt to be reported as present")
	}
	if !got.CrawlAllowed {
		t.Errorf("expected the home page to be crawlable")
	}
	if len(got.Sitemaps) != 1 || got.Sitemaps[0] != ts.URL+"/pages.xml" {
		t.Errorf("unexpected sitemaps: %v", got.Sitemaps)
	}
	if len(got.URLs) != 2 {
		t.Errorf("expected 2 URLs, got %v", got.URLs)
	}
}

func TestSitemapFetcher_DiscoverFallsBackToSitemapXML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlset("http://example.com/only")))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	sf := NewSitemapFetcher(newTestFetcher(t), nil, 0, 0, nil)

	got, err := sf.Discover(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RobotsTxt {
		t.Errorf("expected robots.txt to be reported as missing")
	}
	if !got.CrawlAllowed {
		t.Errorf("a missing robots.txt allows crawling")
	}
	if len(got.URLs) != 1 || got.URLs[0] != "http://example.com/only" {
		t.Errorf("unexpected URLs: %v", got.URLs)
	}
}

func TestSitemapFetcher_DiscoverNoSitemap(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	sf := NewSitemapFetcher(newTestFetcher(t), nil, 0, 0, nil)

	got, err := sf.Discover(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.URLs) != 0 || len(got.Sitemaps) != 0 {
		t.Errorf("expected nothing discovered, got %+v", got)
	}
}

func TestSitemapFetcher_DiscoverBlockedByRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: Googlebot\nDisallow: /\n"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	sf := NewSitemapFetcher(newTestFetcher(t), nil, 0, 0, nil)

	got, err := sf.Discover(context.Background(), ts.URL+"/landing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CrawlAllowed {
		t.Errorf("expected Googlebot to be blocked")
	}
}

func TestSitemapFetcher_CapsURLs(t *testing.T) {
	var urls []string
	for i := 0; i < 80; i++ {
		urls = append(urls, fmt.Sprintf("http://example.com/p%d", i))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlset(urls...)))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	sf := NewSitemapFetcher(newTestFetcher(t), nil, 0, 0, nil)

	got, err := sf.Discover(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.URLs) != DefaultMaxSitemapURLs {
		t.Fatalf("expected %d URLs, got %d", DefaultMaxSitemapURLs, len(got.URLs))
	}
	if got.URLs[0] != "http://example.com/p0" {
		t.Errorf("expected document order to be kept, got %s first", got.URLs[0])
	}
}

func TestSitemapFetcher_IndexFollowedOneLevel(t *testing.T) {
	mux := http.NewServeMux()
	var baseURL string

	index := func(child string) string {
		return `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><sitemap><loc>` + baseURL + child + `</loc></sitemap></sitemapindex>`
	}
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(index("/nested-index.xml")))
	})
	mux.HandleFunc("/nested-index.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(index("/deep.xml")))
	})
	mux.HandleFunc("/deep.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlset("http://example.com/deep")))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()
	baseURL = ts.URL

	sf := NewSitemapFetcher(newTestFetcher(t), nil, 0, 0, nil)

	urls, err := sf.FetchSitemap(context.Background(), ts.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("expected the second index level to be ignored, got %v", urls)
	}
}
