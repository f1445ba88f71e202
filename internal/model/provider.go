package model

// Provider payloads. Each adapter decodes its wire format into one of these
// types before returning, so nothing downstream inspects raw JSON or HTML.

// PerformanceResult is a decoded performance audit for one strategy.
type PerformanceResult struct {
	Strategy string `json:"strategy"`
	// Score is the lighthouse performance category score in [0, 1].
	Score float64 `json:"score"`
	// Lab values from the lighthouse audits.
	LCPMillis float64 `json:"lcpMs"`
	FIDMillis float64 `json:"fidMs"`
	CLS       float64 `json:"cls"`
	// Field percentiles, zero when the origin has no field data.
	FieldLCPMillis float64 `json:"fieldLcpMs,omitempty"`
	FieldFIDMillis float64 `json:"fieldFidMs,omitempty"`
	FieldCLS       float64 `json:"fieldCls,omitempty"`
}

type OrganicResult struct {
	Position      int    `json:"position"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link"`
}

type AnswerBox struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchResult is a decoded search-results page.
type SearchResult struct {
	OrganicResults  []OrganicResult `json:"organic_results"`
	AnswerBox       *AnswerBox      `json:"answer_box,omitempty"`
	PeopleAlsoAsk   []string        `json:"people_also_ask"`
	RelatedSearches []string        `json:"related_searches"`
	// Placeholder is set when the result was synthesized locally because the
	// search provider is unconfigured or failed.
	Placeholder bool `json:"placeholder,omitempty"`
}

type HreflangLink struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// PageMetadata is what the crawl adapter extracts from the target page.
type PageMetadata struct {
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	MetaDescription string         `json:"metaDescription"`
	H1              []string       `json:"h1"`
	Robots          string         `json:"robots"`
	Canonical       string         `json:"canonical"`
	Hreflang        []HreflangLink `json:"hreflang"`
	SchemaTypes     []string       `json:"schemaTypes"`
	InternalLinks   int            `json:"internalLinks"`
	ExternalLinks   int            `json:"externalLinks"`
	Images          int            `json:"images"`
	LoadTimeMillis  int64          `json:"loadTimeMs"`
}

type KeywordMetrics struct {
	Query       string  `json:"query"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type PageMetrics struct {
	Page        string  `json:"page"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SearchConsoleResult aggregates search analytics for a verified property.
type SearchConsoleResult struct {
	TotalClicks      float64          `json:"totalClicks"`
	TotalImpressions float64          `json:"totalImpressions"`
	AverageCTR       float64          `json:"averageCTR"`
	AveragePosition  float64          `json:"averagePosition"`
	TopKeywords      []KeywordMetrics `json:"topKeywords"`
	TopPages         []PageMetrics    `json:"topPages"`
	DateRange        DateRange        `json:"dateRange"`
}

// Discoverability is what sitemap discovery learned about a site.
type Discoverability struct {
	RobotsTxt bool `json:"robotsTxt"`
	// CrawlAllowed is false when robots.txt keeps search engines off the
	// audited page.
	CrawlAllowed bool `json:"crawlAllowed"`
	// Sitemaps lists the sitemap files that were read successfully.
	Sitemaps []string `json:"sitemaps"`
	// URLs holds page URLs from those sitemaps, capped by the adapter.
	URLs []string `json:"urls"`
}
