package model

import "time"

// Rating is the three-tier Core Web Vitals classification.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// SpeedTier buckets the aggregate performance score.
type SpeedTier string

const (
	SpeedFast   SpeedTier = "fast"
	SpeedMedium SpeedTier = "medium"
	SpeedSlow   SpeedTier = "slow"
)

// Report is the assembled output of one pipeline run. It is never modified
// after assembly and is shared by pointer between cache readers.
type Report struct {
	ID         string               `json:"id"`
	Domain     string               `json:"domain"`
	Keyword    string               `json:"keyword,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	Overview   DomainOverview       `json:"overview"`
	Technical  TechnicalSEO         `json:"technical"`
	OnPage     OnPageSEO            `json:"onPage"`
	SERP       SERPAnalysis         `json:"serp"`
	Keywords   KeywordOpportunities `json:"keywords"`
	GrowthPlan GrowthPlan           `json:"growthPlan"`
}

// DomainOverview aggregates domain-level signals. Nil pointers mean the
// source was unavailable.
type DomainOverview struct {
	DomainRank           *int                  `json:"domainRank"`
	IndexedPages         *int                  `json:"indexedPages"`
	OrganicKeywords      *int                  `json:"organicKeywords"`
	SearchConsole        *SearchConsoleSummary `json:"gscData,omitempty"`
	Internationalization Internationalization  `json:"internationalization"`
}

// SearchConsoleSummary is the overview projection of a search-console result.
type SearchConsoleSummary struct {
	TotalClicks      float64          `json:"totalClicks"`
	TotalImpressions float64          `json:"totalImpressions"`
	AverageCTR       float64          `json:"averageCTR"`
	AveragePosition  float64          `json:"averagePosition"`
	TopKeywords      []KeywordMetrics `json:"topKeywords"`
}

type Internationalization struct {
	Hreflang   []string `json:"hreflang"`
	Domains    []string `json:"domains"`
	Currencies []string `json:"currencies"`
}

// Vital is a single Core Web Vitals measurement.
type Vital struct {
	Value  float64 `json:"value"`
	Rating Rating  `json:"rating"`
}

type CoreWebVitals struct {
	LCP Vital `json:"lcp"`
	FID Vital `json:"fid"`
	CLS Vital `json:"cls"`
}

type TechnicalSEO struct {
	CoreWebVitals   CoreWebVitals         `json:"coreWebVitals"`
	LighthouseScore int                   `json:"lighthouseScore"`
	SpeedRating     SpeedTier             `json:"speedRating"`
	ActionItems     []string              `json:"actionItems"`
	Discoverability *DiscoverabilityAudit `json:"discoverability,omitempty"`
}

// DiscoverabilityAudit is present when sitemap discovery ran.
type DiscoverabilityAudit struct {
	RobotsTxt    bool `json:"robotsTxt"`
	CrawlAllowed bool `json:"crawlAllowed"`
	Sitemap      bool `json:"sitemap"`
	SitemapURLs  int  `json:"sitemapUrls"`
}

// TextAnalysis describes a single-valued tag such as the title or meta
// description.
type TextAnalysis struct {
	Content string   `json:"content"`
	Length  int      `json:"length"`
	Issues  []string `json:"issues"`
}

type HeadingAnalysis struct {
	Content string   `json:"content"`
	Count   int      `json:"count"`
	Issues  []string `json:"issues"`
}

type HreflangAudit struct {
	Issues      []string `json:"issues"`
	Implemented bool     `json:"implemented"`
}

type OnPageSEO struct {
	Title           TextAnalysis    `json:"title"`
	MetaDescription TextAnalysis    `json:"metaDescription"`
	H1              HeadingAnalysis `json:"h1"`
	Robots          string          `json:"robots"`
	Canonical       string          `json:"canonical"`
	SchemaTypes     []string        `json:"schemaTypes"`
	HreflangAudit   HreflangAudit   `json:"hreflangAudit"`
	QuickWins       []string        `json:"quickWins"`
}

type SERPEntry struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Domain   string `json:"domain"`
}

type Competitor struct {
	Domain    string   `json:"domain"`
	Strengths []string `json:"strengths"`
	Rank      int      `json:"rank"`
}

type SERPAnalysis struct {
	TopResults       []SERPEntry  `json:"topResults"`
	FeaturedSnippets []string     `json:"featuredSnippets"`
	PeopleAlsoAsk    []string     `json:"peopleAlsoAsk"`
	Competitors      []Competitor `json:"competitors"`
	RelatedSearches  []string     `json:"relatedSearches"`
}

type KeywordCandidate struct {
	Keyword    string `json:"keyword"`
	Volume     *int   `json:"volume"`
	Difficulty *int   `json:"difficulty"`
	Intent     string `json:"intent"`
}

type ContentIdea struct {
	Title          string   `json:"title"`
	Outline        []string `json:"outline"`
	TargetKeywords []string `json:"targetKeywords"`
}

type CountryKeywords struct {
	Country  string   `json:"country"`
	Keywords []string `json:"keywords"`
}

type KeywordOpportunities struct {
	HighIntentKeywords []KeywordCandidate `json:"highIntentKeywords"`
	SuggestedTitles    []ContentIdea      `json:"suggestedTitles"`
	SERPFeatures       []string           `json:"serpFeatures"`
	International      []CountryKeywords  `json:"international"`
}

type TaskCategory string

const (
	CategoryTechnical TaskCategory = "technical"
	CategoryContent   TaskCategory = "content"
	CategoryAuthority TaskCategory = "authority"
)

// Level is used for both impact and effort.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

type PlanItem struct {
	Category TaskCategory `json:"category"`
	Task     string       `json:"task"`
	Impact   Level        `json:"impact"`
	Effort   Level        `json:"effort"`
}

type KPI struct {
	Name    string `json:"name"`
	Current string `json:"current"`
	Target  string `json:"target"`
	Metric  string `json:"metric"`
}

type GrowthPlan struct {
	ThirtyDays []PlanItem `json:"thirtyDays"`
	SixtyDays  []PlanItem `json:"sixtyDays"`
	NinetyDays []PlanItem `json:"ninetyDays"`
	KPIs       []KPI      `json:"kpis"`
}

// Placeholder values used by the on-page sub-report.
const (
	IssueUnableToAnalyze = "Unable to analyze - page not accessible"
	RobotsUnknown        = "Unknown"
	RobotsDefault        = "index, follow"
	CanonicalUnknown     = "Unknown"
	CanonicalMissing     = "Not specified"
)

// Analyzed reports whether the on-page sub-report was built from a crawl.
func (o OnPageSEO) Analyzed() bool {
	for _, issue := range o.Title.Issues {
		if issue == IssueUnableToAnalyze {
			return false
		}
	}
	return true
}
