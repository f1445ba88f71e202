package recommend

import (
	"testing"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Deterministic(t *testing.T) {
	a, b := NewSource(42), NewSource(42)
	for range 20 {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestBaseTokens(t *testing.T) {
	tests := []struct {
		domain string
		want   []string
	}{
		{"best-coffee_shop.com", []string{"Best", "Coffee", "Shop"}},
		{"https://www.ACME-io.co.uk/path", []string{"Acme"}},
		{"my-ab.com", []string{}},
		{"", nil},
	}
	for _, tt := range tests {
		got := BaseTokens(tt.domain)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.domain)
			continue
		}
		assert.Equal(t, tt.want, got, tt.domain)
	}
}

func TestIntent(t *testing.T) {
	assert.Equal(t, "Commercial", Intent("buy running shoes"))
	assert.Equal(t, "Commercial", Intent("Shoe Price guide"), "commercial wins over informational")
	assert.Equal(t, "Informational", Intent("How to lace shoes"))
	assert.Equal(t, "Navigational", Intent("nike official"))
	assert.Equal(t, "Mixed", Intent("Coffee"))
}

func TestKeywords(t *testing.T) {
	e := New(NewSource(7))
	related := []string{"r1", "r2", "r3", "r4", "r5", "r6"}

	got := e.Keywords(KeywordInput{
		Domain:  "fresh-coffee-roasters.com",
		Related: related,
		Now:     time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	// 3 base tokens plus the first 5 related searches.
	require.Len(t, got.HighIntentKeywords, 8)
	assert.Equal(t, "Fresh", got.HighIntentKeywords[0].Keyword)
	assert.Equal(t, "r5", got.HighIntentKeywords[7].Keyword)

	for _, c := range got.HighIntentKeywords {
		require.NotNil(t, c.Volume)
		require.NotNil(t, c.Difficulty)
		// Short keywords: volume base 5000 in [0.75, 1.25), difficulty 80 +/- 10.
		assert.GreaterOrEqual(t, *c.Volume, 3750, c.Keyword)
		assert.Less(t, *c.Volume, 6250, c.Keyword)
		assert.GreaterOrEqual(t, *c.Difficulty, 70, c.Keyword)
		assert.LessOrEqual(t, *c.Difficulty, 89, c.Keyword)
	}

	require.Len(t, got.SuggestedTitles, 5)
	idea := got.SuggestedTitles[0]
	assert.Equal(t, "The Complete Guide to Fresh", idea.Title)
	assert.Len(t, idea.Outline, 6)
	assert.Equal(t, "Why Fresh matters in 2027", idea.Outline[1])
	assert.Equal(t, []string{"Fresh", "Fresh guide", "Fresh tips", "best Fresh"}, idea.TargetKeywords)

	assert.Equal(t, defaultSERPFeatures, got.SERPFeatures)

	require.Len(t, got.International, 3)
	assert.Equal(t, "United Kingdom", got.International[0].Country)
	assert.Equal(t, []string{"Fresh UK", "Coffee UK", "Roasters UK"}, got.International[0].Keywords)
	assert.Equal(t, []string{"Fresh Australia", "Coffee Australia", "Roasters Australia"}, got.International[2].Keywords)
}

func TestKeywords_SameSeedSameOutput(t *testing.T) {
	in := KeywordInput{Domain: "acme-widgets.com", Related: []string{"how to use widgets"}, Now: time.Now()}
	a := New(NewSource(99)).Keywords(in)
	b := New(NewSource(99)).Keywords(in)
	assert.Equal(t, a, b)
}

func TestKeywords_KeywordOnly(t *testing.T) {
	got := New(NewSource(1)).Keywords(KeywordInput{Keyword: "espresso machines", Now: time.Now()})
	require.Len(t, got.HighIntentKeywords, 1)
	assert.Equal(t, "espresso machines", got.HighIntentKeywords[0].Keyword)
}

func TestKeywords_DetectedSERPFeatures(t *testing.T) {
	got := New(NewSource(1)).Keywords(KeywordInput{
		Domain: "acme.com",
		SERP: model.SERPAnalysis{
			TopResults:    []model.SERPEntry{{Position: 1}},
			PeopleAlsoAsk: []string{"q"},
		},
	})
	assert.Equal(t, []string{"People Also Ask", "Organic Results"}, got.SERPFeatures)
}

func TestOrganicKeywordsEstimate(t *testing.T) {
	e := New(NewSource(3))
	for range 50 {
		n := e.OrganicKeywordsEstimate()
		assert.GreaterOrEqual(t, n, 500)
		assert.LessOrEqual(t, n, 1499)
	}
}

func goodTechnical(score int) model.TechnicalSEO {
	good := model.Vital{Rating: model.RatingGood}
	return model.TechnicalSEO{
		CoreWebVitals:   model.CoreWebVitals{LCP: good, FID: good, CLS: good},
		LighthouseScore: score,
	}
}

func cleanOnPage() model.OnPageSEO {
	return model.OnPageSEO{
		Canonical:     "https://acme.com/",
		SchemaTypes:   []string{"Organization"},
		HreflangAudit: model.HreflangAudit{Implemented: true},
	}
}

func tasks(items []model.PlanItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Task)
	}
	return out
}

func TestGrowthPlan_HealthySite(t *testing.T) {
	plan := GrowthPlan(PlanInput{Technical: goodTechnical(95), OnPage: cleanOnPage()})

	assert.Equal(t, []string{"Monitor Core Web Vitals and on-page health"}, tasks(plan.ThirtyDays))
	assert.Equal(t, []string{
		"Create 10 high-quality blog posts targeting long-tail keywords",
		"Improve site architecture and internal linking",
	}, tasks(plan.SixtyDays))
	assert.Equal(t, []string{
		"Develop comprehensive resource pages",
		"Implement advanced tracking and analytics",
	}, tasks(plan.NinetyDays))
}

func TestGrowthPlan_IssueDriven(t *testing.T) {
	tech := goodTechnical(40)
	tech.CoreWebVitals.LCP.Rating = model.RatingPoor
	tech.Discoverability = &model.DiscoverabilityAudit{RobotsTxt: true, CrawlAllowed: true}

	op := cleanOnPage()
	op.Title.Issues = []string{"Title too short (< 30 characters)"}
	op.H1.Issues = []string{"Missing H1 tag"}
	op.SchemaTypes = nil
	op.Canonical = model.CanonicalMissing
	op.HreflangAudit = model.HreflangAudit{Issues: []string{"No hreflang implementation found"}}

	plan := GrowthPlan(PlanInput{Technical: tech, OnPage: op, Competitors: 2})

	assert.Equal(t, []string{
		"Fix Core Web Vitals issues",
		"Fix robots.txt and XML sitemap discoverability",
		"Optimize title tags and meta descriptions",
		"Implement structured data markup",
		"Fix H1 heading structure",
		"Add canonical URLs to prevent duplicate content",
	}, tasks(plan.ThirtyDays))
	assert.Equal(t, []string{
		"Reduce page weight and render-blocking resources",
		"Complete hreflang annotations including x-default",
		"Create 10 high-quality blog posts targeting long-tail keywords",
		"Improve site architecture and internal linking",
		"Launch digital PR campaign for backlink acquisition",
	}, tasks(plan.SixtyDays))
	assert.Equal(t, "Close content and backlink gaps against 2 ranking competitors", plan.NinetyDays[0].Task)
	assert.Equal(t, model.CategoryAuthority, plan.NinetyDays[0].Category)
}

func TestGrowthPlan_UnanalyzedPage(t *testing.T) {
	unable := []string{model.IssueUnableToAnalyze}
	op := model.OnPageSEO{
		Title:           model.TextAnalysis{Issues: unable},
		MetaDescription: model.TextAnalysis{Issues: unable},
		H1:              model.HeadingAnalysis{Issues: unable},
		Canonical:       model.CanonicalUnknown,
		HreflangAudit:   model.HreflangAudit{Issues: unable},
	}

	plan := GrowthPlan(PlanInput{Technical: goodTechnical(95), OnPage: op})
	assert.Equal(t, []string{"Make the page accessible to search engine crawlers"}, tasks(plan.ThirtyDays))
	assert.NotContains(t, tasks(plan.SixtyDays), "Complete hreflang annotations including x-default")
}

func TestGrowthPlan_KPIs(t *testing.T) {
	tech := goodTechnical(62)
	tech.CoreWebVitals.CLS.Rating = model.RatingNeedsImprovement
	op := cleanOnPage()
	op.MetaDescription.Issues = []string{"Missing meta description"}
	rank, indexed := 90, 340

	kpis := GrowthPlan(PlanInput{Technical: tech, OnPage: op, DomainRank: &rank, IndexedPages: &indexed}).KPIs
	require.Len(t, kpis, 5)

	assert.Equal(t, model.KPI{Name: "Core Web Vitals Pass Rate", Current: "67%", Target: "100%", Metric: "percentage"}, kpis[0])
	assert.Equal(t, model.KPI{Name: "Performance Score", Current: "62", Target: "90", Metric: "score"}, kpis[1])
	assert.Equal(t, model.KPI{Name: "Indexed Pages", Current: "340", Target: "680", Metric: "count"}, kpis[2])
	assert.Equal(t, model.KPI{Name: "Domain Rank", Current: "90", Target: "100", Metric: "score"}, kpis[3])
	assert.Equal(t, model.KPI{Name: "On-Page Issues", Current: "1", Target: "0", Metric: "count"}, kpis[4])

	unknown := GrowthPlan(PlanInput{Technical: goodTechnical(95), OnPage: cleanOnPage()}).KPIs
	assert.Equal(t, "unknown", unknown[2].Current)
	assert.Equal(t, "unknown", unknown[3].Current)
	assert.Equal(t, "95", unknown[1].Target)
}
