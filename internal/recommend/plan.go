package recommend

import (
	"fmt"
	"math"
	"strconv"

	"github.com/FranksOps/sitescope/internal/model"
)

// PlanInput is what the growth plan is selected from.
type PlanInput struct {
	Technical    model.TechnicalSEO
	OnPage       model.OnPageSEO
	Competitors  int
	DomainRank   *int
	IndexedPages *int
}

const lowScore = 70

// GrowthPlan selects 30/60/90-day tasks from the detected issues and sets
// KPI targets relative to the current values. It is deterministic.
func GrowthPlan(in PlanInput) model.GrowthPlan {
	return model.GrowthPlan{
		ThirtyDays: thirtyDays(in),
		SixtyDays:  sixtyDays(in),
		NinetyDays: ninetyDays(in),
		KPIs:       kpis(in),
	}
}

func task(c model.TaskCategory, text string, impact, effort model.Level) model.PlanItem {
	return model.PlanItem{Category: c, Task: text, Impact: impact, Effort: effort}
}

func thirtyDays(in PlanInput) []model.PlanItem {
	var items []model.PlanItem

	if goodVitals(in.Technical.CoreWebVitals) < 3 {
		items = append(items, task(model.CategoryTechnical, "Fix Core Web Vitals issues", model.LevelHigh, model.LevelMedium))
	}

	if d := in.Technical.Discoverability; d != nil && (!d.RobotsTxt || !d.Sitemap || !d.CrawlAllowed) {
		items = append(items, task(model.CategoryTechnical, "Fix robots.txt and XML sitemap discoverability", model.LevelHigh, model.LevelLow))
	}

	op := in.OnPage
	if !op.Analyzed() {
		items = append(items, task(model.CategoryTechnical, "Make the page accessible to search engine crawlers", model.LevelHigh, model.LevelMedium))
	} else {
		if len(op.Title.Issues) > 0 || len(op.MetaDescription.Issues) > 0 {
			items = append(items, task(model.CategoryContent, "Optimize title tags and meta descriptions", model.LevelHigh, model.LevelLow))
		}
		if len(op.SchemaTypes) == 0 {
			items = append(items, task(model.CategoryTechnical, "Implement structured data markup", model.LevelMedium, model.LevelLow))
		}
		if len(op.H1.Issues) > 0 {
			items = append(items, task(model.CategoryContent, "Fix H1 heading structure", model.LevelMedium, model.LevelLow))
		}
		if op.Canonical == model.CanonicalMissing {
			items = append(items, task(model.CategoryTechnical, "Add canonical URLs to prevent duplicate content", model.LevelMedium, model.LevelLow))
		}
	}

	if len(items) == 0 {
		items = append(items, task(model.CategoryTechnical, "Monitor Core Web Vitals and on-page health", model.LevelLow, model.LevelLow))
	}
	return items
}

func sixtyDays(in PlanInput) []model.PlanItem {
	var items []model.PlanItem

	if in.Technical.LighthouseScore < lowScore {
		items = append(items, task(model.CategoryTechnical, "Reduce page weight and render-blocking resources", model.LevelHigh, model.LevelMedium))
	}
	if in.OnPage.Analyzed() && len(in.OnPage.HreflangAudit.Issues) > 0 {
		items = append(items, task(model.CategoryTechnical, "Complete hreflang annotations including x-default", model.LevelMedium, model.LevelMedium))
	}

	items = append(items,
		task(model.CategoryContent, "Create 10 high-quality blog posts targeting long-tail keywords", model.LevelHigh, model.LevelHigh),
		task(model.CategoryTechnical, "Improve site architecture and internal linking", model.LevelMedium, model.LevelMedium),
	)

	if in.Competitors > 0 {
		items = append(items, task(model.CategoryAuthority, "Launch digital PR campaign for backlink acquisition", model.LevelHigh, model.LevelHigh))
	}
	return items
}

func ninetyDays(in PlanInput) []model.PlanItem {
	var items []model.PlanItem

	if in.Competitors > 0 {
		noun := "competitors"
		if in.Competitors == 1 {
			noun = "competitor"
		}
		items = append(items, task(model.CategoryAuthority,
			fmt.Sprintf("Close content and backlink gaps against %d ranking %s", in.Competitors, noun),
			model.LevelHigh, model.LevelHigh))
	}

	return append(items,
		task(model.CategoryContent, "Develop comprehensive resource pages", model.LevelMedium, model.LevelMedium),
		task(model.CategoryTechnical, "Implement advanced tracking and analytics", model.LevelMedium, model.LevelLow),
	)
}

func kpis(in PlanInput) []model.KPI {
	passRate := int(math.Round(float64(goodVitals(in.Technical.CoreWebVitals)) / 3 * 100))
	score := in.Technical.LighthouseScore

	indexedCurrent, indexedTarget := "unknown", "100"
	if n := in.IndexedPages; n != nil {
		indexedCurrent = strconv.Itoa(*n)
		indexedTarget = strconv.Itoa(max(*n*2, 100))
	}

	rankCurrent, rankTarget := "unknown", "50"
	if r := in.DomainRank; r != nil {
		rankCurrent = strconv.Itoa(*r)
		rankTarget = strconv.Itoa(min(*r+15, 100))
	}

	return []model.KPI{
		{Name: "Core Web Vitals Pass Rate", Current: fmt.Sprintf("%d%%", passRate), Target: "100%", Metric: "percentage"},
		{Name: "Performance Score", Current: strconv.Itoa(score), Target: strconv.Itoa(max(90, score)), Metric: "score"},
		{Name: "Indexed Pages", Current: indexedCurrent, Target: indexedTarget, Metric: "count"},
		{Name: "Domain Rank", Current: rankCurrent, Target: rankTarget, Metric: "score"},
		{Name: "On-Page Issues", Current: strconv.Itoa(onPageIssues(in.OnPage)), Target: "0", Metric: "count"},
	}
}

func goodVitals(v model.CoreWebVitals) int {
	n := 0
	for _, vital := range []model.Vital{v.LCP, v.FID, v.CLS} {
		if vital.Rating == model.RatingGood {
			n++
		}
	}
	return n
}

func onPageIssues(op model.OnPageSEO) int {
	return len(op.Title.Issues) + len(op.MetaDescription.Issues) + len(op.H1.Issues) + len(op.HreflangAudit.Issues)
}
