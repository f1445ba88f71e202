// Package transform turns provider payloads, any of which may be absent,
// into the typed report sections. Every function here is pure.
package transform

import (
	"math"

	"github.com/FranksOps/sitescope/internal/model"
)

// Vital thresholds: at or below the first bound is good, at or below the
// second needs improvement, anything above is poor.
var (
	lcpBounds = [2]float64{2500, 4000}
	fidBounds = [2]float64{100, 300}
	clsBounds = [2]float64{0.10, 0.25}
)

// Used when neither performance audit is available.
var defaultVitals = model.CoreWebVitals{
	LCP: model.Vital{Value: 3000, Rating: model.RatingNeedsImprovement},
	FID: model.Vital{Value: 150, Rating: model.RatingNeedsImprovement},
	CLS: model.Vital{Value: 0.15, Rating: model.RatingNeedsImprovement},
}

const deliveryScoreFloor = 70

// Technical builds the technical section. The mobile audit is preferred for
// vitals and is the only source of the score. disc is nil when sitemap
// discovery did not settle.
func Technical(mobile, desktop *model.PerformanceResult, disc *model.Discoverability) model.TechnicalSEO {
	vitals := defaultVitals
	switch {
	case mobile != nil:
		vitals = coreWebVitals(mobile)
	case desktop != nil:
		vitals = coreWebVitals(desktop)
	}

	score := 0
	if mobile != nil {
		score = int(math.Round(mobile.Score * 100))
	}

	items := []string{}
	if vitals.LCP.Rating != model.RatingGood {
		items = append(items, "Optimize Largest Contentful Paint - compress images and improve server response time")
	}
	if vitals.FID.Rating != model.RatingGood {
		items = append(items, "Reduce First Input Delay - minimize JavaScript execution time")
	}
	if vitals.CLS.Rating != model.RatingGood {
		items = append(items, "Fix Cumulative Layout Shift - add size attributes to images and ads")
	}
	if score < deliveryScoreFloor {
		items = append(items,
			"Enable text compression (gzip/brotli)",
			"Eliminate render-blocking resources",
			"Properly size images",
		)
	}

	var audit *model.DiscoverabilityAudit
	if disc != nil {
		audit = &model.DiscoverabilityAudit{
			RobotsTxt:    disc.RobotsTxt,
			CrawlAllowed: disc.CrawlAllowed,
			Sitemap:      len(disc.Sitemaps) > 0,
			SitemapURLs:  len(disc.URLs),
		}
		if !disc.RobotsTxt {
			items = append(items, "Add a robots.txt file to help search engines crawl your site")
		} else if !disc.CrawlAllowed {
			items = append(items, "Allow search engine crawlers to access the page in robots.txt")
		}
		if len(disc.URLs) == 0 {
			items = append(items, "Create and submit an XML sitemap to improve discoverability")
		}
	}

	return model.TechnicalSEO{
		CoreWebVitals:   vitals,
		LighthouseScore: score,
		SpeedRating:     speedTier(score),
		ActionItems:     items,
		Discoverability: audit,
	}
}

// coreWebVitals rates one audit. Field percentiles win over lab values
// when present.
func coreWebVitals(p *model.PerformanceResult) model.CoreWebVitals {
	lcp := firstNonZero(p.FieldLCPMillis, p.LCPMillis)
	fid := firstNonZero(p.FieldFIDMillis, p.FIDMillis)
	cls := firstNonZero(p.FieldCLS, p.CLS)
	return model.CoreWebVitals{
		LCP: model.Vital{Value: lcp, Rating: rate(lcp, lcpBounds)},
		FID: model.Vital{Value: fid, Rating: rate(fid, fidBounds)},
		CLS: model.Vital{Value: cls, Rating: rate(cls, clsBounds)},
	}
}

func rate(v float64, bounds [2]float64) model.Rating {
	switch {
	case v <= bounds[0]:
		return model.RatingGood
	case v <= bounds[1]:
		return model.RatingNeedsImprovement
	default:
		return model.RatingPoor
	}
}

func speedTier(score int) model.SpeedTier {
	switch {
	case score >= 90:
		return model.SpeedFast
	case score >= 50:
		return model.SpeedMedium
	default:
		return model.SpeedSlow
	}
}

func firstNonZero(field, lab float64) float64 {
	if field != 0 {
		return field
	}
	return lab
}
