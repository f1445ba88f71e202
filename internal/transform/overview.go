package transform

import "github.com/FranksOps/sitescope/internal/model"

const overviewTopKeywords = 10

// OverviewInput collects the domain-level signals. Nil fields are absent.
type OverviewInput struct {
	Domain        string
	Rank          *int
	IndexedPages  *int
	SearchConsole *model.SearchConsoleResult
	Crawl         *model.PageMetadata
	// OrganicEstimate is reported when search-console data is absent.
	OrganicEstimate int
}

// Overview builds the domain overview section.
func Overview(in OverviewInput) model.DomainOverview {
	out := model.DomainOverview{
		DomainRank:   in.Rank,
		IndexedPages: in.IndexedPages,
		Internationalization: model.Internationalization{
			Hreflang:   []string{},
			Domains:    []string{},
			Currencies: []string{"USD"},
		},
	}

	organic := in.OrganicEstimate
	if sc := in.SearchConsole; sc != nil {
		organic = len(sc.TopKeywords)
		top := sc.TopKeywords[:min(len(sc.TopKeywords), overviewTopKeywords)]
		out.SearchConsole = &model.SearchConsoleSummary{
			TotalClicks:      sc.TotalClicks,
			TotalImpressions: sc.TotalImpressions,
			AverageCTR:       sc.AverageCTR,
			AveragePosition:  sc.AveragePosition,
			TopKeywords:      append([]model.KeywordMetrics{}, top...),
		}
	}
	out.OrganicKeywords = &organic

	if in.Crawl != nil {
		for _, h := range in.Crawl.Hreflang {
			out.Internationalization.Hreflang = append(out.Internationalization.Hreflang, h.Lang)
		}
	}
	if in.Domain != "" {
		out.Internationalization.Domains = append(out.Internationalization.Domains, in.Domain)
	}

	return out
}
