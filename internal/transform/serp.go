package transform

import (
	"fmt"
	"strings"

	"github.com/FranksOps/sitescope/internal/model"
)

const (
	maxTopResults  = 10
	maxCompetitors = 3
)

// SERP builds the search-results section. Results that mention the target
// domain are not competitors. An empty target keeps every result.
func SERP(res *model.SearchResult, domain string) model.SERPAnalysis {
	out := model.SERPAnalysis{
		TopResults:       []model.SERPEntry{},
		FeaturedSnippets: []string{},
		PeopleAlsoAsk:    []string{},
		Competitors:      []model.Competitor{},
		RelatedSearches:  []string{},
	}
	if res == nil || len(res.OrganicResults) == 0 {
		return out
	}

	for _, r := range res.OrganicResults[:min(len(res.OrganicResults), maxTopResults)] {
		out.TopResults = append(out.TopResults, model.SERPEntry{
			Position: r.Position,
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Domain:   r.DisplayedLink,
		})
	}

	if res.AnswerBox != nil {
		out.FeaturedSnippets = append(out.FeaturedSnippets, res.AnswerBox.Snippet)
	}
	out.PeopleAlsoAsk = append(out.PeopleAlsoAsk, res.PeopleAlsoAsk...)
	out.RelatedSearches = append(out.RelatedSearches, res.RelatedSearches...)

	target := model.CleanDomain(domain)
	for _, e := range out.TopResults {
		if len(out.Competitors) == maxCompetitors {
			break
		}
		if target != "" && strings.Contains(strings.ToLower(e.Domain), target) {
			continue
		}
		out.Competitors = append(out.Competitors, model.Competitor{
			Domain: e.Domain,
			Rank:   e.Position,
			Strengths: []string{
				fmt.Sprintf("Ranking #%d for target keyword", e.Position),
				"Strong domain authority",
				"Optimized content structure",
			},
		})
	}

	return out
}
