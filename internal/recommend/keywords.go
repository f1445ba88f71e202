// Package recommend derives keyword opportunities and a staged growth plan
// from the normalized report sections.
package recommend

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/FranksOps/sitescope/internal/model"
)

const (
	maxCandidates   = 10
	maxRelated      = 5
	maxContentIdeas = 5
)

var (
	volumeModifiers     = []string{"how to", "what is", "best", "top", "guide"}
	commercialTerms     = []string{"buy", "purchase", "price", "cost", "cheap", "discount", "deal"}
	informationalTerms  = []string{"how to", "what is", "why", "when", "guide", "tutorial"}
	navigationalTerms   = []string{"login", "sign in", "official", "website"}
	defaultSERPFeatures = []string{"Featured Snippet", "People Also Ask", "Related Searches", "Local Pack"}
)

// Countries targeted by the international keyword variants, with the suffix
// appended to each base token.
var countries = []struct {
	Name   string
	Suffix string
}{
	{"United Kingdom", "UK"},
	{"Canada", "Canada"},
	{"Australia", "Australia"},
}

// Engine produces recommendations. Estimates draw from src.
type Engine struct {
	src *Source
}

// New creates an engine. A nil source is seeded from the clock.
func New(src *Source) *Engine {
	if src == nil {
		src = NewSource(0)
	}
	return &Engine{src: src}
}

// OrganicKeywordsEstimate is used when search-console data is unavailable.
func (e *Engine) OrganicKeywordsEstimate() int {
	return 500 + e.src.IntN(1000)
}

// KeywordInput carries what keyword research is derived from.
type KeywordInput struct {
	Domain  string
	Keyword string
	// Related searches as returned by the search provider, before the SERP
	// sub-report discards them for empty result pages.
	Related []string
	SERP    model.SERPAnalysis
	// Now dates the content outlines.
	Now time.Time
}

// Keywords builds the keyword opportunities section.
func (e *Engine) Keywords(in KeywordInput) model.KeywordOpportunities {
	base := BaseTokens(in.Domain)
	if len(base) == 0 && strings.TrimSpace(in.Keyword) != "" {
		base = []string{strings.TrimSpace(in.Keyword)}
	}

	related := in.Related
	if len(related) > maxRelated {
		related = related[:maxRelated]
	}

	words := append(append([]string{}, base...), related...)
	if len(words) > maxCandidates {
		words = words[:maxCandidates]
	}

	candidates := make([]model.KeywordCandidate, 0, len(words))
	for _, w := range words {
		volume := e.estimateVolume(w)
		difficulty := e.estimateDifficulty(w)
		candidates = append(candidates, model.KeywordCandidate{
			Keyword:    w,
			Volume:     &volume,
			Difficulty: &difficulty,
			Intent:     Intent(w),
		})
	}

	return model.KeywordOpportunities{
		HighIntentKeywords: candidates,
		SuggestedTitles:    contentIdeas(candidates, in.Now.Year()),
		SERPFeatures:       serpFeatures(in.SERP),
		International:      international(base),
	}
}

// BaseTokens extracts title-cased words from the first label of a domain,
// e.g. "best-coffee_shop.com" yields Best, Coffee, Shop.
func BaseTokens(domain string) []string {
	host := model.CleanDomain(domain)
	if host == "" {
		return nil
	}
	label, _, _ := strings.Cut(host, ".")

	parts := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) > 2 {
			tokens = append(tokens, titleCase(p))
		}
	}
	return tokens
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Intent classifies a keyword by substring match against fixed term lists.
func Intent(keyword string) string {
	k := strings.ToLower(keyword)
	switch {
	case containsAny(k, commercialTerms):
		return "Commercial"
	case containsAny(k, informationalTerms):
		return "Informational"
	case containsAny(k, navigationalTerms):
		return "Navigational"
	default:
		return "Mixed"
	}
}

func (e *Engine) estimateVolume(keyword string) int {
	n := utf8.RuneCountInString(keyword)
	base := 1000.0
	switch {
	case n < 10:
		base = 5000
	case n < 20:
		base = 2000
	}
	if containsAny(strings.ToLower(keyword), volumeModifiers) {
		base *= 1.5
	}
	return int(math.Floor(base * (e.src.Float64()*0.5 + 0.75)))
}

func (e *Engine) estimateDifficulty(keyword string) int {
	n := utf8.RuneCountInString(keyword)
	base := 40
	switch {
	case n < 10:
		base = 80
	case n < 20:
		base = 60
	}
	return max(1, min(100, base+e.src.IntN(20)-10))
}

func contentIdeas(candidates []model.KeywordCandidate, year int) []model.ContentIdea {
	n := min(len(candidates), maxContentIdeas)
	ideas := make([]model.ContentIdea, 0, n)
	for _, c := range candidates[:n] {
		k := c.Keyword
		ideas = append(ideas, model.ContentIdea{
			Title: "The Complete Guide to " + k,
			Outline: []string{
				fmt.Sprintf("What is %s?", k),
				fmt.Sprintf("Why %s matters in %d", k, year),
				"Best practices for " + k,
				fmt.Sprintf("Common %s mistakes to avoid", k),
				k + " tools and resources",
				"Future of " + k,
			},
			TargetKeywords: []string{k, k + " guide", k + " tips", "best " + k},
		})
	}
	return ideas
}

func serpFeatures(s model.SERPAnalysis) []string {
	var features []string
	if len(s.FeaturedSnippets) > 0 {
		features = append(features, "Featured Snippet")
	}
	if len(s.PeopleAlsoAsk) > 0 {
		features = append(features, "People Also Ask")
	}
	if len(s.RelatedSearches) > 0 {
		features = append(features, "Related Searches")
	}
	if len(s.TopResults) > 0 {
		features = append(features, "Organic Results")
	}
	if len(features) == 0 {
		return append([]string(nil), defaultSERPFeatures...)
	}
	return features
}

func international(base []string) []model.CountryKeywords {
	out := make([]model.CountryKeywords, 0, len(countries))
	for _, c := range countries {
		kws := make([]string, 0, len(base))
		for _, b := range base {
			kws = append(kws, b+" "+c.Suffix)
		}
		out = append(out, model.CountryKeywords{Country: c.Name, Keywords: kws})
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
