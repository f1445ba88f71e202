package transform

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FranksOps/sitescope/internal/model"
)

const (
	titleMin = 30
	titleMax = 60
	metaMin  = 120
	metaMax  = 160
)

// OnPage builds the on-page section. A nil crawl yields a section that says
// so in every field instead of guessing.
func OnPage(crawl *model.PageMetadata) model.OnPageSEO {
	if crawl == nil {
		unable := func() []string { return []string{model.IssueUnableToAnalyze} }
		return model.OnPageSEO{
			Title:           model.TextAnalysis{Issues: unable()},
			MetaDescription: model.TextAnalysis{Issues: unable()},
			H1:              model.HeadingAnalysis{Issues: unable()},
			Robots:          model.RobotsUnknown,
			Canonical:       model.CanonicalUnknown,
			SchemaTypes:     []string{},
			HreflangAudit:   model.HreflangAudit{Issues: unable()},
			QuickWins:       []string{},
		}
	}

	titleIssues := analyzeTitle(crawl.Title)
	metaIssues := analyzeMeta(crawl.MetaDescription)
	h1Issues := analyzeH1(crawl.H1)

	h1 := ""
	if len(crawl.H1) > 0 {
		h1 = crawl.H1[0]
	}
	robots := crawl.Robots
	if robots == "" {
		robots = model.RobotsDefault
	}
	canonical := crawl.Canonical
	if canonical == "" {
		canonical = model.CanonicalMissing
	}
	schema := crawl.SchemaTypes
	if schema == nil {
		schema = []string{}
	}

	wins := []string{}
	if len(titleIssues) > 0 {
		wins = append(wins, "Optimize title tag length and keywords")
	}
	if len(metaIssues) > 0 {
		wins = append(wins, "Write compelling meta descriptions")
	}
	if len(h1Issues) > 0 {
		wins = append(wins, "Fix H1 tag structure and content")
	}
	if crawl.Canonical == "" {
		wins = append(wins, "Add canonical URLs to prevent duplicate content")
	}
	if len(crawl.SchemaTypes) == 0 {
		wins = append(wins, "Implement structured data markup")
	}

	return model.OnPageSEO{
		Title: model.TextAnalysis{
			Content: crawl.Title,
			Length:  utf8.RuneCountInString(crawl.Title),
			Issues:  titleIssues,
		},
		MetaDescription: model.TextAnalysis{
			Content: crawl.MetaDescription,
			Length:  utf8.RuneCountInString(crawl.MetaDescription),
			Issues:  metaIssues,
		},
		H1: model.HeadingAnalysis{
			Content: h1,
			Count:   len(crawl.H1),
			Issues:  h1Issues,
		},
		Robots:      robots,
		Canonical:   canonical,
		SchemaTypes: schema,
		HreflangAudit: model.HreflangAudit{
			Issues:      analyzeHreflang(crawl.Hreflang),
			Implemented: len(crawl.Hreflang) > 0,
		},
		QuickWins: wins,
	}
}

func analyzeTitle(title string) []string {
	issues := []string{}
	if title == "" {
		return append(issues, "Missing title tag")
	}
	n := utf8.RuneCountInString(title)
	if n < titleMin {
		issues = append(issues, "Title too short (< 30 characters)")
	}
	if n > titleMax {
		issues = append(issues, "Title too long (> 60 characters)")
	}
	if strings.IndexFunc(title, unicode.IsUpper) < 0 {
		issues = append(issues, "Consider capitalizing important words")
	}
	return issues
}

func analyzeMeta(desc string) []string {
	issues := []string{}
	if desc == "" {
		return append(issues, "Missing meta description")
	}
	n := utf8.RuneCountInString(desc)
	if n < metaMin {
		issues = append(issues, "Meta description too short (< 120 characters)")
	}
	if n > metaMax {
		issues = append(issues, "Meta description too long (> 160 characters)")
	}
	return issues
}

func analyzeH1(h1 []string) []string {
	switch {
	case len(h1) == 0:
		return []string{"Missing H1 tag"}
	case len(h1) > 1:
		return []string{fmt.Sprintf("Multiple H1 tags found (%d)", len(h1))}
	default:
		return []string{}
	}
}

func analyzeHreflang(links []model.HreflangLink) []string {
	if len(links) == 0 {
		return []string{"No hreflang implementation found"}
	}
	for _, l := range links {
		if l.Lang == "x-default" {
			return []string{}
		}
	}
	return []string{"Missing x-default hreflang"}
}
