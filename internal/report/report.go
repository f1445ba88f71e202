// Package report renders SEO reports and fetch log summaries for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/template"
	"time"

	"github.com/FranksOps/sitescope/internal/model"
	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/goccy/go-json"
)

// Format selects a writer.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or text)", s)
	}
}

// Write renders rep in the given format.
func Write(w io.Writer, f Format, rep *model.Report) error {
	if f == FormatText {
		return WriteText(w, rep)
	}
	return WriteJSON(w, rep)
}

// WriteJSON writes the report as indented JSON, the same document the HTTP
// endpoint returns.
func WriteJSON(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

var funcs = template.FuncMap{
	"opt": func(p *int) string {
		if p == nil {
			return "unknown"
		}
		return strconv.Itoa(*p)
	},
}

const reportTmpl = `SEO Report: {{.Domain}}{{with .Keyword}} ({{.}}){{end}}
--------------------------------------------------
Generated:      {{.Timestamp.Format "2006-01-02 15:04:05"}}
Report ID:      {{.ID}}

Overview
  Domain Rank:      {{opt .Overview.DomainRank}}
  Indexed Pages:    {{opt .Overview.IndexedPages}}
  Organic Keywords: {{opt .Overview.OrganicKeywords}}
{{- with .Overview.SearchConsole}}
  Clicks:           {{printf "%.0f" .TotalClicks}}
  Impressions:      {{printf "%.0f" .TotalImpressions}}
  Avg Position:     {{printf "%.1f" .AveragePosition}}
{{- end}}

Technical
  Score:  {{.Technical.LighthouseScore}} ({{.Technical.SpeedRating}})
  LCP:    {{printf "%.2f" .Technical.CoreWebVitals.LCP.Value}}s {{.Technical.CoreWebVitals.LCP.Rating}}
  FID:    {{printf "%.0f" .Technical.CoreWebVitals.FID.Value}}ms {{.Technical.CoreWebVitals.FID.Rating}}
  CLS:    {{printf "%.3f" .Technical.CoreWebVitals.CLS.Value}} {{.Technical.CoreWebVitals.CLS.Rating}}
{{- range .Technical.ActionItems}}
  - {{.}}
{{- end}}

On-Page
  Title:      {{.OnPage.Title.Content}} ({{.OnPage.Title.Length}})
  Meta:       {{.OnPage.MetaDescription.Content}} ({{.OnPage.MetaDescription.Length}})
  H1:         {{.OnPage.H1.Content}} (x{{.OnPage.H1.Count}})
  Robots:     {{.OnPage.Robots}}
  Canonical:  {{.OnPage.Canonical}}
{{- range .OnPage.QuickWins}}
  - {{.}}
{{- end}}

SERP
{{- range .SERP.TopResults}}
  {{.Position}}. {{.Title}} ({{.Domain}})
{{- else}}
  No results
{{- end}}
{{- if .SERP.Competitors}}
  Competitors:
{{- range .SERP.Competitors}}
    #{{.Rank}} {{.Domain}}
{{- end}}
{{- end}}

Keywords
{{- range .Keywords.HighIntentKeywords}}
  {{.Keyword}}  volume={{opt .Volume}} difficulty={{opt .Difficulty}} intent={{.Intent}}
{{- else}}
  None
{{- end}}

Growth Plan
  30 days:
{{- range .GrowthPlan.ThirtyDays}}
    [{{.Category}}] {{.Task}} (impact {{.Impact}}, effort {{.Effort}})
{{- end}}
  60 days:
{{- range .GrowthPlan.SixtyDays}}
    [{{.Category}}] {{.Task}} (impact {{.Impact}}, effort {{.Effort}})
{{- end}}
  90 days:
{{- range .GrowthPlan.NinetyDays}}
    [{{.Category}}] {{.Task}} (impact {{.Impact}}, effort {{.Effort}})
{{- end}}
  KPIs:
{{- range .GrowthPlan.KPIs}}
    {{.Name}}: {{.Current}} -> {{.Target}}
{{- end}}
`

var textReport = template.Must(template.New("textReport").Funcs(funcs).Parse(reportTmpl))

// WriteText writes a human-readable rendition of the report.
func WriteText(w io.Writer, rep *model.Report) error {
	if err := textReport.Execute(w, rep); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// ProviderSummary aggregates fetch log records for one provider.
type ProviderSummary struct {
	Provider    string        `json:"provider"`
	Calls       int           `json:"calls"`
	OK          int           `json:"ok"`
	Failed      int           `json:"failed"`
	Rejected    int           `json:"rejected"`
	AvgDuration time.Duration `json:"avgDuration"`
}

// Summary contains aggregated metrics about provider calls in the fetch log.
type Summary struct {
	TotalCalls    int               `json:"totalCalls"`
	TotalFailed   int               `json:"totalFailed"`
	TotalRejected int               `json:"totalRejected"`
	Reports       int               `json:"reports"`
	Providers     []ProviderSummary `json:"providers"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	Duration      time.Duration     `json:"duration"`
}

// GenerateSummary processes fetch log records into summary metrics.
// Providers are sorted by name.
func GenerateSummary(records []*storage.FetchRecord) Summary {
	s := Summary{Providers: []ProviderSummary{}}
	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	byProvider := make(map[string]*ProviderSummary)
	total := make(map[string]time.Duration)
	reports := make(map[string]struct{})

	for _, r := range records {
		s.TotalCalls++
		reports[r.ReportID] = struct{}{}

		ps, ok := byProvider[r.Provider]
		if !ok {
			ps = &ProviderSummary{Provider: r.Provider}
			byProvider[r.Provider] = ps
		}
		ps.Calls++
		total[r.Provider] += r.Duration

		switch r.Outcome {
		case storage.OutcomeOK:
			ps.OK++
		case storage.OutcomeFailed:
			ps.Failed++
			s.TotalFailed++
		case storage.OutcomeRejected:
			ps.Rejected++
			s.TotalRejected++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	for name, ps := range byProvider {
		ps.AvgDuration = total[name] / time.Duration(ps.Calls)
		s.Providers = append(s.Providers, *ps)
	}
	sort.Slice(s.Providers, func(i, j int) bool { return s.Providers[i].Provider < s.Providers[j].Provider })

	s.Reports = len(reports)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteSummaryJSON writes the summary in JSON format.
func WriteSummaryJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const summaryTmpl = `Fetch Log Summary
-----------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Reports:       {{.Reports}}
Total Calls:   {{.TotalCalls}}
Failed:        {{.TotalFailed}}
Rejected:      {{.TotalRejected}}

Providers:
{{- range .Providers}}
  {{.Provider}}: {{.Calls}} calls, {{.OK}} ok, {{.Failed}} failed, {{.Rejected}} rejected, avg {{.AvgDuration}}
{{- else}}
  None
{{- end}}
`

var textSummary = template.Must(template.New("textSummary").Parse(summaryTmpl))

// WriteSummaryText writes a human-readable fetch log summary.
func WriteSummaryText(w io.Writer, summary Summary) error {
	if err := textSummary.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
