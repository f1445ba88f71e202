package storage

import (
	"context"
	"testing"
	"time"
)

func TestFilter_Matches(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	rec := &FetchRecord{
		ID:        "r1",
		ReportID:  "rep-1",
		Provider:  "pagespeed-mobile",
		Target:    "https://example.com",
		Outcome:   OutcomeFailed,
		Error:     "timeout",
		Duration:  2 * time.Second,
		CreatedAt: now,
	}

	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"report id", Filter{ReportID: "rep-1"}, true},
		{"other report", Filter{ReportID: "rep-2"}, false},
		{"provider", Filter{Provider: "pagespeed-mobile"}, true},
		{"other provider", Filter{Provider: "serp"}, false},
		{"outcome", Filter{Outcome: OutcomeFailed}, true},
		{"other outcome", Filter{Outcome: OutcomeOK}, false},
		{"since before", Filter{Since: &earlier}, true},
		{"since after", Filter{Since: &later}, false},
	}

	for _, tt := range tests {
		if got := tt.filter.Matches(rec); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindNone, "none": KindNone, "sqlite": KindSQLite, "postgres": KindPostgres, "json": KindJSON} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("csv"); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, record *FetchRecord) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*FetchRecord, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}
