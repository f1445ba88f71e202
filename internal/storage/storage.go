// Package storage defines the fetch log: an operational record of every
// provider call made while generating reports. Reports themselves are never
// persisted.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies a provider call.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected" // short-circuited by an open breaker
)

// FetchRecord represents the outcome of a single provider call.
type FetchRecord struct {
	ID        string        `json:"id"`
	ReportID  string        `json:"reportId"`
	Provider  string        `json:"provider"`
	Target    string        `json:"target"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Filter allows querying for specific FetchRecords.
type Filter struct {
	ReportID string
	Provider string
	Outcome  Outcome
	Since    *time.Time
	Limit    int
	Offset   int
}

// Matches reports whether r passes the filter's field conditions. Limit and
// Offset are not considered.
func (f Filter) Matches(r *FetchRecord) bool {
	if f.ReportID != "" && r.ReportID != f.ReportID {
		return false
	}
	if f.Provider != "" && r.Provider != f.Provider {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying fetch records.
type Backend interface {
	Save(ctx context.Context, record *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}

// Kind names a backend implementation in configuration.
type Kind string

const (
	KindNone     Kind = ""
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindJSON     Kind = "json"
)

// ParseKind validates a configured backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindNone, KindSQLite, KindPostgres, KindJSON:
		return k, nil
	case "none":
		return KindNone, nil
	default:
		return "", fmt.Errorf("storage: unknown backend %q", s)
	}
}
