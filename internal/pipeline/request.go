package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FranksOps/sitescope/internal/cache"
)

// Report types.
const (
	TypeDomain  = "domain"
	TypeKeyword = "keyword"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks for one report.
type Request struct {
	Domain  string
	Keyword string
	// Type is "domain" or "keyword"; empty means domain.
	Type string
	// Credential is forwarded to the search console provider.
	Credential string
}

// Normalize trims the request, resolves its type and validates it. A type
// whose field is empty falls back to the other type when that field is set.
func (r Request) Normalize() (Request, error) {
	r.Domain = strings.TrimSpace(r.Domain)
	r.Keyword = strings.TrimSpace(r.Keyword)
	r.Credential = strings.TrimSpace(r.Credential)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))

	if r.Domain == "" && r.Keyword == "" {
		return r, fmt.Errorf("%w: Domain or keyword is required", ErrInvalidRequest)
	}

	switch r.Type {
	case "", TypeDomain:
		r.Type = TypeDomain
		if r.Domain == "" {
			r.Type = TypeKeyword
		}
	case TypeKeyword:
		if r.Keyword == "" {
			r.Type = TypeDomain
		}
	default:
		return r, fmt.Errorf("%w: type must be %q or %q", ErrInvalidRequest, TypeDomain, TypeKeyword)
	}
	return r, nil
}

// Query is the cache-relevant query string: the domain for domain reports,
// the keyword otherwise.
func (r Request) Query() string {
	if r.Type == TypeKeyword {
		return r.Keyword
	}
	return r.Domain
}

// CacheKey is the report cache key for a normalized request.
func (r Request) CacheKey() string {
	return cache.ReportKey(r.Type, r.Query())
}
