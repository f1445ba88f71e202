package pagerank

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FranksOps/sitescope/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand always returns the same value, clamped to the requested range.
type fixedRand int

func (f fixedRand) IntN(n int) int { return min(int(f), n-1) }

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string, rnd Rand) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	hc, err := httpclient.New(httpclient.Config{})
	require.NoError(t, err)
	return New(Config{Endpoint: ts.URL, APIKey: apiKey}, hc, rnd, nil)
}

func TestRank_FromAPI(t *testing.T) {
	var gotKey, gotDomain string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("API-OPR")
		gotDomain = r.URL.Query().Get("domains[]")
		_, _ = io.WriteString(w, `{"status_code":200,"response":[{"domain":"example.com","page_rank_integer":7,"page_rank_decimal":6.52}]}`)
	}, "secret", fixedRand(0))

	rank, err := c.Rank(context.Background(), "https://Example.com/about")
	require.NoError(t, err)
	assert.Equal(t, 7, rank)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "example.com", gotDomain)
}

func TestRank_EmptyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":[]}`)
	}, "secret", fixedRand(0))

	_, err := c.Rank(context.Background(), "example.com")
	assert.True(t, errors.Is(err, ErrNoRank))
}

func TestRank_EstimatesWithoutKeyOrOnFailure(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusForbidden)
	}, "", fixedRand(5))

	rank, err := c.Rank(context.Background(), "example.com")
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 65, rank)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "secret", fixedRand(5))

	rank, err = c.Rank(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, 63, rank)
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		domain string
		rnd    fixedRand
		want   int
	}{
		{"www.google.com", 3, 93},
		{"en.wikipedia.org", 9, 99},
		{"acme.com", 0, 60},
		{"acme.net", 0, 56},
		{"acme.io", 0, 50},
		{"acme.co.uk", 0, 50},
		// 25 characters: 10 over the limit.
		{"averyveryverylongname.com", 0, 40},
		{"averyveryverylongname.com", 19, 59},
		{"an-absurdly-long-domain-name-for-testing-the-floor.info", 0, 1},
	}
	for _, tt := range tests {
		c := New(Config{}, nil, tt.rnd, nil)
		assert.Equal(t, tt.want, c.Estimate(tt.domain), tt.domain)
	}
}

func TestEstimate_StaysInRange(t *testing.T) {
	for r := 0; r < 20; r++ {
		c := New(Config{}, nil, fixedRand(r), nil)
		for _, d := range []string{"a.com", "google.com", "x.org", "some-very-long-domain-name-here.net"} {
			got := c.Estimate(d)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, 100)
		}
	}
}
