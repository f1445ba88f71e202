package pagespeed

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

const labOnly = `{
  "lighthouseResult": {
    "categories": {"performance": {"score": 0.87}},
    "audits": {
      "largest-contentful-paint": {"numericValue": 2100.5},
      "cumulative-layout-shift": {"numericValue": 0.02}
    }
  }
}`

const withField = `{
  "lighthouseResult": {
    "categories": {"performance": {"score": 0.42}},
    "audits": {
      "largest-contentful-paint": {"numericValue": 5200},
      "first-input-delay": {"numericValue": 40},
      "cumulative-layout-shift": {"numericValue": 0.3}
    }
  },
  "loadingExperience": {
    "metrics": {
      "LARGEST_CONTENTFUL_PAINT_MS": {"percentile": 3100, "category": "AVERAGE"},
      "FIRST_INPUT_DELAY_MS": {"percentile": 120, "category": "AVERAGE"},
      "CUMULATIVE_LAYOUT_SHIFT_SCORE": {"percentile": 12, "category": "AVERAGE"}
    }
  }
}`

func newTestClient(t *testing.T, body string, status int, apiKey string) (*Client, *http.Request) {
	t.Helper()
	var last http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	hc, err := httpclient.New(httpclient.Config{})
	require.NoError(t, err)
	return New(Config{Endpoint: ts.URL, APIKey: apiKey}, hc, nil), &last
}

func TestAnalyze_LabData(t *testing.T) {
	c, req := newTestClient(t, labOnly, http.StatusOK, "key")

	res, err := c.Analyze(context.Background(), "https://example.com", Mobile)
	require.NoError(t, err)

	q := req.URL.Query()
	assert.Equal(t, "https://example.com", q.Get("url"))
	assert.Equal(t, "key", q.Get("key"))
	assert.Equal(t, "mobile", q.Get("strategy"))
	assert.Equal(t, "PERFORMANCE", q.Get("category"))

	assert.Equal(t, "mobile", res.Strategy)
	assert.InDelta(t, 0.87, res.Score, 1e-9)
	assert.InDelta(t, 2100.5, res.LCPMillis, 1e-9)
	assert.Zero(t, res.FIDMillis)
	assert.InDelta(t, 0.02, res.CLS, 1e-9)
	assert.Zero(t, res.FieldLCPMillis)
}

func TestAnalyze_FieldData(t *testing.T) {
	c, _ := newTestClient(t, withField, http.StatusOK, "key")

	res, err := c.Analyze(context.Background(), "https://example.com", Desktop)
	require.NoError(t, err)

	assert.Equal(t, "desktop", res.Strategy)
	assert.InDelta(t, 3100, res.FieldLCPMillis, 1e-9)
	assert.InDelta(t, 120, res.FieldFIDMillis, 1e-9)
	assert.InDelta(t, 0.12, res.FieldCLS, 1e-9)
}

func TestAnalyze_NoKey(t *testing.T) {
	c, _ := newTestClient(t, labOnly, http.StatusOK, "")

	_, err := c.Analyze(context.Background(), "https://example.com", Mobile)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestAnalyze_Errors(t *testing.T) {
	c, _ := newTestClient(t, `{"error":{"code":400}}`, http.StatusBadRequest, "key")
	_, err := c.Analyze(context.Background(), "https://example.com", Mobile)
	var se *httpclient.StatusError
	assert.True(t, errors.As(err, &se))

	c, _ = newTestClient(t, `{"lighthouseResult":{}}`, http.StatusOK, "key")
	_, err = c.Analyze(context.Background(), "https://example.com", Mobile)
	assert.ErrorContains(t, err, "no performance score")
}
