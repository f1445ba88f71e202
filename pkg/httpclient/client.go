package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBody bounds how much of a failed response body is kept in a StatusError.
const maxErrorBody = 512

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// UserAgent is sent on every request that does not set its own.
	UserAgent string
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport http.RoundTripper
}

// StatusError is returned by the JSON helpers when the upstream answers with
// a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpclient: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("httpclient: unexpected status %s: %s", e.Status, e.Body)
}

// Client wraps a standard http.Client to provide configurable timeouts,
// redirect policies, and cookie management.
type Client struct {
	*http.Client
	userAgent string
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	// Setup custom redirect policy
	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		// Don't follow any redirects if max < 0
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, userAgent: cfg.UserAgent}, nil
}

// Do executes an HTTP request. The provided context.Context should control
// the overarching request timeout/cancellation independent of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	// Always clone the request with the provided context
	reqWithCtx := req.Clone(ctx)
	if c.userAgent != "" && reqWithCtx.Header.Get("User-Agent") == "" {
		reqWithCtx.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Accept", "application/json")
	return c.doJSON(ctx, req, out)
}

// PostJSON encodes body as JSON, POSTs it and decodes a 2xx JSON body into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: encode body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bytes.TrimSpace(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

func copyHeader(dst, src http.Header) {
	for k, vals := range src {
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
}
