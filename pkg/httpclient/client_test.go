package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := Config{
		Timeout: 10 * time.Millisecond,
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err = client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1" {
			http.Redirect(w, r, "/2", http.StatusFound)
			return
		}
		if r.URL.Path == "/2" {
			http.Redirect(w, r, "/3", http.StatusFound)
			return
		}
		if r.URL.Path == "/3" {
			w.WriteHeader(http.StatusOK)
			return
		}
	}))
	defer ts.Close()

	// Test default redirect limit
	cfg := Config{
		MaxRedirects: 1,
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	_, err = client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected redirect limit error")
	}

	// Test no redirects
	cfgNoRedir := Config{
		MaxRedirects: -1,
	}
	clientNoRedir, _ := New(cfgNoRedir)
	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	resp, err := clientNoRedir.Do(context.Background(), req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302 StatusFound, got %d", resp.StatusCode)
	}
}

func TestClient_Cookies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "sitescope", Value: "test"})
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path == "/check" {
			c, err := r.Cookie("sitescope")
			if err != nil || c.Value != "test" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
	}))
	defer ts.Close()

	cfg := Config{
		UseCookieJar: true,
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req1, _ := http.NewRequest(http.MethodGet, ts.URL+"/set", nil)
	resp1, err := client.Do(context.Background(), req1)
	if err != nil {
		t.Fatalf("unexpected error on /set: %v", err)
	}
	resp1.Body.Close()

	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/check", nil)
	resp2, err := client.Do(context.Background(), req2)
	if err != nil {
		t.Fatalf("unexpected error on /check: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK from /check, got %d. Cookies not persisted?", resp2.StatusCode)
	}
}

func TestClient_Context(t *testing.T) {
	cfg := Config{}
	client, _ := New(cfg)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)

	// Should fail with a typed error containing "context cannot be nil"
	_, err := client.Do(nil, req)
	if err == nil || err.Error() != "httpclient: context cannot be nil" {
		t.Errorf("expected nil context error, got %v", err)
	}

	// Should honor context cancellation
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req2, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err = client.Do(ctx, req2)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestClient_UserAgent(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.UserAgent())
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, _ := New(Config{UserAgent: "SiteScope/1.0"})

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	req2, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	req2.Header.Set("User-Agent", "custom")
	resp, err = client.Do(context.Background(), req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(got) != 2 || got[0] != "SiteScope/1.0" || got[1] != "custom" {
		t.Errorf("unexpected user agents: %v", got)
	}
}

func TestClient_GetJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-OPR") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad key"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"example.com","rank":42}`)
	}))
	defer ts.Close()

	client, _ := New(Config{})

	var out struct {
		Name string `json:"name"`
		Rank int    `json:"rank"`
	}
	if err := client.GetJSON(context.Background(), ts.URL, http.Header{"API-OPR": {"secret"}}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "example.com" || out.Rank != 42 {
		t.Errorf("unexpected decoded body: %+v", out)
	}

	err := client.GetJSON(context.Background(), ts.URL, nil, &out)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Body != `{"error":"bad key"}` {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestClient_PostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	client, _ := New(Config{})

	in := map[string]int{"rowLimit": 25}
	var out map[string]int
	if err := client.PostJSON(context.Background(), ts.URL, nil, in, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["rowLimit"] != 25 {
		t.Errorf("expected echoed body, got %v", out)
	}

	// A nil out discards the body.
	if err := client.PostJSON(context.Background(), ts.URL, nil, in, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
