package episodes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL+"/", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"localhost:8000", "ftp://example.com", "://"} {
		if _, err := New(u); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}

func TestSubmitIndex(t *testing.T) {
	var gotBody, gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, "ok")
	})

	ack, err := c.SubmitIndex(context.Background(), strings.NewReader(`{"ep":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != "ok" {
		t.Errorf("ack = %q, want ok", ack)
	}
	if gotMethod != http.MethodPost || gotPath != "/episode/index" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody != `{"ep":1}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "[1,2,3]\n")
	})

	raw, err := c.Index(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "[1,2,3]" {
		t.Errorf("raw = %s", raw)
	}

	var list []int
	if err := c.IndexInto(context.Background(), &list); err != nil {
		t.Fatalf("IndexInto: %v", err)
	}
	if len(list) != 3 || list[2] != 3 {
		t.Errorf("list = %v", list)
	}
}

func TestIndex_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"not found", http.StatusNotFound, `{"code":"index_not_found","message":"index not found"}`, ErrNotFound},
		{"unavailable", http.StatusServiceUnavailable, `{"code":"store_unavailable","message":"store unavailable"}`, ErrUnavailable},
		{"internal", http.StatusInternalServerError, `{"code":"internal_error","message":"internal error"}`, nil},
		{"no body", http.StatusBadGateway, ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Index(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.status)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("expected errors.Is(%v)", tt.sentinel)
			}
			if tt.sentinel == nil && (errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)) {
				t.Errorf("unexpected sentinel match for %v", err)
			}
		})
	}
}

func TestIndex_NotJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})
	if _, err := c.Index(context.Background()); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		healthy bool
	}{
		{"ok", http.StatusOK, `{"status":"ok","checks":{"database":"ok"}}`, true},
		{"degraded", http.StatusServiceUnavailable, `{"status":"degraded","checks":{"database":"error"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			hs, err := c.Health(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hs.Healthy() != tt.healthy {
				t.Errorf("Healthy() = %v, want %v", hs.Healthy(), tt.healthy)
			}
			if hs.Checks["database"] == "" {
				t.Error("expected database check")
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	var ua string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		_, _ = io.WriteString(w, "ok")
	}, WithUserAgent("episodectl/test"))

	if _, err := c.SubmitIndex(context.Background(), strings.NewReader("")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ua != "episodectl/test" {
		t.Errorf("user agent = %q", ua)
	}
}

func TestPrometheus_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"index_not_found","message":"index not found"}`)
	}, WithPrometheus(reg))

	_, _ = c.Index(context.Background())
	_, _ = c.Index(context.Background())

	got := testutil.ToFloat64(c.obs.metrics.requests.WithLabelValues("index", "not_found"))
	if got != 2 {
		t.Errorf("requests{index,not_found} = %v, want 2", got)
	}

	// A second client on the same registry reuses the collectors.
	if _, err := New("http://localhost:1", WithPrometheus(reg)); err != nil {
		t.Fatalf("second client: %v", err)
	}
}

type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	r.Header.Set("X-Test-Transport", "1")
	return c.next.RoundTrip(r)
}

func TestWithHTTPClient(t *testing.T) {
	var header string
	tr := &countingTransport{next: http.DefaultTransport}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Test-Transport")
		_, _ = io.WriteString(w, "[]")
	}, WithHTTPClient(&http.Client{Transport: tr}), WithTimeout(time.Nanosecond))

	// The supplied client's zero Timeout wins over WithTimeout.
	if _, err := c.Index(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.calls.Load() != 1 {
		t.Errorf("transport calls = %d, want 1", tr.calls.Load())
	}
	if header != "1" {
		t.Error("request did not go through the supplied client")
	}
}

func TestWithTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, "[]")
	}, WithTimeout(20*time.Millisecond))

	_, err := c.Index(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("timeout reported as API error: %v", err)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var status atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		switch code {
		case http.StatusOK:
			_, _ = io.WriteString(w, "[1]")
		case http.StatusNotFound:
			_, _ = io.WriteString(w, `{"code":"index_not_found","message":"index not found"}`)
		default:
			_, _ = io.WriteString(w, `{"code":"store_unavailable","message":"store unavailable"}`)
		}
	}, WithLogger(logger))

	tests := []struct {
		name   string
		status int
		want   []string
	}{
		{"success logs debug", http.StatusOK, []string{"level=DEBUG", "request completed", "op=index", "outcome=ok"}},
		{"missing index is not a failure", http.StatusNotFound, []string{"level=DEBUG", "outcome=not_found"}},
		{"unavailable logs warn", http.StatusServiceUnavailable, []string{"level=WARN", "request failed", "op=index", "store_unavailable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			status.Store(int32(tt.status))
			_, _ = c.Index(context.Background())

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
		})
	}
}

func TestWithoutLogger_NoPanic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.Index(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
