package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to an episodes server over HTTP.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	obs       *observer
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("episodes: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("episodes: base url must be http or https, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{base: u, http: hc, userAgent: cfg.userAgent, obs: obs}, nil
}

// SubmitIndex posts body to /episode/index and returns the server's acknowledgment.
func (c *Client) SubmitIndex(ctx context.Context, body io.Reader) (ack string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("submit_index", start, err) }()

	resp, err := c.do(ctx, http.MethodPost, "/episode/index", body, "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("episodes: read ack: %w", err)
	}
	return string(b), nil
}

// Index returns the published index list as raw JSON.
// errors.Is(err, ErrNotFound) reports that nothing is published.
func (c *Client) Index(ctx context.Context) (list json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	resp, err := c.do(ctx, http.MethodGet, "/index", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("episodes: read index: %w", err)
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("episodes: index response is not JSON")
	}
	return json.RawMessage(strings.TrimSpace(string(b))), nil
}

// IndexInto decodes the published index list into v.
func (c *Client) IndexInto(ctx context.Context, v any) error {
	raw, err := c.Index(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("episodes: decode index: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("episodes: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("episodes: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an *APIError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
