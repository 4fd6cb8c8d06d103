// Package httpds implements the HTTP transport used by HTTP sources: a GET
// with base and per-request headers, query parameters, optional
// authentication and optional TLS verification skipping.
//
// The client makes exactly one attempt per call. Non-2xx responses are
// returned as *StatusError carrying a snippet of the body.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxSnippet bounds how much of an error response body is kept.
const maxSnippet = 512

// Config configures the HTTP client.
//
// Zero values are given sensible defaults:
//   - Timeout: 30s
type Config struct {
	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// BaseHeaders are added to every request. Per-request headers take
	// precedence.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper. When nil, a default
	// *http.Transport is constructed from the TLS setting.
	Transport http.RoundTripper
}

// Client wraps an http.Client.
type Client struct {
	httpClient  *http.Client
	baseHeaders http.Header
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseHeaders: hdr,
	}
}

// Request describes a GET.
type Request struct {
	URL     string
	Query   url.Values  // merged into any query already present in URL
	Headers http.Header // override base headers
	Auth    Auth        // optional
}

// Response is a fully read response.
type Response struct {
	StatusCode  int
	ContentType string // media type without parameters, lowercased
	Body        []byte
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string // redacted, see Redact
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("httpds: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("httpds: GET %s: status %d: %s", e.URL, e.StatusCode, e.Snippet)
}

// Get performs the request and reads the whole body.
func (c *Client) Get(ctx context.Context, r Request) (*Response, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}
	u, err := BuildURL(r.URL, r.Query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.baseHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range r.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Auth != nil {
		r.Auth.Apply(req)
	}

	safe := Redact(u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = safe
		}
		return nil, fmt.Errorf("httpds: GET %s: %w", safe, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxSnippet))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        safe,
			Snippet:    strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpds: read body: %w", err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Body:        body,
	}, nil
}

// Redact returns raw with the query string and any password replaced, so
// tokens passed as parameters stay out of errors and logs.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	u.Fragment = ""
	return u.Redacted()
}

// BuildURL appends query to raw, keeping parameters already present.
func BuildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("httpds: parse url: %w", err)
	}
	if len(query) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// IsLineDelimited reports whether a media type denotes newline-delimited
// JSON.
func IsLineDelimited(mediaType string) bool {
	for _, s := range []string{"ndjson", "jsonlines", "json-lines", "jsonl"} {
		if strings.Contains(mediaType, s) {
			return true
		}
	}
	return false
}
