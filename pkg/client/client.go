// Package client is the JSON transport used to reach the remote entity API
// and option endpoints. GET responses are cached for a TTL and concurrent
// identical GETs share a single request; any mutation clears the cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long GET responses are reused.
const DefaultCacheTTL = 5 * time.Minute

// CorrelationHeader carries a per-request id.
const CorrelationHeader = "X-Correlation-ID"

// StatusError reports a non-2xx response. Message is the response body, or
// the status text when the body is empty.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: status %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL prefixes every relative path.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithCacheTTL sets the GET cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// Client performs JSON requests.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	headers http.Header
	now     func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		ttl:     DefaultCacheTTL,
		headers: make(http.Header),
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// URL resolves path against the base URL. Absolute URLs pass through.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || c.baseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Get decodes the JSON served at path into out, using the cache.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	body, err := c.getBytes(ctx, c.URL(path))
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Do performs a request with a JSON body and decodes the JSON response into
// out when out is non-nil. GET requests go through Get; other methods
// invalidate the cache.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	method = strings.ToUpper(method)
	if method == "" || method == http.MethodGet {
		return c.Get(ctx, path, out)
	}
	defer c.Invalidate()

	payload, err := c.send(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	return decode(payload, out)
}

// FetchOptions returns the JSON array served at url. Objects wrapping the
// array under "data", "results" or "items" are unwrapped.
func (c *Client) FetchOptions(ctx context.Context, url string) ([]any, error) {
	var payload any
	if err := c.Get(ctx, url, &payload); err != nil {
		return nil, err
	}
	items := extractResults(payload)
	if items == nil {
		return nil, fmt.Errorf("client: %s did not return an array", url)
	}
	return items, nil
}

// Invalidate drops every cached GET response.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

func (c *Client) getBytes(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.cached(url); ok {
		return body, nil
	}
	result, err, _ := c.group.Do(url, func() (any, error) {
		body, err := c.send(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		c.store(url, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) cached(url string) ([]byte, bool) {
	if c.ttl == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[url]
	if !ok || c.now().After(entry.expires) {
		delete(c.cache, url)
		return nil, false
	}
	return entry.body, true
}

func (c *Client) store(url string, body []byte) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[url] = cacheEntry{body: body, expires: c.now().Add(c.ttl)}
}

func (c *Client) send(ctx context.Context, method, url string, body any) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("client: context is required")
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("client: request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CorrelationHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(payload))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: message}
	}
	return payload, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("client: decode: %w", err)
	}
	return nil
}

func extractResults(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"data", "results", "items"} {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
	}
	return nil
}
