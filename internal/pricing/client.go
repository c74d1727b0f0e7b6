package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default HTTP configuration. Timeouts are kept short so a hung
// provider cannot starve the cascade.
const (
	DefaultTimeout   = 8 * time.Second
	defaultUserAgent = "snipetrader/1.0"
	maxBodyBytes     = 1 << 20
)

// Relay wraps target URLs in a CORS-relay indirection. A zero Relay
// passes targets through untouched.
type Relay struct {
	base string
}

// NewRelay builds a relay rooted at base, e.g.
// "https://api.allorigins.win/raw".
func NewRelay(base string) Relay {
	return Relay{base: base}
}

// Wrap returns the relayed form of target, or target itself for a zero
// relay.
func (r Relay) Wrap(target string) string {
	if r.base == "" {
		return target
	}
	return r.base + "?url=" + url.QueryEscape(target)
}

// Client is the shared HTTP GET/JSON transport for provider strategies.
type Client struct {
	http  *http.Client
	relay Relay
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRelay routes every request through a CORS relay.
func WithRelay(r Relay) ClientOption {
	return func(c *Client) {
		c.relay = r
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient builds a provider transport.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON issues a GET (through the relay when configured) and decodes
// the response body into out. Non-2xx statuses are errors.
func (c *Client) GetJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.relay.Wrap(target), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// Head issues a GET and reports only whether the endpoint answered with
// a 2xx, for connectivity probes.
func (c *Client) Head(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.relay.Wrap(target), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
