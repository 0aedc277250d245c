// Package gateway holds typed clients for the patient, history and risk
// services behind the shared gateway. Every call carries a bearer credential.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abernathy/patientfront/internal/credential"
)

const maxResponseBytes = 4 << 20

// Client performs authenticated JSON calls against the gateway.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for per-call debug events.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a gateway client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL joins path onto the gateway base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// call sends in (if non-nil) as JSON and returns the raw response body.
// Any transport error or non-2xx status becomes a RemoteCallFailure.
func (c *Client) call(ctx context.Context, op, method, path string, cred credential.Credential, in interface{}) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, &RemoteCallFailure{Operation: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, &RemoteCallFailure{Operation: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", cred.Bearer())
	req.Header.Set("Accept", "application/json, text/plain")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("operation", op).Dur("latency", time.Since(start)).Msg("gateway call failed")
		return nil, &RemoteCallFailure{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("operation", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway call")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteCallFailure{Operation: op, Status: resp.StatusCode}
	}
	if err != nil {
		return nil, &RemoteCallFailure{Operation: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	return raw, nil
}

// callJSON is call followed by decoding the body into out. An empty body
// leaves out untouched.
func (c *Client) callJSON(ctx context.Context, op, method, path string, cred credential.Credential, in, out interface{}) error {
	raw, err := c.call(ctx, op, method, path, cred, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteCallFailure{Operation: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
