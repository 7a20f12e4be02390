package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Response is the trimmed result of an HTTP exchange. Non-2xx statuses are
// carried here rather than returned as errors; callers decide whether a
// status is terminal.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// CallOptions adjusts a single call. A per-call proxy takes precedence
// over the manager's configured proxy.
type CallOptions struct {
	ProxyURL string
}

// Client issues requests through the pooled session with the HTTP-layer
// retry tier: statuses 429/500/502/503/504 and transport errors are
// retried with doubling backoff, honoring Retry-After when present.
type Client struct {
	manager *Manager
	logger  *slog.Logger
}

func NewClient(m *Manager, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{manager: m, logger: logger}
}

func (c *Client) Post(ctx context.Context, rawURL string, header http.Header, body []byte, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, http.MethodPost, rawURL, header, body, timeout, CallOptions{})
}

func (c *Client) Get(ctx context.Context, rawURL string, header http.Header, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, header, nil, timeout, CallOptions{})
}

func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header, body []byte, timeout time.Duration, opts CallOptions) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	httpClient, release, err := c.pick(opts)
	if err != nil {
		return nil, err
	}
	defer release()

	cfg := c.manager.Config()
	backoff := cfg.InitialBackoff
	var lastResp *Response
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := c.once(ctx, httpClient, method, rawURL, header, body, timeout)
		if err == nil && !retryableStatus(resp.Status) {
			return resp, nil
		}
		lastResp, lastErr = resp, err

		if attempt == cfg.MaxRetries {
			break
		}
		wait := backoff
		if resp != nil {
			if ra := retryAfter(resp.Header); ra > 0 {
				wait = ra
			}
		}
		c.logger.Warn("retrying request",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}

	if lastErr != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", cfg.MaxRetries, lastErr)
	}
	// Retryable status persisted through the budget; surface it to the
	// caller rather than inventing an error class here.
	return lastResp, nil
}

// pick selects the pooled client, or a one-shot client when a per-call
// proxy overrides the configured one. One-shot clients own a private
// transport, so their connections are released once the call finishes.
func (c *Client) pick(opts CallOptions) (*http.Client, func(), error) {
	if opts.ProxyURL == "" {
		return c.manager.Client(), func() {}, nil
	}
	u, err := url.Parse(opts.ProxyURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse per-call proxy url: %w", err)
	}
	one := c.manager.OneShot(u)
	return one, one.CloseIdleConnections, nil
}

func (c *Client) once(ctx context.Context, httpClient *http.Client, method, rawURL string, header http.Header, body []byte, timeout time.Duration) (*Response, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
