// Package api is the client side of the agent platform's REST interface.
// Every method issues exactly one HTTP request; nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentchat/internal/logger"
	"agentchat/internal/metrics"
	"agentchat/internal/models"

	"go.uber.org/zap"
)

// Client talks to the backend rooted at baseURL (for example
// http://localhost:8000/api).
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithResponseHeaderTimeout bounds how long the client waits for the backend
// to start answering. Streaming bodies are not limited by it.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*http.Transport); ok && d > 0 {
			t.ResponseHeaderTimeout = d
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newDefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// http.Client.Timeout stays unset; streaming responses are long-lived and
// callers bound requests with contexts.
func newDefaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	return &http.Client{Transport: transport}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// send performs req and returns the response when it is 2xx. Any other
// outcome is converted to a TransportError or RequestError and recorded.
func (c *Client) send(op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(op, "error").Inc()
		c.log.Warn("backend request failed",
			zap.String("op", op),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return nil, &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}

	metrics.APIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debug("backend request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &RequestError{
			Status: resp.StatusCode,
			Detail: parseDetail(body),
			Method: req.Method,
			Path:   req.URL.Path,
		}
	}
	return resp, nil
}

// doJSON sends body (when non-nil) as JSON and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// Health reports backend and dependency status.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var h models.Health
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
