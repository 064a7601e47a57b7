// Package optimizer talks to the remote route optimizer over HTTP/JSON.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/routeviz/internal/history"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Optimizer is the subset of the remote protocol a run needs.
type Optimizer interface {
	Configure(ctx context.Context, req ConfigureRequest) error
	SetCities(ctx context.Context, req CitiesRequest) error
	Update(ctx context.Context, req UpdateRequest) (history.GenerationResult, error)
	Stop(ctx context.Context) error
}

// StatusError is returned when the optimizer answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: optimizer returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: optimizer returned status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Client is the HTTP implementation of Optimizer.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client for the optimizer at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the optimizer address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Configure pushes optimizer settings. The remote side resets its population.
func (c *Client) Configure(ctx context.Context, req ConfigureRequest) error {
	return c.do(ctx, "configure", http.MethodPost, "/api/configure", req, nil)
}

// SetCities uploads the point set and its anchors.
func (c *Client) SetCities(ctx context.Context, req CitiesRequest) error {
	return c.do(ctx, "set_cities", http.MethodPost, "/api/set_cities", req, nil)
}

// Update advances the optimizer by one generation and returns its best route.
func (c *Client) Update(ctx context.Context, req UpdateRequest) (history.GenerationResult, error) {
	var result history.GenerationResult
	if err := c.do(ctx, "update", http.MethodPost, "/api/update", req, &result); err != nil {
		return history.GenerationResult{}, err
	}
	return result, nil
}

// Stop asks the optimizer to stop evolving.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, "stop", http.MethodPost, "/api/stop", struct{}{}, nil)
}

// Cities returns the point set currently held by the optimizer.
func (c *Client) Cities(ctx context.Context) (CitiesResponse, error) {
	var resp CitiesResponse
	err := c.do(ctx, "cities", http.MethodGet, "/api/cities", nil, &resp)
	return resp, err
}

// CurrentState returns the optimizer's generation counter and best distance.
func (c *Client) CurrentState(ctx context.Context) (StateResponse, error) {
	var resp StateResponse
	err := c.do(ctx, "current_state", http.MethodGet, "/api/current_state", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	slog.Debug("Optimizer request",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, falling back to
// the raw text.
func errorMessage(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
