// Package macross is a Go client for the macross-server REST API.
package macross

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("macross: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client provides a Go SDK for interacting with the macross-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new macross API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Optimize runs a grid search on the server and returns the stored run.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodPost, "/api/v1/optimize", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Backtest replays one window pair.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun fetches a stored run with its trials.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns lists stored runs, newest first. An empty symbol lists all.
func (c *Client) ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list RunList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Runs, nil
}

// Symbols lists symbols with cached bars.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var list SymbolList
	if err := c.do(ctx, http.MethodGet, "/api/v1/symbols", nil, &list); err != nil {
		return nil, err
	}
	return list.Symbols, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb ErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
