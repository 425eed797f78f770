// Package remote implements the upstream BI provider client used for dataset
// refreshes and catalog sync.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"embedgate.io/internal/catalog"
	"embedgate.io/internal/ids"
	"embedgate.io/internal/refresh"
)

const defaultTimeout = 30 * time.Second

// Client wraps the provider REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	_ refresh.Upstream   = (*Client)(nil)
	_ catalog.PageSource = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the default timeout-bounded client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a provider client with sensible defaults.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("upstream base url is required")
	}
	c := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

// Refresh triggers a dataset refresh. The provider answers 202 with either a
// JSON body or only a request-id header; both forms produce a handle.
func (c *Client) Refresh(ctx context.Context, workspaceID, datasetID string) (refresh.Handle, error) {
	path := fmt.Sprintf("/v1.0/workspaces/%s/datasets/%s/refreshes", workspaceID, datasetID)
	body, header, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return refresh.Handle{}, err
	}

	handle := refresh.Handle{RequestedAt: time.Now().UTC()}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &handle); err != nil {
			return refresh.Handle{}, fmt.Errorf("decode refresh response: %w", err)
		}
	}
	if handle.ID == "" {
		handle.ID = header.Get("X-Request-Id")
	}
	if handle.ID == "" {
		handle.ID = ids.New()
	}
	if handle.RequestedAt.IsZero() {
		handle.RequestedAt = time.Now().UTC()
	}
	return handle, nil
}

// ListRefreshHistory returns the provider's refresh history for a dataset.
func (c *Client) ListRefreshHistory(ctx context.Context, workspaceID, datasetID string) ([]refresh.Record, error) {
	path := fmt.Sprintf("/v1.0/workspaces/%s/datasets/%s/refreshes", workspaceID, datasetID)
	body, _, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Value []refresh.Record `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode refresh history: %w", err)
	}
	return payload.Value, nil
}

// ListReportPages lists the pages of an upstream report for catalog sync.
func (c *Client) ListReportPages(ctx context.Context, upstreamReportID string) ([]catalog.SourcePage, error) {
	path := fmt.Sprintf("/v1.0/reports/%s/pages", upstreamReportID)
	body, _, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Value []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
			Order       int    `json:"order"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode report pages: %w", err)
	}
	pages := make([]catalog.SourcePage, 0, len(payload.Value))
	for _, p := range payload.Value {
		pages = append(pages, catalog.SourcePage{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Order:       p.Order,
		})
	}
	return pages, nil
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, resp.Header, nil
}
