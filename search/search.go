// Package search provides the external knowledge-source collaborator.
package search

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

// Searcher executes one search query and returns a text result.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Client queries an HTTP search endpoint expected to answer
// GET /search?q=... with {"result": "..."}.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Searcher = (*Client)(nil)

// NewClient creates a new search client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResponse struct {
	Result string `json:"result"`
}

// Search issues the query. Errors here are recoverable for the turn: the
// research worker records them in its output instead of failing.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("search source is not configured")
	}

	u := c.baseURL + "/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search source error [%d]: %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		// Plain-text sources are acceptable.
		return string(body), nil
	}
	return sr.Result, nil
}
