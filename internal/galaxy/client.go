// Package galaxy is a small client for the parts of the Galaxy REST API the
// startup sequence needs (histories, history contents, dataset metadata),
// plus the connection resolver that finds a reachable Galaxy from inside the
// container.
package galaxy

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

// =============================================================================
// API TYPES
// =============================================================================

// History is the subset of /api/histories/{id} used here.
type History struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HistoryItem is one entry of /api/histories/{id}/contents.
type HistoryItem struct {
	ID        string `json:"id"`
	HID       int    `json:"hid"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Deleted   bool   `json:"deleted"`
	Visible   bool   `json:"visible"`
	State     string `json:"state"`
}

// Dataset is the subset of /api/datasets/{id} used here.
type Dataset struct {
	ID          string `json:"id"`
	HID         int    `json:"hid"`
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	GenomeBuild string `json:"genome_build"`
	FileSize    int64  `json:"file_size"`
	State       string `json:"state"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("galaxy returned status %d for %s: %s", e.StatusCode, e.Path, e.Body)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one Galaxy base URL with one API key.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client. A nil httpClient gets a 30s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

// BaseURL returns the URL this client was validated against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// History fetches a single history.
func (c *Client) History(ctx context.Context, historyID string) (*History, error) {
	var h History
	if err := c.get(ctx, "/api/histories/"+url.PathEscape(historyID), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// HistoryContents lists the datasets of a history.
func (c *Client) HistoryContents(ctx context.Context, historyID string) ([]HistoryItem, error) {
	var items []HistoryItem
	if err := c.get(ctx, "/api/histories/"+url.PathEscape(historyID)+"/contents", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Dataset fetches dataset metadata.
func (c *Client) Dataset(ctx context.Context, datasetID string) (*Dataset, error) {
	var d Dataset
	if err := c.get(ctx, "/api/datasets/"+url.PathEscape(datasetID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("galaxy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
