// Package assets provides the asset-catalog collaborator boundary: resolving
// downloaded media into processable assets and tagging completed provider
// jobs for future deduplication lookups.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/blogcast/internal/types"
)

// Catalog is the capability the pipeline needs from the asset system.
type Catalog interface {
	// Resolve returns the asset id already associated with sourceURL, or ""
	// when the catalog does not know it.
	Resolve(ctx context.Context, sourceURL string) (string, error)
	// Ingest stores media bytes under name and returns the new asset id.
	Ingest(ctx context.Context, name string, data []byte) (string, error)
	// RegisterJob tags an asset-producing provider job so a later run can
	// find its output again.
	RegisterJob(ctx context.Context, jobID, resultURL string) error
}

// Client is the HTTP implementation of Catalog.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOptions configures the catalog client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient constructs a catalog client.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("asset catalog base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

type resolveResponse struct {
	AssetID string `json:"asset_id"`
}

// Resolve looks up sourceURL; unknown URLs return ("", nil).
func (c *Client) Resolve(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/assets/resolve?url="+url.QueryEscape(sourceURL), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &types.TransientError{Op: "resolve asset", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset catalog returned %d", resp.StatusCode)
	}
	var out resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode resolve response: %w", err)
	}
	return out.AssetID, nil
}

// Ingest uploads media bytes and returns the assigned asset id.
func (c *Client) Ingest(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("asset data is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/assets?name="+url.QueryEscape(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &types.TransientError{Op: "ingest asset", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("asset catalog rejected ingest: %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out resolveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode ingest response: %w", err)
	}
	if out.AssetID == "" {
		return "", &types.ResponseValidationError{Provider: "catalog", Field: "asset_id", Message: "required"}
	}
	return out.AssetID, nil
}

// RegisterJob tags a completed provider job in the catalog.
func (c *Client) RegisterJob(ctx context.Context, jobID, resultURL string) error {
	payload, err := json.Marshal(map[string]string{"job_id": jobID, "result_url": resultURL})
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/assets/jobs", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &types.TransientError{Op: "register job", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("asset catalog rejected job registration: %d", resp.StatusCode)
	}
	return nil
}

var _ Catalog = (*Client)(nil)
