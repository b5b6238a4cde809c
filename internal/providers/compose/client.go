// Package compose provides the HTTP client for the video composition engine
// and the mapping from the engine's job-status vocabulary onto the
// pipeline's.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/blogcast/internal/types"
)

// DefaultTimeout bounds a single engine HTTP call.
const DefaultTimeout = 60 * time.Second

// Client talks to the composition engine REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Options configures the client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient constructs an engine client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("composition engine base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// SubmitRequest asks the engine to compose a final video from an ingested
// asset.
type SubmitRequest struct {
	AssetID     string `json:"asset_id"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Title       string `json:"title,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus is the engine's answer to a status check. The engine speaks its
// own vocabulary (queued/rendering/done/failed); use MapStatus to fold it
// onto the pipeline's.
type JobStatus struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MapStatus folds the engine's status vocabulary onto the pipeline's
// {pending, processing, complete, error}.
func MapStatus(engineStatus string) types.JobStatus {
	switch strings.ToLower(engineStatus) {
	case "queued":
		return types.JobStatusPending
	case "rendering", "running":
		return types.JobStatusProcessing
	case "done":
		return types.JobStatusComplete
	default:
		return types.JobStatusError
	}
}

// Submit creates one composition job and returns the engine-assigned job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.AssetID == "" {
		return "", fmt.Errorf("asset id is required")
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/compositions", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", &types.ResponseValidationError{
			Provider: "compose",
			Field:    "job_id",
			Message:  "required",
		}
	}
	return resp.JobID, nil
}

// GetStatus checks one composition job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	var resp JobStatus
	if err := c.do(ctx, http.MethodGet, "/v1/compositions/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		return nil, &types.ResponseValidationError{
			Provider: "compose",
			Field:    "status",
			Message:  "required",
		}
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &types.TransientError{Op: method + " " + path, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &types.TransientError{Op: "read " + path, Cause: err}
	}
	if resp.StatusCode >= 500 {
		return &types.TransientError{
			Op:    method + " " + path,
			Cause: fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("engine rejected %s %s: %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode engine response: %w", err)
		}
	}
	return nil
}
