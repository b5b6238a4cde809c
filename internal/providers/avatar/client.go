// Package avatar provides the HTTP client for the avatar-video provider:
// job submission, status polling and job listing. Responses are validated
// before use so malformed provider payloads fail with a named field path.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/blogcast/internal/types"
)

// DefaultTimeout bounds a single provider HTTP call.
const DefaultTimeout = 30 * time.Second

// Client talks to the avatar-video provider REST API.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	validate *validator.Validate
}

// Options configures the client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient constructs a provider client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("avatar provider base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   opts.APIKey,
		http:     httpClient,
		validate: validator.New(),
	}, nil
}

// SubmitRequest describes one avatar-video generation job.
type SubmitRequest struct {
	Script      string `json:"script"`
	Character   string `json:"character"`
	Voice       string `json:"voice"`
	AspectRatio string `json:"aspect_ratio"`
}

type submitResponse struct {
	JobID string `json:"job_id" validate:"required"`
}

// JobStatus is the provider's answer to a status poll.
type JobStatus struct {
	Status       string `json:"status" validate:"required,oneof=queued pending processing rendering done complete failed error"`
	ResultURL    string `json:"result_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Progress     int    `json:"progress,omitempty"`
}

// Job is one entry of the provider's job listing, used for duplicate
// detection before submitting new paid work.
type Job struct {
	ID        string `json:"id" validate:"required"`
	Script    string `json:"script"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
}

type listResponse struct {
	Jobs []Job `json:"jobs"`
}

// MapStatus folds the provider's status vocabulary onto the pipeline's.
func MapStatus(providerStatus string) types.JobStatus {
	switch strings.ToLower(providerStatus) {
	case "queued", "pending":
		return types.JobStatusPending
	case "processing", "rendering":
		return types.JobStatusProcessing
	case "done", "complete":
		return types.JobStatusComplete
	default:
		return types.JobStatusError
	}
}

// Submit creates one generation job and returns the provider-assigned job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/videos", req, &resp); err != nil {
		return "", err
	}
	if err := c.validateResponse("submit", &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// GetStatus polls one job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	var resp JobStatus
	if err := c.do(ctx, http.MethodGet, "/v1/videos/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	if err := c.validateResponse("status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs returns the provider's recent jobs.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/v1/videos", nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Jobs {
		if err := c.validateResponse("list", &resp.Jobs[i]); err != nil {
			return nil, err
		}
	}
	return resp.Jobs, nil
}

// do executes one JSON round trip. Network failures and 5xx responses are
// wrapped as transient; 4xx responses are not retryable.
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
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

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
			Cause: fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider rejected %s %s: %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

// validateResponse turns validator violations into field-path errors.
func (c *Client) validateResponse(op string, v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return &types.ResponseValidationError{
			Provider: "avatar",
			Field:    strings.ToLower(first.Field()),
			Message:  op + " response failed " + first.Tag() + " constraint",
		}
	}
	return fmt.Errorf("failed to validate %s response: %w", op, err)
}
