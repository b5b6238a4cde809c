package avatar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/blogcast/internal/types"
)

func TestSubmit_ReturnsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/videos", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Script)
		assert.Equal(t, "16:9", req.AspectRatio)

		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "key-123"})
	require.NoError(t, err)

	jobID, err := c.Submit(context.Background(), SubmitRequest{
		Script:      "hello world",
		Character:   "amelia",
		Voice:       "warm",
		AspectRatio: "16:9",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestSubmit_MissingJobIDFailsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), SubmitRequest{Script: "s"})
	var rve *types.ResponseValidationError
	require.ErrorAs(t, err, &rve)
	assert.Equal(t, "jobid", rve.Field)
}

func TestGetStatus_MapsVocabulary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/videos/job-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(JobStatus{Status: "rendering", Progress: 40})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	status, err := c.GetStatus(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusProcessing, MapStatus(status.Status))
}

func TestGetStatus_UnknownVocabularyFailsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "exploded"})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetStatus(context.Background(), "job-9")
	var rve *types.ResponseValidationError
	require.ErrorAs(t, err, &rve)
	assert.Equal(t, "status", rve.Field)
}

func TestListJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(listResponse{Jobs: []Job{
			{ID: "a", Script: "first script", Status: "complete", ResultURL: "https://cdn/a.mp4"},
			{ID: "b", Script: "second script", Status: "processing"},
		}})
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "first script", jobs[0].Script)
}

func TestDo_ServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetStatus(context.Background(), "job-1")
	assert.True(t, types.IsTransient(err), "5xx must be retryable, got %v", err)
}

func TestDo_ClientErrorsAreNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
}

func TestDo_ConnectionFailureIsTransient(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.ListJobs(context.Background())
	assert.True(t, types.IsTransient(err))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, types.JobStatusPending, MapStatus("queued"))
	assert.Equal(t, types.JobStatusProcessing, MapStatus("rendering"))
	assert.Equal(t, types.JobStatusProcessing, MapStatus("processing"))
	assert.Equal(t, types.JobStatusComplete, MapStatus("done"))
	assert.Equal(t, types.JobStatusComplete, MapStatus("complete"))
	assert.Equal(t, types.JobStatusError, MapStatus("failed"))
	assert.Equal(t, types.JobStatusError, MapStatus("gibberish"))
}
