package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/providers/avatar"
	"github.com/jonathan/blogcast/internal/types"
)

type stubAvatarClient struct {
	submitID    string
	submitErr   error
	submitCalls int
	lastSubmit  avatar.SubmitRequest

	statuses    []*avatar.JobStatus
	statusErrs  []error
	statusCalls int
	lastJobID   string

	jobs      []avatar.Job
	listErr   error
	listCalls int
}

func (s *stubAvatarClient) Submit(_ context.Context, req avatar.SubmitRequest) (string, error) {
	s.submitCalls++
	s.lastSubmit = req
	return s.submitID, s.submitErr
}

func (s *stubAvatarClient) GetStatus(_ context.Context, jobID string) (*avatar.JobStatus, error) {
	s.lastJobID = jobID
	i := s.statusCalls
	s.statusCalls++
	if i < len(s.statusErrs) && s.statusErrs[i] != nil {
		return nil, s.statusErrs[i]
	}
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i], nil
}

func (s *stubAvatarClient) ListJobs(context.Context) ([]avatar.Job, error) {
	s.listCalls++
	return s.jobs, s.listErr
}

type stubCatalog struct {
	resolveID  string
	resolveErr error
	ingestID   string
	ingestErr  error
	ingested   []string
	registered map[string]string
}

func (s *stubCatalog) Resolve(context.Context, string) (string, error) {
	return s.resolveID, s.resolveErr
}

func (s *stubCatalog) Ingest(_ context.Context, name string, _ []byte) (string, error) {
	s.ingested = append(s.ingested, name)
	return s.ingestID, s.ingestErr
}

func (s *stubCatalog) RegisterJob(_ context.Context, jobID, resultURL string) error {
	if s.registered == nil {
		s.registered = map[string]string{}
	}
	s.registered[jobID] = resultURL
	return nil
}

func avatarPipeline() *types.PipelineContext {
	now := time.Unix(1000, 0)
	return &types.PipelineContext{
		ID:           "pl-1",
		CurrentState: types.StateAvatarGenerating,
		Item:         &types.BlogItem{Title: "Going Faster", Content: "body"},
		Script: &types.Script{
			Text:        "Welcome back to the show. Today we cover going faster.",
			ApprovedAt:  &now,
			AspectRatio: "16:9",
		},
	}
}

func newAvatarHandler(client *stubAvatarClient, cat *stubCatalog) (*AvatarHandler, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1000, 0))
	h := NewAvatarHandler(AvatarOptions{
		Client:          client,
		Catalog:         cat,
		Clock:           clk,
		PollInterval:    time.Second,
		MaxPollAttempts: 5,
	})
	return h, clk
}

func TestAvatarHandler_SubmitAndPollToCompletion(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-1",
		statuses: []*avatar.JobStatus{
			{Status: "processing"},
			{Status: "processing"},
			{Status: "complete", ResultURL: "https://cdn/a.mp4"},
		},
	}
	cat := &stubCatalog{}
	h, _ := newAvatarHandler(client, cat)

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)
	require.NotNil(t, delta)

	delta(p)
	require.NotNil(t, p.AvatarVideo)
	assert.Equal(t, "job-1", p.AvatarVideo.JobID)
	assert.Equal(t, types.JobStatusComplete, p.AvatarVideo.Status)
	assert.Equal(t, "https://cdn/a.mp4", p.AvatarVideo.ResultURL)
	assert.Equal(t, p.Script.Text, client.lastSubmit.Script)
	assert.NotEmpty(t, p.AvatarVideo.Character)
	assert.NotEmpty(t, p.AvatarVideo.Voice)
	// Completed job is tagged in the catalog.
	assert.Equal(t, "https://cdn/a.mp4", cat.registered["job-1"])
}

func TestAvatarHandler_ReusesNearIdenticalCompletedJob(t *testing.T) {
	p := avatarPipeline()
	client := &stubAvatarClient{
		jobs: []avatar.Job{
			{ID: "old-1", Script: "Completely different script about other things entirely.", Status: "complete", ResultURL: "https://cdn/x.mp4"},
			// Same script with extra whitespace; normalization makes it identical.
			{ID: "old-2", Script: "  Welcome back to the show.   Today we cover going faster. ", Status: "complete", ResultURL: "https://cdn/y.mp4"},
		},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)

	delta(p)
	assert.Equal(t, "old-2", p.AvatarVideo.JobID)
	assert.True(t, p.AvatarVideo.Reused)
	assert.Equal(t, types.JobStatusComplete, p.AvatarVideo.Status)
	// No new paid submission was made.
	assert.Zero(t, client.submitCalls)
	assert.Zero(t, client.statusCalls)
}

func TestAvatarHandler_ListFailureOnlyDisablesReuse(t *testing.T) {
	client := &stubAvatarClient{
		listErr:  errors.New("listing down"),
		submitID: "job-2",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/b.mp4"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)

	delta(p)
	assert.Equal(t, "job-2", p.AvatarVideo.JobID)
	assert.Equal(t, 1, client.submitCalls)
}

func TestAvatarHandler_ResumesInFlightJob(t *testing.T) {
	client := &stubAvatarClient{
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/c.mp4"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	p.AvatarVideo = &types.AvatarVideo{JobID: "job-55", Status: types.JobStatusProcessing, Character: "nova", Voice: "warm"}

	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)

	delta(p)
	// The in-flight job is polled, never resubmitted.
	assert.Zero(t, client.submitCalls)
	assert.Equal(t, "job-55", client.lastJobID)
	assert.Equal(t, "job-55", p.AvatarVideo.JobID)
	assert.Equal(t, types.JobStatusComplete, p.AvatarVideo.Status)
	assert.Equal(t, "nova", p.AvatarVideo.Character)
}

func TestAvatarHandler_RegenerateForcesNewSubmission(t *testing.T) {
	p := avatarPipeline()
	p.AvatarVideo = &types.AvatarVideo{JobID: "job-old", Status: types.JobStatusComplete, ResultURL: "https://cdn/old.mp4"}
	client := &stubAvatarClient{
		jobs:     []avatar.Job{{ID: "job-old", Script: p.Script.Text, Status: "complete", ResultURL: "https://cdn/old.mp4"}},
		submitID: "job-new",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/new.mp4"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	delta, err := h.Execute(context.Background(), types.ActionRegenerateAvatar, p, Payload{Character: "atlas"})
	require.NoError(t, err)

	delta(p)
	assert.Equal(t, 1, client.submitCalls)
	assert.Equal(t, "job-new", p.AvatarVideo.JobID)
	assert.True(t, p.AvatarVideo.Regenerated)
	assert.Equal(t, "atlas", p.AvatarVideo.Character)
}

func TestAvatarHandler_RegenerateWithoutPayloadSelectsNewPresenter(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-a",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/g.mp4"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)
	delta(p)
	first := *p.AvatarVideo

	client2 := &stubAvatarClient{
		submitID: "job-b",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/h.mp4"}},
	}
	h2, _ := newAvatarHandler(client2, &stubCatalog{})
	delta2, err := h2.Execute(context.Background(), types.ActionRegenerateAvatar, p, Payload{})
	require.NoError(t, err)
	delta2(p)

	assert.Equal(t, 1, client2.submitCalls)
	assert.NotEqual(t, first.Character, p.AvatarVideo.Character)
	assert.NotEqual(t, first.Voice, p.AvatarVideo.Voice)
	assert.True(t, p.AvatarVideo.Regenerated)
}

func TestAvatarHandler_CompletedRecordShortCircuitsGenerate(t *testing.T) {
	client := &stubAvatarClient{}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	p.AvatarVideo = &types.AvatarVideo{
		JobID:     "job-done",
		Status:    types.JobStatusComplete,
		ResultURL: "https://cdn/done.mp4",
		Character: "sage",
		Voice:     "calm",
	}

	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)
	delta(p)

	// The finished job is kept as-is; no listing, polling or paid submission.
	assert.Equal(t, "job-done", p.AvatarVideo.JobID)
	assert.Equal(t, "sage", p.AvatarVideo.Character)
	assert.Zero(t, client.submitCalls)
	assert.Zero(t, client.statusCalls)
	assert.Zero(t, client.listCalls)
}

func TestAvatarHandler_PollTimeoutPreservesJobID(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-9",
		statuses: []*avatar.JobStatus{{Status: "processing"}},
	}
	h, clk := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})

	var pte *types.PollTimeoutError
	require.ErrorAs(t, err, &pte)
	assert.Equal(t, "job-9", pte.JobID)
	assert.Equal(t, 5, pte.Attempts)
	assert.Equal(t, 5, client.statusCalls)
	// One sleep between each pair of attempts.
	assert.Len(t, clk.Slept, 4)

	// The delta still records the in-flight job so it survives into the
	// error context and a later run can resume it.
	require.NotNil(t, delta)
	delta(p)
	assert.Equal(t, "job-9", p.AvatarVideo.JobID)
	assert.Equal(t, types.JobStatusProcessing, p.AvatarVideo.Status)
}

func TestAvatarHandler_ProviderFailureIsFatal(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-3",
		statuses: []*avatar.JobStatus{{Status: "failed", ErrorMessage: "render crashed"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})

	var pje *types.ProviderJobError
	require.ErrorAs(t, err, &pje)
	assert.Equal(t, "job-3", pje.JobID)
	assert.False(t, types.IsTransient(err))

	delta(p)
	assert.Equal(t, types.JobStatusError, p.AvatarVideo.Status)
	assert.Equal(t, "render crashed", p.AvatarVideo.Error)
}

func TestAvatarHandler_TransientPollErrorsBackOffAndRetry(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-4",
		statusErrs: []error{
			&types.TransientError{Op: "poll", Cause: errors.New("conn reset")},
			&types.TransientError{Op: "poll", Cause: errors.New("conn reset")},
		},
		statuses: []*avatar.JobStatus{
			nil, nil,
			{Status: "complete", ResultURL: "https://cdn/d.mp4"},
		},
	}
	h, clk := newAvatarHandler(client, &stubCatalog{})

	p := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	require.NoError(t, err)

	delta(p)
	assert.Equal(t, types.JobStatusComplete, p.AvatarVideo.Status)
	require.Len(t, clk.Slept, 2)
	// Backoff doubles after the first transient failure.
	assert.Equal(t, time.Second, clk.Slept[0])
	assert.Equal(t, 2*time.Second, clk.Slept[1])
}

func TestAvatarHandler_DeterministicPresenterChoice(t *testing.T) {
	client := &stubAvatarClient{
		submitID: "job-5",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/e.mp4"}},
	}
	h, _ := newAvatarHandler(client, &stubCatalog{})

	p1 := avatarPipeline()
	delta, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p1, Payload{})
	require.NoError(t, err)
	delta(p1)

	client2 := &stubAvatarClient{
		submitID: "job-6",
		statuses: []*avatar.JobStatus{{Status: "complete", ResultURL: "https://cdn/f.mp4"}},
	}
	h2, _ := newAvatarHandler(client2, &stubCatalog{})
	p2 := avatarPipeline()
	delta2, err := h2.Execute(context.Background(), types.ActionGenerateAvatar, p2, Payload{})
	require.NoError(t, err)
	delta2(p2)

	assert.Equal(t, p1.AvatarVideo.Character, p2.AvatarVideo.Character)
	assert.Equal(t, p1.AvatarVideo.Voice, p2.AvatarVideo.Voice)
}

func TestAvatarHandler_RequiresScript(t *testing.T) {
	h, _ := newAvatarHandler(&stubAvatarClient{}, &stubCatalog{})

	p := avatarPipeline()
	p.Script = nil
	_, err := h.Execute(context.Background(), types.ActionGenerateAvatar, p, Payload{})
	assert.ErrorContains(t, err, "without a script")
}
