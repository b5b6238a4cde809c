package stages

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/assets"
	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/providers/avatar"
	"github.com/jonathan/blogcast/internal/similarity"
	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/types"
)

// AvatarClient is the slice of the provider API the stage needs.
type AvatarClient interface {
	Submit(ctx context.Context, req avatar.SubmitRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (*avatar.JobStatus, error)
	ListJobs(ctx context.Context) ([]avatar.Job, error)
}

// Avatar stage defaults.
const (
	DefaultPollInterval        = 5 * time.Second
	DefaultMaxPollAttempts     = 60
	DefaultSimilarityThreshold = 0.9
	maxBackoffMultiplier       = 8
)

var (
	defaultCharacters = []string{"nova", "atlas", "sage", "ember"}
	defaultVoices     = []string{"warm", "bright", "calm", "crisp"}
)

// AvatarHandler drives the externally billed avatar-video job: duplicate
// detection before submission, resumption of an in-flight job after a crash
// or rollback, and bounded polling until the provider finishes.
type AvatarHandler struct {
	client              AvatarClient
	catalog             assets.Catalog // optional; completed jobs are tagged here
	clk                 clock.Clock
	logger              zerolog.Logger
	pollInterval        time.Duration
	maxPollAttempts     int
	similarityThreshold float64
	characters          []string
	voices              []string
}

// AvatarOptions configures an AvatarHandler.
type AvatarOptions struct {
	Client              AvatarClient
	Catalog             assets.Catalog
	Clock               clock.Clock
	Logger              zerolog.Logger
	PollInterval        time.Duration
	MaxPollAttempts     int
	SimilarityThreshold float64
	Characters          []string
	Voices              []string
}

// NewAvatarHandler constructs the avatar stage handler.
func NewAvatarHandler(opts AvatarOptions) *AvatarHandler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if len(opts.Characters) == 0 {
		opts.Characters = defaultCharacters
	}
	if len(opts.Voices) == 0 {
		opts.Voices = defaultVoices
	}
	return &AvatarHandler{
		client:              opts.Client,
		catalog:             opts.Catalog,
		clk:                 opts.Clock,
		logger:              opts.Logger,
		pollInterval:        opts.PollInterval,
		maxPollAttempts:     opts.MaxPollAttempts,
		similarityThreshold: opts.SimilarityThreshold,
		characters:          opts.Characters,
		voices:              opts.Voices,
	}
}

// CanHandle covers generation and regeneration in the mid-flight state.
func (h *AvatarHandler) CanHandle(state types.State, action types.Action) bool {
	return state == types.StateAvatarGenerating &&
		(action == types.ActionGenerateAvatar || action == types.ActionRegenerateAvatar)
}

// Execute obtains a completed avatar video for the approved script. The
// returned delta always carries the job record, including on error, so the
// provider job id survives into the error context and a later run can pick
// the same job back up.
func (h *AvatarHandler) Execute(ctx context.Context, action types.Action, p *types.PipelineContext, payload Payload) (statemachine.Delta, error) {
	if p.Script == nil || p.Script.Text == "" {
		return nil, fmt.Errorf("cannot generate an avatar video without a script")
	}

	record, err := h.obtain(ctx, action, p, payload)
	delta := func(c *types.PipelineContext) {
		c.AvatarVideo = record
	}
	if record == nil {
		delta = nil
	}
	return delta, err
}

// obtain decides between keeping, resuming, reusing and submitting, then
// polls.
func (h *AvatarHandler) obtain(ctx context.Context, action types.Action, p *types.PipelineContext, payload Payload) (*types.AvatarVideo, error) {
	// A job already completed in this context is final for GENERATE: return
	// it as-is rather than paying for a second submission.
	if action == types.ActionGenerateAvatar && completed(p.AvatarVideo) {
		record := *p.AvatarVideo
		h.logger.Info().Str("pipeline_id", p.ID).Str("job_id", record.JobID).
			Msg("avatar video already complete, keeping existing job")
		return &record, nil
	}

	// Resume: an in-flight job recorded before a crash or error is polled
	// again instead of paying for a second submission. REGENERATE always
	// forces fresh work.
	if action == types.ActionGenerateAvatar && inFlight(p.AvatarVideo) {
		record := *p.AvatarVideo
		h.logger.Info().Str("pipeline_id", p.ID).Str("job_id", record.JobID).
			Msg("resuming in-flight avatar job")
		return h.poll(ctx, &record)
	}

	record := &types.AvatarVideo{
		Status:      types.JobStatusPending,
		Character:   payload.Character,
		Voice:       payload.Voice,
		AspectRatio: p.Script.AspectRatio,
		Regenerated: action == types.ActionRegenerateAvatar,
	}
	if record.AspectRatio == "" {
		record.AspectRatio = DefaultAspectRatio
	}
	// Regeneration must change the presenter: the previous character and
	// voice are removed from the candidate sets unless the caller overrode
	// them explicitly.
	prior := p.AvatarVideo
	if record.Character == "" {
		options := h.characters
		if action == types.ActionRegenerateAvatar && prior != nil {
			options = excluding(options, prior.Character)
		}
		record.Character = pick(options, p.ID)
	}
	if record.Voice == "" {
		options := h.voices
		if action == types.ActionRegenerateAvatar && prior != nil {
			options = excluding(options, prior.Voice)
		}
		record.Voice = pick(options, p.ID+record.Character)
	}

	// Duplicate detection: a completed provider job with a near-identical
	// script is reused instead of submitting new paid work.
	if action == types.ActionGenerateAvatar {
		if reused := h.findReusable(ctx, p); reused != nil {
			reused.Character = record.Character
			reused.Voice = record.Voice
			reused.AspectRatio = record.AspectRatio
			return reused, nil
		}
	}

	jobID, err := h.client.Submit(ctx, avatar.SubmitRequest{
		Script:      p.Script.Text,
		Character:   record.Character,
		Voice:       record.Voice,
		AspectRatio: record.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit avatar job: %w", err)
	}
	record.JobID = jobID
	record.Status = types.JobStatusProcessing
	h.logger.Info().Str("pipeline_id", p.ID).Str("job_id", jobID).
		Str("character", record.Character).Str("voice", record.Voice).
		Msg("submitted avatar job")

	return h.poll(ctx, record)
}

// findReusable scans the provider's job listing for a completed job whose
// script is near-identical to ours. A listing failure only disables reuse.
func (h *AvatarHandler) findReusable(ctx context.Context, p *types.PipelineContext) *types.AvatarVideo {
	jobs, err := h.client.ListJobs(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Str("pipeline_id", p.ID).
			Msg("job listing failed, skipping duplicate detection")
		return nil
	}
	for _, job := range jobs {
		if avatar.MapStatus(job.Status) != types.JobStatusComplete || job.ResultURL == "" {
			continue
		}
		ratio := similarity.Ratio(job.Script, p.Script.Text)
		if ratio < h.similarityThreshold {
			continue
		}
		h.logger.Info().Str("pipeline_id", p.ID).Str("job_id", job.ID).
			Float64("similarity", ratio).Msg("reusing completed avatar job")
		record := &types.AvatarVideo{
			JobID:       job.ID,
			Status:      types.JobStatusComplete,
			ResultURL:   job.ResultURL,
			GeneratedAt: h.clk.Now(),
			Reused:      true,
		}
		h.registerJob(ctx, record)
		return record
	}
	return nil
}

// poll checks the job until completion, provider failure or the attempt
// ceiling. Transient check failures back off and retry within the same
// ceiling; on timeout the record keeps the job id so the run can resume.
func (h *AvatarHandler) poll(ctx context.Context, record *types.AvatarVideo) (*types.AvatarVideo, error) {
	backoff := h.pollInterval
	var lastErr error

	for attempt := 1; attempt <= h.maxPollAttempts; attempt++ {
		status, err := h.client.GetStatus(ctx, record.JobID)
		if err != nil {
			if !types.IsTransient(err) {
				record.Status = types.JobStatusProcessing
				return record, fmt.Errorf("failed to check avatar job %s: %w", record.JobID, err)
			}
			lastErr = err
			if attempt == h.maxPollAttempts {
				break
			}
			if serr := h.clk.Sleep(ctx, backoff); serr != nil {
				record.Status = types.JobStatusProcessing
				return record, serr
			}
			if backoff < h.pollInterval*maxBackoffMultiplier {
				backoff *= 2
			}
			continue
		}
		backoff = h.pollInterval

		switch avatar.MapStatus(status.Status) {
		case types.JobStatusComplete:
			record.Status = types.JobStatusComplete
			record.ResultURL = status.ResultURL
			record.GeneratedAt = h.clk.Now()
			h.registerJob(ctx, record)
			return record, nil
		case types.JobStatusError:
			record.Status = types.JobStatusError
			record.Error = status.ErrorMessage
			return record, &types.ProviderJobError{JobID: record.JobID, Message: status.ErrorMessage}
		default:
			record.Status = types.JobStatusProcessing
		}

		if attempt == h.maxPollAttempts {
			break
		}
		if serr := h.clk.Sleep(ctx, h.pollInterval); serr != nil {
			return record, serr
		}
	}

	record.Status = types.JobStatusProcessing
	return record, &types.PollTimeoutError{JobID: record.JobID, Attempts: h.maxPollAttempts, Cause: lastErr}
}

// registerJob tags the completed job in the asset catalog. Failures are
// logged, not fatal: the pipeline result does not depend on the tag.
func (h *AvatarHandler) registerJob(ctx context.Context, record *types.AvatarVideo) {
	if h.catalog == nil {
		return
	}
	if err := h.catalog.RegisterJob(ctx, record.JobID, record.ResultURL); err != nil {
		h.logger.Warn().Err(err).Str("job_id", record.JobID).
			Msg("failed to register avatar job in asset catalog")
	}
}

// inFlight reports whether record names a provider job that may still be
// running.
func inFlight(record *types.AvatarVideo) bool {
	return record != nil && record.JobID != "" &&
		(record.Status == types.JobStatusPending || record.Status == types.JobStatusProcessing)
}

// completed reports whether record names a finished provider job with a
// usable result.
func completed(record *types.AvatarVideo) bool {
	return record != nil && record.JobID != "" &&
		record.Status == types.JobStatusComplete && record.ResultURL != ""
}

// pick selects deterministically from options based on seed, so repeated
// runs of one pipeline choose the same presenter.
func pick(options []string, seed string) string {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(seed))
	return options[hash.Sum32()%uint32(len(options))]
}

// excluding returns options without used. The full set is kept when used is
// the only option, so a single-entry candidate list still works.
func excluding(options []string, used string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o != used {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return options
	}
	return out
}
