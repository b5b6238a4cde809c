package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/assets"
	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/fetch"
	"github.com/jonathan/blogcast/internal/providers/compose"
	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/types"
)

// ComposeClient is the slice of the composition engine API the stage needs.
type ComposeClient interface {
	Submit(ctx context.Context, req compose.SubmitRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (*compose.JobStatus, error)
}

// DownloadFunc fetches rendered media bytes; injectable for tests.
type DownloadFunc func(ctx context.Context, url string) ([]byte, error)

// CompositionHandler turns the completed avatar video into the final cut:
// it resolves or ingests the avatar media as a catalog asset, submits a
// composition job, and tracks it until completion. A pipeline left in the
// composing state advances only once the engine reports the job complete.
type CompositionHandler struct {
	client          ComposeClient
	catalog         assets.Catalog
	download        DownloadFunc
	clk             clock.Clock
	logger          zerolog.Logger
	pollInterval    time.Duration
	maxPollAttempts int
}

// CompositionOptions configures a CompositionHandler.
type CompositionOptions struct {
	Client          ComposeClient
	Catalog         assets.Catalog
	Download        DownloadFunc
	Clock           clock.Clock
	Logger          zerolog.Logger
	PollInterval    time.Duration
	MaxPollAttempts int
}

// NewCompositionHandler constructs the composition stage handler.
func NewCompositionHandler(opts CompositionOptions) *CompositionHandler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Download == nil {
		opts.Download = func(ctx context.Context, url string) ([]byte, error) {
			return fetch.Download(ctx, url, nil)
		}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultMaxPollAttempts
	}
	return &CompositionHandler{
		client:          opts.Client,
		catalog:         opts.Catalog,
		download:        opts.Download,
		clk:             opts.Clock,
		logger:          opts.Logger,
		pollInterval:    opts.PollInterval,
		maxPollAttempts: opts.MaxPollAttempts,
	}
}

// CanHandle covers composition and its status checks in the composing state.
func (h *CompositionHandler) CanHandle(state types.State, action types.Action) bool {
	return state == types.StateVideoComposing &&
		(action == types.ActionComposeVideo || action == types.ActionCheckComposition)
}

// Execute runs or checks the composition job. The returned delta carries the
// record even on error so the engine job id survives into the error context.
func (h *CompositionHandler) Execute(ctx context.Context, action types.Action, p *types.PipelineContext, payload Payload) (statemachine.Delta, error) {
	record, err := h.run(ctx, action, p)
	delta := func(c *types.PipelineContext) {
		c.Composed = record
	}
	if record == nil {
		delta = nil
	}
	return delta, err
}

func (h *CompositionHandler) run(ctx context.Context, action types.Action, p *types.PipelineContext) (*types.ComposedVideo, error) {
	// An existing job is tracked rather than resubmitted.
	if p.Composed != nil {
		record := *p.Composed
		if record.Status == types.JobStatusComplete {
			return &record, nil
		}
		if record.JobID == "" {
			// A prior attempt failed before submission; start over.
			return h.start(ctx, p)
		}
		if action == types.ActionCheckComposition {
			return h.check(ctx, &record)
		}
		return h.track(ctx, &record)
	}

	if action == types.ActionCheckComposition {
		return nil, fmt.Errorf("no composition job to check")
	}
	return h.start(ctx, p)
}

// start prepares the avatar media as a catalog asset and submits the job.
func (h *CompositionHandler) start(ctx context.Context, p *types.PipelineContext) (*types.ComposedVideo, error) {
	if p.AvatarVideo == nil || p.AvatarVideo.Status != types.JobStatusComplete || p.AvatarVideo.ResultURL == "" {
		return nil, fmt.Errorf("cannot compose without a completed avatar video")
	}

	assetID, err := h.prepareAsset(ctx, p)
	if err != nil {
		// Degraded mode: the final cut is the avatar video itself, marked
		// simulated so downstream consumers can tell.
		h.logger.Warn().Err(err).Str("pipeline_id", p.ID).
			Msg("asset preparation failed, simulating composition")
		return &types.ComposedVideo{
			Status:      types.JobStatusComplete,
			ResultURL:   p.AvatarVideo.ResultURL,
			GeneratedAt: h.clk.Now(),
			Simulated:   true,
		}, nil
	}

	record := &types.ComposedVideo{
		AssetID: assetID,
		Status:  types.JobStatusPending,
	}

	title := ""
	if p.Item != nil {
		title = p.Item.Title
	}
	jobID, err := h.client.Submit(ctx, compose.SubmitRequest{
		AssetID:     assetID,
		AspectRatio: p.Script.AspectRatio,
		Title:       title,
	})
	if err != nil {
		return record, fmt.Errorf("failed to submit composition job: %w", err)
	}
	record.JobID = jobID
	record.Status = types.JobStatusProcessing
	h.logger.Info().Str("pipeline_id", p.ID).Str("job_id", jobID).
		Str("asset_id", assetID).Msg("submitted composition job")

	return h.track(ctx, record)
}

// prepareAsset resolves the avatar media in the catalog, downloading and
// ingesting it when unknown.
func (h *CompositionHandler) prepareAsset(ctx context.Context, p *types.PipelineContext) (string, error) {
	sourceURL := p.AvatarVideo.ResultURL

	assetID, err := h.catalog.Resolve(ctx, sourceURL)
	if err != nil {
		h.logger.Warn().Err(err).Str("pipeline_id", p.ID).
			Msg("catalog lookup failed, ingesting fresh copy")
	}
	if assetID != "" {
		return assetID, nil
	}

	data, err := h.download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to download avatar video: %w", err)
	}

	name := p.ID + "-avatar.mp4"
	if p.Item != nil && p.Item.Slug != "" {
		name = p.Item.Slug + "-avatar.mp4"
	}
	assetID, err = h.catalog.Ingest(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("failed to ingest avatar video: %w", err)
	}
	return assetID, nil
}

// check performs a single status probe, for the explicit check action.
func (h *CompositionHandler) check(ctx context.Context, record *types.ComposedVideo) (*types.ComposedVideo, error) {
	status, err := h.client.GetStatus(ctx, record.JobID)
	if err != nil {
		return record, fmt.Errorf("failed to check composition job %s: %w", record.JobID, err)
	}
	return h.fold(record, status)
}

// track polls the job up to the attempt ceiling. A job still rendering when
// the ceiling is hit is not an error; the pipeline stays in the composing
// state and a later check picks it up.
func (h *CompositionHandler) track(ctx context.Context, record *types.ComposedVideo) (*types.ComposedVideo, error) {
	backoff := h.pollInterval
	var lastErr error

	for attempt := 1; attempt <= h.maxPollAttempts; attempt++ {
		status, err := h.client.GetStatus(ctx, record.JobID)
		if err != nil {
			if !types.IsTransient(err) {
				return record, fmt.Errorf("failed to check composition job %s: %w", record.JobID, err)
			}
			lastErr = err
			if attempt == h.maxPollAttempts {
				return record, &types.PollTimeoutError{JobID: record.JobID, Attempts: h.maxPollAttempts, Cause: lastErr}
			}
			if serr := h.clk.Sleep(ctx, backoff); serr != nil {
				return record, serr
			}
			if backoff < h.pollInterval*maxBackoffMultiplier {
				backoff *= 2
			}
			continue
		}
		backoff = h.pollInterval
		lastErr = nil

		folded, ferr := h.fold(record, status)
		if ferr != nil || folded.Status == types.JobStatusComplete {
			return folded, ferr
		}
		record = folded

		if attempt == h.maxPollAttempts {
			break
		}
		if serr := h.clk.Sleep(ctx, h.pollInterval); serr != nil {
			return record, serr
		}
	}

	h.logger.Info().Str("job_id", record.JobID).
		Msg("composition still rendering, leaving pipeline in composing state")
	return record, nil
}

// fold merges one engine status into the record.
func (h *CompositionHandler) fold(record *types.ComposedVideo, status *compose.JobStatus) (*types.ComposedVideo, error) {
	switch compose.MapStatus(status.Status) {
	case types.JobStatusComplete:
		record.Status = types.JobStatusComplete
		record.ResultURL = status.ResultURL
		record.GeneratedAt = h.clk.Now()
		return record, nil
	case types.JobStatusError:
		record.Status = types.JobStatusError
		record.Error = status.Error
		return record, &types.ProviderJobError{JobID: record.JobID, Message: status.Error}
	default:
		record.Status = types.JobStatusProcessing
		return record, nil
	}
}
