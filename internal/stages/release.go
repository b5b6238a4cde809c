package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/types"
)

// ReleaseHandler covers the human sign-off tail of the pipeline: final
// approval of the composed video and the publish action. It performs no
// external work; it validates that upstream artifacts are actually present
// before the pipeline claims readiness.
type ReleaseHandler struct {
	logger zerolog.Logger
}

// NewReleaseHandler constructs the release handler.
func NewReleaseHandler(logger zerolog.Logger) *ReleaseHandler {
	return &ReleaseHandler{logger: logger}
}

// CanHandle covers video approval and publishing.
func (h *ReleaseHandler) CanHandle(state types.State, action types.Action) bool {
	switch {
	case state == types.StateVideoComposed && action == types.ActionApproveVideo:
		return true
	case state == types.StateFinalApproved && action == types.ActionPublish:
		return true
	}
	return false
}

// Execute validates the artifacts behind the sign-off.
func (h *ReleaseHandler) Execute(_ context.Context, action types.Action, p *types.PipelineContext, _ Payload) (statemachine.Delta, error) {
	switch action {
	case types.ActionApproveVideo:
		if p.Composed == nil || p.Composed.Status != types.JobStatusComplete || p.Composed.ResultURL == "" {
			return nil, fmt.Errorf("cannot approve: no completed composed video")
		}
		h.logger.Info().Str("pipeline_id", p.ID).Str("result_url", p.Composed.ResultURL).
			Msg("final video approved")
		return nil, nil
	case types.ActionPublish:
		if p.Script == nil || p.Script.ApprovedAt == nil {
			return nil, fmt.Errorf("cannot publish: script was never approved")
		}
		if p.Composed == nil || p.Composed.ResultURL == "" {
			return nil, fmt.Errorf("cannot publish: no composed video")
		}
		h.logger.Info().Str("pipeline_id", p.ID).Msg("pipeline ready to publish")
		return nil, nil
	}
	return nil, types.ErrNoHandler
}
