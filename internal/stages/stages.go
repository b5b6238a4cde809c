// Package stages implements the per-stage work behind pipeline actions:
// script drafting, avatar-video generation and final composition. Each
// handler declares the (state, action) pairs it covers and returns a delta
// for the state machine to apply; handlers never mutate the context
// themselves.
package stages

import (
	"context"

	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/types"
)

// Payload carries optional user-supplied inputs for an action, such as the
// replacement text of a script edit or a preferred avatar character.
type Payload struct {
	ScriptText  string
	AspectRatio string
	Character   string
	Voice       string
}

// Handler performs the work behind one or more pipeline actions.
type Handler interface {
	// CanHandle reports whether the handler covers action in state. For
	// stage-running actions the state is the mid-flight generating state,
	// since the orchestrator enters it before invoking the handler.
	CanHandle(state types.State, action types.Action) bool
	// Execute performs the stage work and returns the delta to apply. On
	// error the returned delta may still carry partial progress, notably an
	// in-flight provider job id, which the caller folds into the error
	// context so a later run can resume the same job.
	Execute(ctx context.Context, action types.Action, p *types.PipelineContext, payload Payload) (statemachine.Delta, error)
}

// Find returns the first handler covering (state, action), or nil.
func Find(handlers []Handler, state types.State, action types.Action) Handler {
	for _, h := range handlers {
		if h.CanHandle(state, action) {
			return h
		}
	}
	return nil
}

// DefaultAspectRatio is used when neither the payload nor the approved
// script specifies one.
const DefaultAspectRatio = "16:9"
