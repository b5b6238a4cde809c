package statemachine

import "github.com/jonathan/blogcast/internal/types"

// nextState computes the destination of a legal (state, action) pair. ctx has
// already had the handler delta applied, so completion hops may inspect the
// stage payloads (e.g. whether composition finished). Pairs that mutate in
// place return the current state unchanged.
func nextState(ctx *types.PipelineContext, action types.Action) (types.State, error) {
	state := ctx.CurrentState

	switch {
	case state == types.StateBlogSelected && action == types.ActionGenerateScript:
		return types.StateScriptGenerating, nil
	case state == types.StateScriptGenerating && action == types.ActionGenerateScript:
		return types.StateScriptGenerated, nil

	case state == types.StateScriptGenerated && action == types.ActionGenerateScript:
		// Regenerating the script loops back through the generating state.
		return types.StateScriptGenerating, nil
	case state == types.StateScriptGenerated && action == types.ActionEditScript:
		// Edit-in-place: text and duration change, the state does not.
		return types.StateScriptGenerated, nil
	case state == types.StateScriptGenerated && action == types.ActionApproveScript:
		return types.StateScriptApproved, nil

	case state == types.StateScriptApproved && action == types.ActionGenerateAvatar:
		return types.StateAvatarGenerating, nil
	case state == types.StateAvatarGenerating &&
		(action == types.ActionGenerateAvatar || action == types.ActionRegenerateAvatar):
		return types.StateAvatarGenerated, nil
	case state == types.StateAvatarGenerated && action == types.ActionRegenerateAvatar:
		return types.StateAvatarGenerating, nil

	case state == types.StateAvatarGenerated && action == types.ActionComposeVideo:
		return types.StateVideoComposing, nil
	case state == types.StateVideoComposing &&
		(action == types.ActionComposeVideo || action == types.ActionCheckComposition):
		// The composition engine is polled asynchronously: advance only once
		// the composed record reports completion, otherwise stay put.
		if ctx.Composed != nil && ctx.Composed.Status == types.JobStatusComplete {
			return types.StateVideoComposed, nil
		}
		return types.StateVideoComposing, nil

	case state == types.StateVideoComposed && action == types.ActionApproveVideo:
		return types.StateFinalApproved, nil
	case state == types.StateFinalApproved && action == types.ActionPublish:
		return types.StateReadyToPublish, nil
	}

	return "", &types.InvalidTransitionError{State: state, Action: action}
}

// EntryState returns the generating state entered when action starts a stage
// from state. ok is false when the action does not need an entry hop, either
// because it works in place or because the pipeline is already mid-flight.
func EntryState(state types.State, action types.Action) (types.State, bool) {
	switch {
	case state == types.StateBlogSelected && action == types.ActionGenerateScript,
		state == types.StateScriptGenerated && action == types.ActionGenerateScript:
		return types.StateScriptGenerating, true
	case state == types.StateScriptApproved && action == types.ActionGenerateAvatar,
		state == types.StateAvatarGenerated && action == types.ActionRegenerateAvatar:
		return types.StateAvatarGenerating, true
	case state == types.StateAvatarGenerated && action == types.ActionComposeVideo:
		return types.StateVideoComposing, true
	}
	return "", false
}

// GeneratingState reports whether s is a mid-flight stage whose completion
// hop is driven by re-applying the same action after the handler returns.
func GeneratingState(s types.State) bool {
	switch s {
	case types.StateScriptGenerating, types.StateAvatarGenerating, types.StateVideoComposing:
		return true
	}
	return false
}
