package statemachine

import (
	"github.com/jonathan/blogcast/internal/history"
	"github.com/jonathan/blogcast/internal/types"
)

// RestartFromState rolls the pipeline back to target, discarding every field
// that logically depends on stages after it. The target must have appeared in
// history, except the initial state which is always allowed. This is the only
// operation that removes data instead of appending it; the error record is
// always cleared.
func (m *Machine) RestartFromState(target types.State) (*types.PipelineContext, error) {
	targetOrder, ok := target.Order()
	if !ok {
		return nil, &types.InvalidRollbackError{Target: target}
	}
	if target != types.InitialState && !history.ContainsState(m.ctx.History, target) {
		return nil, &types.InvalidRollbackError{Target: target}
	}

	next := m.ctx.Clone()
	next.Error = nil

	// A stage's own record survives a rollback into its generating state: that
	// is the resume path for an in-flight external job. Everything strictly
	// downstream goes.
	if targetOrder < types.MustOrder(types.StateScriptGenerating) {
		next.Script = nil
	}
	if next.Script != nil && targetOrder < types.MustOrder(types.StateScriptApproved) {
		// Approval stamps belong to the approval stage.
		next.Script.ApprovedAt = nil
		next.Script.AspectRatio = ""
	}
	if targetOrder < types.MustOrder(types.StateAvatarGenerating) {
		next.AvatarVideo = nil
	}
	if targetOrder < types.MustOrder(types.StateVideoComposing) {
		next.Composed = nil
	}

	// The rolled-back context must satisfy the tag invariants at the target.
	// A kept record that is not complete (say, after a regeneration timeout)
	// makes a *_GENERATED target invalid; the generating state is the legal
	// resume point instead.
	check := next.Clone()
	check.CurrentState = target
	if err := check.Validate(); err != nil {
		return nil, &types.InvalidRollbackError{Target: target, Reason: err.Error()}
	}

	m.apply(next, types.ActionRestartFromState, target, "rollback to "+string(target))
	return m.ctx, nil
}
