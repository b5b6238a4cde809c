// Package statemachine enforces the legal transition graph of the blogcast
// pipeline and produces the next pipeline context deterministically. The
// context is mutated exclusively through Transition, HandleError and
// RestartFromState; every successful call appends one history entry and
// notifies registered listeners before returning.
package statemachine

import (
	"time"

	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/types"
)

// Delta mutates stage payload fields of a context on behalf of a handler.
// Deltas are applied to a clone inside Transition so a rejected transition
// never leaves partial mutations behind.
type Delta func(*types.PipelineContext)

// TransitionEvent describes one applied transition.
type TransitionEvent struct {
	PipelineID string
	From       types.State
	To         types.State
	Action     types.Action
	Context    *types.PipelineContext
	Timestamp  time.Time
}

// Listener receives transition events. Persistence subscribes here.
type Listener func(TransitionEvent)

// legalActions maps each state to the actions legal in it. The universal
// RESTART_FROM_STATE and HANDLE_ERROR actions are handled specially and are
// not listed.
var legalActions = map[types.State][]types.Action{
	types.StateBlogSelected:     {types.ActionGenerateScript},
	types.StateScriptGenerating: {types.ActionGenerateScript},
	types.StateScriptGenerated:  {types.ActionGenerateScript, types.ActionEditScript, types.ActionApproveScript},
	types.StateScriptApproved:   {types.ActionGenerateAvatar},
	types.StateAvatarGenerating: {types.ActionGenerateAvatar, types.ActionRegenerateAvatar},
	types.StateAvatarGenerated:  {types.ActionRegenerateAvatar, types.ActionComposeVideo},
	types.StateVideoComposing:   {types.ActionComposeVideo, types.ActionCheckComposition},
	types.StateVideoComposed:    {types.ActionApproveVideo},
	types.StateFinalApproved:    {types.ActionPublish},
	types.StateReadyToPublish:   {},
	types.StateError:            {},
}

// Machine drives one pipeline context through the transition graph.
type Machine struct {
	ctx       *types.PipelineContext
	clk       clock.Clock
	listeners []Listener
}

// New wraps an existing (typically reloaded) context. The caller keeps no
// reference to ctx; the machine owns it from here.
func New(ctx *types.PipelineContext, clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Machine{ctx: ctx, clk: clk}
}

// NewPipeline creates a machine around a fresh context tagged at the initial
// state for the selected item.
func NewPipeline(id string, item *types.BlogItem, clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.Real{}
	}
	now := clk.Now()
	ctx := &types.PipelineContext{
		ID:           id,
		CurrentState: types.InitialState,
		Item:         item,
		History:      []types.HistoryEntry{},
		Metadata:     types.Metadata{CreatedAt: now, UpdatedAt: now},
	}
	return &Machine{ctx: ctx, clk: clk}
}

// Context returns the current context. Callers must treat it as read-only;
// use Clone for a mutable copy.
func (m *Machine) Context() *types.PipelineContext {
	return m.ctx
}

// OnTransition registers a listener invoked after every applied transition.
func (m *Machine) OnTransition(l Listener) {
	m.listeners = append(m.listeners, l)
}

// ValidActions returns the actions legal in the current state, excluding the
// universal ones.
func (m *Machine) ValidActions() []types.Action {
	actions := legalActions[m.ctx.CurrentState]
	out := make([]types.Action, len(actions))
	copy(out, actions)
	return out
}

// ActionLegal reports whether action is in the legal set for the current
// state. Universal actions are always reported legal here; HandleError and
// RestartFromState apply their own stricter checks.
func (m *Machine) ActionLegal(action types.Action) bool {
	if action.Universal() {
		return true
	}
	for _, a := range legalActions[m.ctx.CurrentState] {
		if a == action {
			return true
		}
	}
	return false
}

// Transition validates action against the current state, applies delta to a
// clone, computes the next state, appends a history entry and broadcasts the
// event. An illegal action returns InvalidTransitionError and leaves the
// context untouched.
func (m *Machine) Transition(action types.Action, delta Delta) (*types.PipelineContext, error) {
	if action.Universal() || !m.ActionLegal(action) {
		return nil, &types.InvalidTransitionError{State: m.ctx.CurrentState, Action: action}
	}

	next := m.ctx.Clone()
	if delta != nil {
		delta(next)
	}

	target, err := nextState(next, action)
	if err != nil {
		return nil, err
	}

	m.apply(next, action, target, "")
	return m.ctx, nil
}

// HandleError moves the pipeline to ERROR carrying the structured record.
// It is legal from every non-terminal, non-error state. Stage payloads,
// including any in-flight job record, are retained so a resumed run can pick
// the work back up after a rollback.
func (m *Machine) HandleError(pe *types.PipelineError, delta Delta) (*types.PipelineContext, error) {
	cur := m.ctx.CurrentState
	if cur == types.StateError || cur.Terminal() {
		return nil, &types.InvalidTransitionError{State: cur, Action: types.ActionHandleError}
	}

	next := m.ctx.Clone()
	if delta != nil {
		delta(next)
	}
	next.Error = pe

	m.apply(next, types.ActionHandleError, types.StateError, pe.Message)
	return m.ctx, nil
}

// apply commits next as the new context, stamping state, history and the
// monotonic updatedAt, then notifies listeners.
func (m *Machine) apply(next *types.PipelineContext, action types.Action, target types.State, note string) {
	now := m.clk.Now()
	// UpdatedAt must be strictly increasing even under a coarse clock.
	if !now.After(next.Metadata.UpdatedAt) {
		now = next.Metadata.UpdatedAt.Add(time.Nanosecond)
	}

	from := next.CurrentState
	next.CurrentState = target
	next.Metadata.UpdatedAt = now
	next.History = append(next.History, types.HistoryEntry{
		FromState: from,
		Action:    action,
		ToState:   target,
		Timestamp: now,
		Note:      note,
	})
	m.ctx = next

	evt := TransitionEvent{
		PipelineID: next.ID,
		From:       from,
		To:         target,
		Action:     action,
		Context:    next,
		Timestamp:  now,
	}
	for _, l := range m.listeners {
		l(evt)
	}
}
