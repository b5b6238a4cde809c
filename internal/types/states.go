// Package types provides type definitions for structured data used throughout the blogcast pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// State identifies one stage of the pipeline state machine.
type State string

// Pipeline states, in pipeline order. ERROR is reachable from every
// non-terminal state and is never part of the forward ordering.
const (
	StateBlogSelected     State = "BLOG_SELECTED"
	StateScriptGenerating State = "SCRIPT_GENERATING"
	StateScriptGenerated  State = "SCRIPT_GENERATED"
	StateScriptApproved   State = "SCRIPT_APPROVED"
	StateAvatarGenerating State = "AVATAR_GENERATING"
	StateAvatarGenerated  State = "AVATAR_GENERATED"
	StateVideoComposing   State = "VIDEO_COMPOSING"
	StateVideoComposed    State = "VIDEO_COMPOSED"
	StateFinalApproved    State = "FINAL_APPROVED"
	StateReadyToPublish   State = "READY_TO_PUBLISH"
	StateError            State = "ERROR"
)

// InitialState is the state a freshly started pipeline is tagged with.
const InitialState = StateBlogSelected

// stateOrder maps each forward state to its position in the pipeline.
// ERROR deliberately has no position.
var stateOrder = map[State]int{
	StateBlogSelected:     0,
	StateScriptGenerating: 1,
	StateScriptGenerated:  2,
	StateScriptApproved:   3,
	StateAvatarGenerating: 4,
	StateAvatarGenerated:  5,
	StateVideoComposing:   6,
	StateVideoComposed:    7,
	StateFinalApproved:    8,
	StateReadyToPublish:   9,
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	if s == StateError {
		return true
	}
	_, ok := stateOrder[s]
	return ok
}

// Order returns the forward pipeline position of s and whether s has one.
// ERROR and unknown states report false.
func (s State) Order() (int, bool) {
	n, ok := stateOrder[s]
	return n, ok
}

// MustOrder returns the forward pipeline position of s and panics when s has
// none. For use with the compile-time state constants only.
func MustOrder(s State) int {
	n, ok := stateOrder[s]
	if !ok {
		panic("state " + string(s) + " has no pipeline order")
	}
	return n
}

// Before reports whether s comes strictly before other in the forward
// pipeline ordering. Either side lacking an order (e.g. ERROR) reports false.
func (s State) Before(other State) bool {
	a, okA := stateOrder[s]
	b, okB := stateOrder[other]
	return okA && okB && a < b
}

// Terminal reports whether s is the terminal publishable state.
func (s State) Terminal() bool {
	return s == StateReadyToPublish
}

// Action identifies an operation requested against the pipeline.
type Action string

// Pipeline actions. RESTART_FROM_STATE and HANDLE_ERROR are universal and are
// handled outside the per-state transition table.
const (
	ActionGenerateScript   Action = "GENERATE_SCRIPT"
	ActionEditScript       Action = "EDIT_SCRIPT"
	ActionApproveScript    Action = "APPROVE_SCRIPT"
	ActionGenerateAvatar   Action = "GENERATE_AVATAR"
	ActionRegenerateAvatar Action = "REGENERATE_AVATAR"
	ActionComposeVideo     Action = "COMPOSE_VIDEO"
	ActionCheckComposition Action = "CHECK_COMPOSITION"
	ActionApproveVideo     Action = "APPROVE_VIDEO"
	ActionPublish          Action = "PUBLISH"
	ActionRestartFromState Action = "RESTART_FROM_STATE"
	ActionHandleError      Action = "HANDLE_ERROR"
)

// Universal reports whether a bypasses the per-state transition table.
func (a Action) Universal() bool {
	return a == ActionRestartFromState || a == ActionHandleError
}
