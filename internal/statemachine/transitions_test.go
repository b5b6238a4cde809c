package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/blogcast/internal/types"
)

func TestEntryState(t *testing.T) {
	tests := []struct {
		name   string
		state  types.State
		action types.Action
		want   types.State
		ok     bool
	}{
		{"generate script from selection", types.StateBlogSelected, types.ActionGenerateScript, types.StateScriptGenerating, true},
		{"regenerate script", types.StateScriptGenerated, types.ActionGenerateScript, types.StateScriptGenerating, true},
		{"generate avatar after approval", types.StateScriptApproved, types.ActionGenerateAvatar, types.StateAvatarGenerating, true},
		{"regenerate avatar", types.StateAvatarGenerated, types.ActionRegenerateAvatar, types.StateAvatarGenerating, true},
		{"compose video", types.StateAvatarGenerated, types.ActionComposeVideo, types.StateVideoComposing, true},
		{"edit works in place", types.StateScriptGenerated, types.ActionEditScript, "", false},
		{"approve works in place", types.StateScriptGenerated, types.ActionApproveScript, "", false},
		{"already mid-flight", types.StateAvatarGenerating, types.ActionGenerateAvatar, "", false},
		{"check composition probes in place", types.StateVideoComposing, types.ActionCheckComposition, "", false},
		{"publish has no stage", types.StateFinalApproved, types.ActionPublish, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EntryState(tt.state, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeneratingState(t *testing.T) {
	assert.True(t, GeneratingState(types.StateScriptGenerating))
	assert.True(t, GeneratingState(types.StateAvatarGenerating))
	assert.True(t, GeneratingState(types.StateVideoComposing))
	assert.False(t, GeneratingState(types.StateBlogSelected))
	assert.False(t, GeneratingState(types.StateScriptGenerated))
	assert.False(t, GeneratingState(types.StateReadyToPublish))
	assert.False(t, GeneratingState(types.StateError))
}
