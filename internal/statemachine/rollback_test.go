package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/blogcast/internal/types"
)

func TestRestartFromState_InitialClearsEverythingButItem(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateVideoComposed)

	ctx, err := m.RestartFromState(types.StateBlogSelected)
	require.NoError(t, err)

	assert.Equal(t, types.StateBlogSelected, ctx.CurrentState)
	assert.NotNil(t, ctx.Item)
	assert.Nil(t, ctx.Script)
	assert.Nil(t, ctx.AvatarVideo)
	assert.Nil(t, ctx.Composed)
	assert.Nil(t, ctx.Error)
	require.NoError(t, ctx.Validate())
}

func TestRestartFromState_ScriptGeneratedClearsAvatarAndComposition(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateVideoComposed)

	ctx, err := m.RestartFromState(types.StateScriptGenerated)
	require.NoError(t, err)

	assert.Equal(t, types.StateScriptGenerated, ctx.CurrentState)
	require.NotNil(t, ctx.Script)
	assert.Nil(t, ctx.Script.ApprovedAt, "approval stamp is downstream of SCRIPT_GENERATED")
	assert.Empty(t, ctx.Script.AspectRatio)
	assert.Nil(t, ctx.AvatarVideo)
	assert.Nil(t, ctx.Composed)
	require.NoError(t, ctx.Validate())
}

func TestRestartFromState_ScriptApprovedKeepsApprovalStamp(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateVideoComposed)

	ctx, err := m.RestartFromState(types.StateScriptApproved)
	require.NoError(t, err)

	require.NotNil(t, ctx.Script)
	assert.NotNil(t, ctx.Script.ApprovedAt)
	assert.Equal(t, "16:9", ctx.Script.AspectRatio)
	assert.Nil(t, ctx.AvatarVideo)
	require.NoError(t, ctx.Validate())
}

func TestRestartFromState_AvatarGeneratingKeepsInFlightJob(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateScriptApproved)
	_, err := m.Transition(types.ActionGenerateAvatar, nil)
	require.NoError(t, err)

	// A timed-out poll lands in ERROR with the in-flight record retained.
	_, err = m.HandleError(&types.PipelineError{
		Message: "poll timeout",
		State:   types.StateAvatarGenerating,
		Action:  types.ActionGenerateAvatar,
	}, func(c *types.PipelineContext) {
		c.AvatarVideo = &types.AvatarVideo{JobID: "job-55", Status: types.JobStatusProcessing}
	})
	require.NoError(t, err)

	ctx, err := m.RestartFromState(types.StateAvatarGenerating)
	require.NoError(t, err)

	assert.Equal(t, types.StateAvatarGenerating, ctx.CurrentState)
	assert.Nil(t, ctx.Error, "rollback always clears the error record")
	require.NotNil(t, ctx.AvatarVideo, "in-flight job record must survive for resumption")
	assert.Equal(t, "job-55", ctx.AvatarVideo.JobID)
}

func TestRestartFromState_MidFlightRecordRejectsCompletedTarget(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateAvatarGenerated)

	// A regeneration that times out leaves a mid-flight record behind when
	// the pipeline errors out.
	_, err := m.Transition(types.ActionRegenerateAvatar, func(c *types.PipelineContext) {
		c.AvatarVideo = &types.AvatarVideo{JobID: "job-2", Status: types.JobStatusProcessing}
	})
	require.NoError(t, err)
	_, err = m.HandleError(&types.PipelineError{
		Message: "polling job job-2 timed out",
		State:   types.StateAvatarGenerating,
		Action:  types.ActionRegenerateAvatar,
	}, nil)
	require.NoError(t, err)

	// AVATAR_GENERATED requires a completed record, so the mid-flight job
	// makes it an illegal target and the context stays untouched.
	_, err = m.RestartFromState(types.StateAvatarGenerated)
	var ire *types.InvalidRollbackError
	require.ErrorAs(t, err, &ire)
	assert.Equal(t, types.StateAvatarGenerated, ire.Target)
	assert.Equal(t, types.StateError, m.Context().CurrentState)
	require.NoError(t, m.Context().Validate())

	// The generating state is the legal resume point and keeps the job.
	ctx, err := m.RestartFromState(types.StateAvatarGenerating)
	require.NoError(t, err)
	assert.Equal(t, types.StateAvatarGenerating, ctx.CurrentState)
	require.NotNil(t, ctx.AvatarVideo)
	assert.Equal(t, "job-2", ctx.AvatarVideo.JobID)
	require.NoError(t, ctx.Validate())
}

func TestRestartFromState_TargetNeverVisitedIsRejected(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateScriptGenerated)
	before := m.Context().Clone()

	_, err := m.RestartFromState(types.StateVideoComposed)
	var ire *types.InvalidRollbackError
	require.ErrorAs(t, err, &ire)
	assert.Equal(t, before, m.Context())
}

func TestRestartFromState_ErrorTargetIsRejected(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateScriptGenerated)

	_, err := m.RestartFromState(types.StateError)
	var ire *types.InvalidRollbackError
	assert.ErrorAs(t, err, &ire)
}

func TestRestartFromState_AppendsHistoryEntry(t *testing.T) {
	m, _ := newTestMachine(t)
	advance(t, m, types.StateScriptGenerated)
	lenBefore := len(m.Context().History)

	ctx, err := m.RestartFromState(types.StateBlogSelected)
	require.NoError(t, err)

	require.Len(t, ctx.History, lenBefore+1)
	last := ctx.History[len(ctx.History)-1]
	assert.Equal(t, types.ActionRestartFromState, last.Action)
	assert.Equal(t, types.StateBlogSelected, last.ToState)
	assert.Equal(t, types.StateScriptGenerated, last.FromState)
}

func TestRestartFromState_InitialAllowedWithoutHistory(t *testing.T) {
	m, _ := newTestMachine(t)

	ctx, err := m.RestartFromState(types.StateBlogSelected)
	require.NoError(t, err)
	assert.Equal(t, types.StateBlogSelected, ctx.CurrentState)
}
