package types

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus enumerates the lifecycle of an externally billed generation job.
type JobStatus string

// Job lifecycle states shared by avatar and composition records.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// BlogItem is the content item a pipeline run transforms into a video.
type BlogItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	Slug    string `json:"slug,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Script is the spoken script generated from a blog item.
type Script struct {
	Text              string     `json:"text"`
	EstimatedDuration float64    `json:"estimated_duration"` // seconds
	GeneratedAt       time.Time  `json:"generated_at"`
	Templated         bool       `json:"templated,omitempty"` // true when the LLM fallback template produced the text
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	AspectRatio       string     `json:"aspect_ratio,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the script.
func (s *Script) WordCount() int {
	return len(strings.Fields(s.Text))
}

// AvatarVideo records the externally billed avatar-video job. JobID is the
// sole key used to detect in-flight or duplicate work across restarts.
type AvatarVideo struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	ResultURL   string    `json:"result_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	Character   string    `json:"character,omitempty"`
	Voice       string    `json:"voice,omitempty"`
	AspectRatio string    `json:"aspect_ratio,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Regenerated bool      `json:"regenerated,omitempty"`
	Reused      bool      `json:"reused,omitempty"` // satisfied by an existing provider job instead of a new submission
}

// ComposedVideo records the composition-engine job producing the final cut.
type ComposedVideo struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	ResultURL   string    `json:"result_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	AssetID     string    `json:"asset_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Simulated   bool      `json:"simulated,omitempty"` // degraded-mode instant completion
}

// PipelineError is the structured record carried by a context in the ERROR
// state, naming the state and action that failed.
type PipelineError struct {
	Message    string    `json:"message"`
	State      State     `json:"state"`
	Action     Action    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Metadata carries record timestamps. UpdatedAt is monotonic across
// transitions.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PipelineContext is the root entity describing one pipeline run. It is a
// tagged variant keyed by CurrentState: the stage payload pointers legally
// present depend on the tag (see Validate). It is mutated exclusively through
// the state machine's transition function.
type PipelineContext struct {
	ID           string         `json:"id"`
	CurrentState State          `json:"current_state"`
	Item         *BlogItem      `json:"item,omitempty"`
	Script       *Script        `json:"script,omitempty"`
	AvatarVideo  *AvatarVideo   `json:"avatar_video,omitempty"`
	Composed     *ComposedVideo `json:"composed_video,omitempty"`
	Error        *PipelineError `json:"error,omitempty"`
	History      []HistoryEntry `json:"history"`
	Metadata     Metadata       `json:"metadata"`
}

// Clone returns a deep copy of the context. Transitions operate on clones so
// a rejected transition never leaves partial mutations behind.
func (c *PipelineContext) Clone() *PipelineContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Item != nil {
		item := *c.Item
		out.Item = &item
	}
	if c.Script != nil {
		script := *c.Script
		if c.Script.ApprovedAt != nil {
			at := *c.Script.ApprovedAt
			script.ApprovedAt = &at
		}
		out.Script = &script
	}
	if c.AvatarVideo != nil {
		av := *c.AvatarVideo
		out.AvatarVideo = &av
	}
	if c.Composed != nil {
		cv := *c.Composed
		out.Composed = &cv
	}
	if c.Error != nil {
		pe := *c.Error
		out.Error = &pe
	}
	out.History = make([]HistoryEntry, len(c.History))
	copy(out.History, c.History)
	return &out
}

// Validate enforces the tag invariants: the tag must belong to the closed
// state set, fields from stages the pipeline has not reached must be absent,
// and ERROR must carry a structured error record.
func (c *PipelineContext) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("pipeline context missing id")
	}
	if !c.CurrentState.Valid() {
		return fmt.Errorf("unknown pipeline state %q", c.CurrentState)
	}
	if c.Item == nil {
		return fmt.Errorf("pipeline context missing item")
	}
	if c.CurrentState == StateError {
		if c.Error == nil {
			return fmt.Errorf("ERROR state requires an error record")
		}
		return nil
	}
	if c.Error != nil {
		return fmt.Errorf("error record present outside ERROR state")
	}
	order, _ := c.CurrentState.Order()
	if c.Script == nil && order >= MustOrder(StateScriptGenerated) {
		return fmt.Errorf("state %s requires a script", c.CurrentState)
	}
	if c.Script != nil && order < MustOrder(StateScriptGenerating) {
		return fmt.Errorf("state %s must not carry a script", c.CurrentState)
	}
	if c.AvatarVideo == nil && order >= MustOrder(StateAvatarGenerated) {
		return fmt.Errorf("state %s requires an avatar video record", c.CurrentState)
	}
	if c.AvatarVideo != nil && order < MustOrder(StateAvatarGenerating) {
		return fmt.Errorf("state %s must not carry an avatar video record", c.CurrentState)
	}
	if c.Composed == nil && order >= MustOrder(StateVideoComposed) {
		return fmt.Errorf("state %s requires a composed video record", c.CurrentState)
	}
	if c.Composed != nil && order < MustOrder(StateVideoComposing) {
		return fmt.Errorf("state %s must not carry a composed video record", c.CurrentState)
	}
	if c.AvatarVideo != nil && order >= MustOrder(StateAvatarGenerated) {
		if c.AvatarVideo.Status != JobStatusComplete {
			return fmt.Errorf("state %s requires a completed avatar video, got status %q", c.CurrentState, c.AvatarVideo.Status)
		}
	}
	if c.Composed != nil && order >= MustOrder(StateVideoComposed) {
		if c.Composed.Status != JobStatusComplete {
			return fmt.Errorf("state %s requires a completed composed video, got status %q", c.CurrentState, c.Composed.Status)
		}
	}
	return nil
}
