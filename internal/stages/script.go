package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/llm"
	"github.com/jonathan/blogcast/internal/schemas"
	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/types"
)

// DefaultWordsPerSecond is the speaking rate used to estimate spoken
// duration from word count.
const DefaultWordsPerSecond = 2.5

// maxPromptContentChars bounds how much of the blog body goes into the
// drafting prompt.
const maxPromptContentChars = 8000

// ScriptHandler drafts, edits and approves the spoken script. Drafting uses
// the language model when one is available and falls back to a deterministic
// template otherwise, so the pipeline stays usable offline.
type ScriptHandler struct {
	llm            llm.Client
	clk            clock.Clock
	logger         zerolog.Logger
	wordsPerSecond float64
}

// ScriptOptions configures a ScriptHandler.
type ScriptOptions struct {
	LLM            llm.Client // nil means template-only drafting
	Clock          clock.Clock
	Logger         zerolog.Logger
	WordsPerSecond float64
}

// NewScriptHandler constructs the script stage handler.
func NewScriptHandler(opts ScriptOptions) *ScriptHandler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.WordsPerSecond <= 0 {
		opts.WordsPerSecond = DefaultWordsPerSecond
	}
	return &ScriptHandler{
		llm:            opts.LLM,
		clk:            opts.Clock,
		logger:         opts.Logger,
		wordsPerSecond: opts.WordsPerSecond,
	}
}

// CanHandle covers drafting in the generating state plus edit and approval
// of a drafted script.
func (h *ScriptHandler) CanHandle(state types.State, action types.Action) bool {
	switch {
	case state == types.StateScriptGenerating && action == types.ActionGenerateScript:
		return true
	case state == types.StateScriptGenerated &&
		(action == types.ActionEditScript || action == types.ActionApproveScript):
		return true
	}
	return false
}

// Execute runs the script work for action.
func (h *ScriptHandler) Execute(ctx context.Context, action types.Action, p *types.PipelineContext, payload Payload) (statemachine.Delta, error) {
	switch action {
	case types.ActionGenerateScript:
		return h.generate(ctx, p)
	case types.ActionEditScript:
		return h.edit(p, payload)
	case types.ActionApproveScript:
		return h.approve(payload)
	}
	return nil, types.ErrNoHandler
}

func (h *ScriptHandler) generate(ctx context.Context, p *types.PipelineContext) (statemachine.Delta, error) {
	if p.Item == nil {
		return nil, fmt.Errorf("cannot generate a script without a blog item")
	}

	script := &types.Script{GeneratedAt: h.clk.Now()}

	text, duration, err := h.draft(ctx, p.Item)
	if err != nil {
		h.logger.Warn().Err(err).Str("pipeline_id", p.ID).
			Msg("language model drafting failed, using templated script")
		text = templatedScript(p.Item)
		duration = 0
		script.Templated = true
	}
	script.Text = text
	if duration <= 0 {
		duration = float64(len(strings.Fields(text))) / h.wordsPerSecond
	}
	script.EstimatedDuration = duration

	return func(c *types.PipelineContext) {
		c.Script = script
	}, nil
}

// draft asks the language model for a script as schema-validated JSON.
func (h *ScriptHandler) draft(ctx context.Context, item *types.BlogItem) (string, float64, error) {
	if h.llm == nil {
		return "", 0, llm.ErrUnavailable
	}

	tier := llm.TierStandard
	if len(item.Content) > maxPromptContentChars {
		tier = llm.TierAdvanced
	}

	raw, err := h.llm.GenerateJSON(ctx, draftPrompt(item), tier)
	if err != nil {
		return "", 0, fmt.Errorf("failed to draft script: %w", err)
	}
	if err := schemas.ValidateScript(raw); err != nil {
		return "", 0, fmt.Errorf("model returned invalid script payload: %w", err)
	}

	var out struct {
		Text              string  `json:"text"`
		EstimatedDuration float64 `json:"estimated_duration"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", 0, fmt.Errorf("failed to decode script payload: %w", err)
	}
	return out.Text, out.EstimatedDuration, nil
}

func draftPrompt(item *types.BlogItem) string {
	content := item.Content
	if len(content) > maxPromptContentChars {
		content = content[:maxPromptContentChars]
	}

	var sb strings.Builder
	sb.WriteString("Write a conversational spoken-video script presenting the blog post below.\n")
	sb.WriteString("Open with a one-sentence hook, cover the main points in plain speech, and end with a short sign-off.\n")
	sb.WriteString("Do not mention that the source is a blog post. Keep it under 300 words.\n")
	sb.WriteString(`Respond with JSON: {"text": string, "estimated_duration": seconds}.` + "\n\n")
	sb.WriteString("Title: " + item.Title + "\n")
	if item.Author != "" {
		sb.WriteString("Author: " + item.Author + "\n")
	}
	sb.WriteString("\n" + content + "\n")
	return sb.String()
}

// templatedScript builds a deterministic script from the item alone.
func templatedScript(item *types.BlogItem) string {
	var sb strings.Builder
	sb.WriteString("Welcome back to the show. Today we're looking at \"")
	sb.WriteString(item.Title)
	sb.WriteString("\"")
	if item.Author != "" {
		sb.WriteString(" by ")
		sb.WriteString(item.Author)
	}
	sb.WriteString(".\n\n")

	words := strings.Fields(item.Content)
	const excerptWords = 120
	if len(words) > excerptWords {
		words = words[:excerptWords]
	}
	sb.WriteString(strings.Join(words, " "))
	sb.WriteString("\n\nThat's the heart of it. The full post goes deeper, so check it out if this caught your interest. Thanks for watching.")
	return sb.String()
}

func (h *ScriptHandler) edit(p *types.PipelineContext, payload Payload) (statemachine.Delta, error) {
	text := strings.TrimSpace(payload.ScriptText)
	if text == "" {
		return nil, fmt.Errorf("script edit requires replacement text")
	}
	if p.Script == nil {
		return nil, fmt.Errorf("no script to edit")
	}
	duration := float64(len(strings.Fields(text))) / h.wordsPerSecond
	return func(c *types.PipelineContext) {
		c.Script.Text = text
		c.Script.EstimatedDuration = duration
		c.Script.Templated = false
	}, nil
}

func (h *ScriptHandler) approve(payload Payload) (statemachine.Delta, error) {
	aspect := payload.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}
	now := h.clk.Now()
	return func(c *types.PipelineContext) {
		c.Script.ApprovedAt = &now
		c.Script.AspectRatio = aspect
	}, nil
}
