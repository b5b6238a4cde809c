// Package pipeline provides the high-level orchestration of a blogcast run:
// it owns the state machines, routes actions to stage handlers, folds handler
// failures into the ERROR state, and persists every applied transition.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/clock"
	"github.com/jonathan/blogcast/internal/history"
	"github.com/jonathan/blogcast/internal/stages"
	"github.com/jonathan/blogcast/internal/statemachine"
	"github.com/jonathan/blogcast/internal/store"
	"github.com/jonathan/blogcast/internal/types"
)

// persistTimeout bounds the save triggered by a transition listener.
const persistTimeout = 10 * time.Second

// Orchestrator drives pipelines end to end. It is safe for concurrent use;
// actions on the same orchestrator are serialized.
type Orchestrator struct {
	mu       sync.Mutex
	store    store.Store
	handlers []stages.Handler
	clk      clock.Clock
	logger   zerolog.Logger
	machines map[string]*statemachine.Machine
}

// Options configures an Orchestrator.
type Options struct {
	Store    store.Store
	Handlers []stages.Handler
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// New constructs an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Orchestrator{
		store:    opts.Store,
		handlers: opts.Handlers,
		clk:      opts.Clock,
		logger:   opts.Logger,
		machines: make(map[string]*statemachine.Machine),
	}
}

// Start creates a new pipeline for item and persists its initial context.
func (o *Orchestrator) Start(ctx context.Context, item *types.BlogItem) (*types.PipelineContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := uuid.New().String()
	m := statemachine.NewPipeline(id, item, o.clk)
	o.attach(m)
	o.machines[id] = m

	if err := o.store.Save(ctx, m.Context()); err != nil {
		delete(o.machines, id)
		return nil, err
	}

	o.logger.Info().Str("pipeline_id", id).Str("title", item.Title).Msg("pipeline started")
	return m.Context(), nil
}

// ExecuteAction applies a user action to the pipeline. Stage-starting actions
// transition into the mid-flight state first, then the handler runs and the
// same action is applied again to complete the hop. A handler failure moves
// the pipeline to ERROR, keeping whatever partial progress the handler
// reported, and the original error is returned alongside the error context.
func (o *Orchestrator) ExecuteAction(ctx context.Context, id string, action types.Action, payload stages.Payload) (*types.PipelineContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if action.Universal() {
		return nil, &types.InvalidTransitionError{State: m.Context().CurrentState, Action: action}
	}
	if !m.ActionLegal(action) {
		return nil, &types.InvalidTransitionError{State: m.Context().CurrentState, Action: action}
	}

	// Resolve the handler before touching the machine so a missing handler
	// cannot leave the pipeline stranded mid-flight.
	lookupState := m.Context().CurrentState
	entry, starts := statemachine.EntryState(lookupState, action)
	if starts {
		lookupState = entry
	}
	h := stages.Find(o.handlers, lookupState, action)
	if h == nil {
		return nil, types.ErrNoHandler
	}

	if starts {
		if _, err := m.Transition(action, nil); err != nil {
			return nil, err
		}
	}

	delta, herr := h.Execute(ctx, action, m.Context(), payload)
	if herr != nil {
		pe := &types.PipelineError{
			Message:    herr.Error(),
			State:      m.Context().CurrentState,
			Action:     action,
			OccurredAt: o.clk.Now(),
		}
		errCtx, eerr := m.HandleError(pe, delta)
		if eerr != nil {
			o.logger.Error().Err(eerr).Str("pipeline_id", id).
				Msg("failed to record pipeline error")
			return nil, herr
		}
		o.logger.Error().Err(herr).Str("pipeline_id", id).
			Str("action", string(action)).Msg("stage failed")
		return errCtx, herr
	}

	return m.Transition(action, delta)
}

// RestartFromState rolls the pipeline back to target, clearing downstream
// stage data and any error record.
func (o *Orchestrator) RestartFromState(ctx context.Context, id string, target types.State) (*types.PipelineContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	pc, err := m.RestartFromState(target)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Str("pipeline_id", id).Str("target", string(target)).Msg("pipeline rolled back")
	return pc, nil
}

// GetContext returns the current context of a pipeline.
func (o *Orchestrator) GetContext(ctx context.Context, id string) (*types.PipelineContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.Context(), nil
}

// ValidActions returns the non-universal actions legal in the pipeline's
// current state.
func (o *Orchestrator) ValidActions(ctx context.Context, id string) ([]types.Action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.ValidActions(), nil
}

// AuditTrail returns the formatted transition history of a pipeline.
func (o *Orchestrator) AuditTrail(ctx context.Context, id string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return history.FormatTrail(m.Context().History), nil
}

// GetAll returns every persisted pipeline, most recently updated first.
func (o *Orchestrator) GetAll(ctx context.Context) ([]*types.PipelineContext, error) {
	return o.store.GetAll(ctx)
}

// Summaries returns listing rows for every persisted pipeline, most recently
// updated first.
func (o *Orchestrator) Summaries(ctx context.Context) ([]store.Summary, error) {
	return o.store.Summaries(ctx)
}

// Delete removes a pipeline from the store and drops its machine.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	delete(o.machines, id)
	return nil
}

// load returns the machine for id, reconstructing it from the store when this
// orchestrator has not touched the pipeline yet.
func (o *Orchestrator) load(ctx context.Context, id string) (*statemachine.Machine, error) {
	if m, ok := o.machines[id]; ok {
		return m, nil
	}

	pc, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, types.ErrPipelineNotFound
	}

	m := statemachine.New(pc, o.clk)
	o.attach(m)
	o.machines[id] = m
	return m, nil
}

// attach subscribes persistence to the machine's transitions. The listener
// runs synchronously inside the transition, so by the time an action returns
// the new state has been offered to the store; a failing durable tier is the
// fallback store's problem, not the caller's.
func (o *Orchestrator) attach(m *statemachine.Machine) {
	m.OnTransition(func(evt statemachine.TransitionEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.store.Save(ctx, evt.Context); err != nil {
			o.logger.Error().Err(err).Str("pipeline_id", evt.PipelineID).
				Str("state", string(evt.To)).Msg("failed to persist transition")
		}
	})
}
