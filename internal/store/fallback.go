package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/types"
)

// FallbackStore wraps a durable tier with a sticky in-memory fallback. The
// first durable-tier failure flips the store into degraded mode for the rest
// of the process lifetime; every subsequent operation goes to memory. The
// switch is logged once.
type FallbackStore struct {
	durable  Store
	memory   *MemoryStore
	logger   zerolog.Logger
	mu       sync.Mutex
	degraded bool
}

// NewFallbackStore wraps durable with an empty in-memory fallback tier.
func NewFallbackStore(durable Store, logger zerolog.Logger) *FallbackStore {
	return &FallbackStore{
		durable: durable,
		memory:  NewMemoryStore(),
		logger:  logger,
	}
}

// Degraded reports whether the store has fallen back to the in-memory tier.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		s.logger.Warn().Err(err).Str("op", op).
			Msg("durable store unavailable, falling back to in-memory storage")
	}
}

// Save writes to the durable tier, or to memory once degraded. A context
// that fails validation is rejected without touching either tier.
func (s *FallbackStore) Save(ctx context.Context, pc *types.PipelineContext) error {
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("store: refusing to save pipeline %s: %w", pc.ID, err)
	}
	if !s.Degraded() {
		if err := s.durable.Save(ctx, pc); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		} else {
			s.degrade("save", err)
		}
	}
	return s.memory.Save(ctx, pc)
}

// Get reads from the active tier; (nil, nil) for unknown ids.
func (s *FallbackStore) Get(ctx context.Context, id string) (*types.PipelineContext, error) {
	if !s.Degraded() {
		pc, err := s.durable.Get(ctx, id)
		if err == nil {
			return pc, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		s.degrade("get", err)
	}
	return s.memory.Get(ctx, id)
}

// GetAll lists from the active tier, newest first.
func (s *FallbackStore) GetAll(ctx context.Context) ([]*types.PipelineContext, error) {
	if !s.Degraded() {
		all, err := s.durable.GetAll(ctx)
		if err == nil {
			return all, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		s.degrade("getAll", err)
	}
	return s.memory.GetAll(ctx)
}

// Delete removes from the active tier.
func (s *FallbackStore) Delete(ctx context.Context, id string) error {
	if !s.Degraded() {
		err := s.durable.Delete(ctx, id)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		s.degrade("delete", err)
	}
	return s.memory.Delete(ctx, id)
}

// Summaries lists from the active tier, newest first.
func (s *FallbackStore) Summaries(ctx context.Context) ([]Summary, error) {
	if !s.Degraded() {
		sums, err := s.durable.Summaries(ctx)
		if err == nil {
			return sums, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		s.degrade("summaries", err)
	}
	return s.memory.Summaries(ctx)
}

var _ Store = (*FallbackStore)(nil)
