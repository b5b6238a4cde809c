package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jonathan/blogcast/internal/types"
)

// MemoryStore is the process-local degraded tier. Contents are deep-copied
// on the way in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	pipelines map[string]*types.PipelineContext
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pipelines: make(map[string]*types.PipelineContext)}
}

// Save overwrites the record for pc.ID.
func (s *MemoryStore) Save(ctx context.Context, pc *types.PipelineContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pc.ID == "" {
		return errors.New("store: pipeline id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[pc.ID] = pc.Clone()
	return nil
}

// Get returns the record for id, or (nil, nil) when unknown.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.PipelineContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.pipelines[id]
	if !ok {
		return nil, nil
	}
	return pc.Clone(), nil
}

// GetAll returns every record, newest first.
func (s *MemoryStore) GetAll(ctx context.Context) ([]*types.PipelineContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*types.PipelineContext, 0, len(s.pipelines))
	for _, pc := range s.pipelines {
		all = append(all, pc.Clone())
	}
	sortByRecency(all)
	return all, nil
}

// Delete removes the record for id. Unknown ids are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pipelines, id)
	return nil
}

// Summaries lists every record, newest first.
func (s *MemoryStore) Summaries(ctx context.Context) ([]Summary, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return summariesOf(all), nil
}

var _ Store = (*MemoryStore)(nil)
