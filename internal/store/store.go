// Package store provides durable, id-keyed persistence of pipeline contexts
// with a two-tier fallback: a durable tier (file-backed or Postgres) is tried
// first, and a process-local in-memory tier takes over transparently once the
// durable tier fails.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/jonathan/blogcast/internal/types"
)

// Store is the persistence contract for pipeline contexts. Get returns
// (nil, nil) for unknown ids; GetAll and Summaries sort by recency.
type Store interface {
	Save(ctx context.Context, pc *types.PipelineContext) error
	Get(ctx context.Context, id string) (*types.PipelineContext, error)
	GetAll(ctx context.Context) ([]*types.PipelineContext, error)
	Delete(ctx context.Context, id string) error
	Summaries(ctx context.Context) ([]Summary, error)
}

// Summary is the lightweight listing row for one persisted pipeline.
type Summary struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	CurrentState types.State `json:"current_state"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func summarize(pc *types.PipelineContext) Summary {
	s := Summary{
		ID:           pc.ID,
		CurrentState: pc.CurrentState,
		CreatedAt:    pc.Metadata.CreatedAt,
		UpdatedAt:    pc.Metadata.UpdatedAt,
	}
	if pc.Item != nil {
		s.Title = pc.Item.Title
	}
	return s
}

func sortByRecency(all []*types.PipelineContext) {
	sort.Slice(all, func(i, j int) bool {
		return all[i].Metadata.UpdatedAt.After(all[j].Metadata.UpdatedAt)
	})
}

func summariesOf(all []*types.PipelineContext) []Summary {
	out := make([]Summary, 0, len(all))
	for _, pc := range all {
		out = append(out, summarize(pc))
	}
	return out
}
