package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/blogcast/internal/types"
)

// FileStore persists one JSON document per pipeline id under a base
// directory. Writes go through a temp file and rename so a crash mid-write
// never leaves a truncated document behind.
type FileStore struct {
	dir string
}

// NewFileStore initializes a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store: base directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the configured root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) (string, error) {
	if id == "" {
		return "", errors.New("store: pipeline id is required")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("store: invalid pipeline id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Save overwrites the document for pc.ID.
func (s *FileStore) Save(ctx context.Context, pc *types.PipelineContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("store: refusing to save pipeline %s: %w", pc.ID, err)
	}
	path, err := s.path(pc.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal pipeline %s: %w", pc.ID, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write pipeline %s: %w", pc.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit pipeline %s: %w", pc.ID, err)
	}
	return nil
}

// Get loads the document for id, or (nil, nil) when it does not exist.
func (s *FileStore) Get(ctx context.Context, id string) (*types.PipelineContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read pipeline %s: %w", id, err)
	}
	var pc types.PipelineContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("store: decode pipeline %s: %w", id, err)
	}
	return &pc, nil
}

// GetAll loads every persisted pipeline, newest first.
func (s *FileStore) GetAll(ctx context.Context) ([]*types.PipelineContext, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list pipelines: %w", err)
	}

	var (
		mu  sync.Mutex
		all []*types.PipelineContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		g.Go(func() error {
			pc, err := s.Get(gctx, id)
			if err != nil {
				return err
			}
			if pc == nil {
				return nil
			}
			mu.Lock()
			all = append(all, pc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortByRecency(all)
	return all, nil
}

// Delete removes the document for id. Deleting an unknown id is a no-op.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete pipeline %s: %w", id, err)
	}
	return nil
}

// Summaries lists every persisted pipeline, newest first.
func (s *FileStore) Summaries(ctx context.Context) ([]Summary, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return summariesOf(all), nil
}

var _ Store = (*FileStore)(nil)
