package assets

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

	"github.com/google/uuid"
)

// LocalCatalog implements Catalog on the local filesystem. It is intended
// for development and test environments where the real catalog service is
// not available. Media lands under basePath/media and the url/job indexes
// live in a single JSON file next to it.
type LocalCatalog struct {
	basePath string
	mu       sync.Mutex
}

type localIndex struct {
	ByURL map[string]string `json:"by_url"` // source url -> asset id
	Jobs  map[string]string `json:"jobs"`   // provider job id -> result url
}

// NewLocalCatalog initializes a LocalCatalog rooted at basePath.
func NewLocalCatalog(basePath string) (*LocalCatalog, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("catalog: base path is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "media"), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: ensure base path: %w", err)
	}
	return &LocalCatalog{basePath: basePath}, nil
}

func (c *LocalCatalog) indexPath() string {
	return filepath.Join(c.basePath, "index.json")
}

func (c *LocalCatalog) loadIndex() (*localIndex, error) {
	idx := &localIndex{ByURL: map[string]string{}, Jobs: map[string]string{}}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("catalog: read index: %w", err)
	}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("catalog: decode index: %w", err)
	}
	return idx, nil
}

func (c *LocalCatalog) saveIndex(idx *localIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode index: %w", err)
	}
	if err := os.WriteFile(c.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("catalog: write index: %w", err)
	}
	return nil
}

// Resolve returns the asset id recorded for sourceURL, or "" when unknown.
func (c *LocalCatalog) Resolve(ctx context.Context, sourceURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.loadIndex()
	if err != nil {
		return "", err
	}
	return idx.ByURL[sourceURL], nil
}

// Ingest writes the media bytes to disk and returns a fresh asset id. Name
// is sanitized to a bare filename to keep writes inside the media directory.
func (c *LocalCatalog) Ingest(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("catalog: asset data is empty")
	}
	assetID := uuid.New().String()
	ext := filepath.Ext(filepath.Base(name))
	target := filepath.Join(c.basePath, "media", assetID+ext)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("catalog: write media: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.loadIndex()
	if err != nil {
		return "", err
	}
	idx.ByURL[name] = assetID
	if err := c.saveIndex(idx); err != nil {
		return "", err
	}
	return assetID, nil
}

// RegisterJob records the provider job id alongside its result URL.
func (c *LocalCatalog) RegisterJob(ctx context.Context, jobID, resultURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if jobID == "" {
		return errors.New("catalog: job id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.loadIndex()
	if err != nil {
		return err
	}
	idx.Jobs[jobID] = resultURL
	return c.saveIndex(idx)
}

var _ Catalog = (*LocalCatalog)(nil)
