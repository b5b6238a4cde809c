package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/blogcast/internal/types"
)

// PostgresStore is the optional durable tier backed by PostgreSQL. Each
// pipeline is one row holding the full JSON document plus denormalized
// columns for listing.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and verifies it.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the pipelines table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS pipelines (
			id            TEXT PRIMARY KEY,
			current_state TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			document      JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure pipelines schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Save upserts the document for pc.ID.
func (s *PostgresStore) Save(ctx context.Context, pc *types.PipelineContext) error {
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("refusing to save pipeline %s: %w", pc.ID, err)
	}
	document, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline %s: %w", pc.ID, err)
	}
	title := ""
	if pc.Item != nil {
		title = pc.Item.Title
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipelines (id, current_state, title, document, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET current_state = EXCLUDED.current_state,
		     title = EXCLUDED.title,
		     document = EXCLUDED.document,
		     updated_at = EXCLUDED.updated_at`,
		pc.ID, string(pc.CurrentState), title, document,
		pc.Metadata.CreatedAt, pc.Metadata.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline %s: %w", pc.ID, err)
	}
	return nil
}

// Get loads the document for id, or (nil, nil) when no row exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.PipelineContext, error) {
	var document []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM pipelines WHERE id = $1`, id,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pipeline %s: %w", id, err)
	}
	var pc types.PipelineContext
	if err := json.Unmarshal(document, &pc); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", id, err)
	}
	return &pc, nil
}

// GetAll loads every pipeline document, newest first.
func (s *PostgresStore) GetAll(ctx context.Context) ([]*types.PipelineContext, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document FROM pipelines ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var all []*types.PipelineContext
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, err
		}
		var pc types.PipelineContext
		if err := json.Unmarshal(document, &pc); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline document: %w", err)
		}
		all = append(all, &pc)
	}
	return all, rows.Err()
}

// Delete removes the row for id. Unknown ids are a no-op.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}
	return nil
}

// Summaries lists denormalized rows, newest first, without decoding the
// full documents.
func (s *PostgresStore) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, current_state, title, created_at, updated_at
		 FROM pipelines ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline summaries: %w", err)
	}
	defer rows.Close()

	var sums []Summary
	for rows.Next() {
		var sum Summary
		var state string
		if err := rows.Scan(&sum.ID, &state, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.CurrentState = types.State(state)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
