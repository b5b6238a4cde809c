package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jonathan/blogcast/internal/assets"
	"github.com/jonathan/blogcast/internal/config"
	"github.com/jonathan/blogcast/internal/llm"
	"github.com/jonathan/blogcast/internal/logging"
	"github.com/jonathan/blogcast/internal/pipeline"
	"github.com/jonathan/blogcast/internal/providers/avatar"
	"github.com/jonathan/blogcast/internal/providers/compose"
	"github.com/jonathan/blogcast/internal/stages"
	"github.com/jonathan/blogcast/internal/store"
)

// app bundles everything a command needs, plus a cleanup function.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	orchestrator *pipeline.Orchestrator
	close        func()
}

// buildApp assembles the orchestrator from configuration. Stage handlers for
// providers that are not configured are simply not registered; their actions
// then fail with a clear "no handler" error instead of a connection error.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	logger := logging.New(flagVerbose || cfg.Verbose)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var durable store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		cleanups = append(cleanups, pg.Close)
		durable = pg
	} else {
		fs, err := store.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		durable = fs
	}
	st := store.NewFallbackStore(durable, logger)

	catalog, err := buildCatalog(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}

	handlers, err := buildHandlers(ctx, cfg, logger, catalog, &cleanups)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		orchestrator: pipeline.New(pipeline.Options{
			Store:    st,
			Handlers: handlers,
			Logger:   logger,
		}),
		close: cleanup,
	}, nil
}

func buildCatalog(cfg *config.Config) (assets.Catalog, error) {
	if cfg.CatalogBaseURL != "" {
		return assets.NewClient(assets.ClientOptions{BaseURL: cfg.CatalogBaseURL})
	}
	return assets.NewLocalCatalog(filepath.Join(cfg.StorageDir, "assets"))
}

func buildHandlers(ctx context.Context, cfg *config.Config, logger zerolog.Logger, catalog assets.Catalog, cleanups *[]func()) ([]stages.Handler, error) {
	var handlers []stages.Handler

	model, err := llm.NewClient(ctx, nil, cfg.GeminiAPIKey)
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		logger.Debug().Msg("no Gemini API key configured, scripts will be templated")
		model = nil
	case err != nil:
		return nil, err
	default:
		*cleanups = append(*cleanups, func() { _ = model.Close() })
	}
	handlers = append(handlers, stages.NewScriptHandler(stages.ScriptOptions{
		LLM:            model,
		Logger:         logger,
		WordsPerSecond: cfg.WordsPerSecond,
	}))

	if cfg.AvatarBaseURL != "" {
		client, err := avatar.NewClient(avatar.Options{
			BaseURL: cfg.AvatarBaseURL,
			APIKey:  cfg.AvatarAPIKey,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, stages.NewAvatarHandler(stages.AvatarOptions{
			Client:              client,
			Catalog:             catalog,
			Logger:              logger,
			PollInterval:        cfg.PollInterval(),
			MaxPollAttempts:     cfg.MaxPollAttempts,
			SimilarityThreshold: cfg.SimilarityThreshold,
		}))
	} else {
		logger.Debug().Msg("no avatar provider configured")
	}

	if cfg.ComposeBaseURL != "" {
		client, err := compose.NewClient(compose.Options{BaseURL: cfg.ComposeBaseURL})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, stages.NewCompositionHandler(stages.CompositionOptions{
			Client:          client,
			Catalog:         catalog,
			Logger:          logger,
			PollInterval:    cfg.PollInterval(),
			MaxPollAttempts: cfg.MaxPollAttempts,
		}))
	} else {
		logger.Debug().Msg("no composition engine configured")
	}

	handlers = append(handlers, stages.NewReleaseHandler(logger))
	return handlers, nil
}
