package main

import (
	"context"
	"errors"
	"fmt"

	"jokeboard/internal/config"
	"jokeboard/internal/database"
	"jokeboard/internal/jokelist"
	"jokeboard/internal/natskv"
	"jokeboard/internal/source"
	"jokeboard/internal/storage"
	"jokeboard/pkg/logger"
)

// openStore connects the configured backend. The returned close func is
// never nil.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), noop, nil

	case config.BackendFile:
		files, err := storage.NewFile(cfg.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		return files, noop, nil

	case config.BackendSQLite:
		s, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Opened SQLite store", logger.String("path", cfg.SQLite.Path))
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close SQLite store", logger.Err(err))
			}
		}, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			var dbErr *database.ConnectionError
			if errors.As(err, &dbErr) {
				logger.Error("Failed to connect to database",
					logger.Err(dbErr),
					logger.String("host", cfg.Database.Host),
					logger.Int("port", cfg.Database.Port),
				)
			}
			return nil, noop, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Connected to database")
		return database.NewPostgresStore(db), db.Close, nil

	case config.BackendNATS:
		kv, err := natskv.New(ctx, cfg.NATS)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL), logger.String("bucket", cfg.NATS.Bucket))
		return kv, kv.Close, nil
	}

	return nil, noop, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage.Backend)
}

func controllerOptions(cfg *config.Config) []jokelist.Option {
	return []jokelist.Option{
		jokelist.WithCount(cfg.Jokes.Count),
		jokelist.WithMaxAttempts(cfg.Jokes.MaxAttempts),
		jokelist.WithFetchTimeout(cfg.Source.Timeout),
	}
}

// newController binds the single list the viewer and one-shot commands share.
func newController(cfg *config.Config, src jokelist.Source, store storage.Store) *jokelist.Controller {
	return jokelist.New(src, storage.Bind(store, cfg.Jokes.CollectionKey), controllerOptions(cfg)...)
}

// session opens the store and builds the controller against the real source.
func session(ctx context.Context) (*jokelist.Controller, func(), error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, closeStore, err
	}
	return newController(cfg, source.FromConfig(cfg.Source), store), closeStore, nil
}
