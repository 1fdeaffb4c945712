package main

import (
	"context"
	"fmt"

	"replaywatch/internal/config"
	"replaywatch/internal/storage"
	"replaywatch/internal/storage/postgres"
	"replaywatch/internal/storage/sqlite"
)

type closableStore interface {
	storage.Storer
	Close() error
}

// openStore connects to the database named by the config.
func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}
