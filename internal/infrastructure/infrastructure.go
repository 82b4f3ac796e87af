// Package infrastructure assembles the shared systems every domain package
// depends on: logging, lifecycle, database, blob storage, cache, broadcast,
// and token verification.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/broadcast"
	"github.com/practicanteticPX/docuprex/pkg/cache"
	"github.com/practicanteticPX/docuprex/pkg/database"
	"github.com/practicanteticPX/docuprex/pkg/lifecycle"
	"github.com/practicanteticPX/docuprex/pkg/storage"
)

type Infrastructure struct {
	Lifecycle   *lifecycle.Coordinator
	Logger      *slog.Logger
	Database    database.System
	Storage     storage.System
	Cache       cache.System
	Broadcaster broadcast.System
	Verifier    auth.Verifier
}

// New initializes every system without starting any of them. OIDC discovery,
// when configured, runs against ctx.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := newLogger(cfg.Env())

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	c := cache.New(&cfg.Cache, logger)

	verifier, err := auth.New(ctx, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:   lc,
		Logger:      logger,
		Database:    db,
		Storage:     store,
		Cache:       c,
		Broadcaster: broadcast.New(c.Client(), c.Prefix(), logger),
		Verifier:    verifier,
	}, nil
}

// Start registers startup and shutdown hooks for database, storage, and cache.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Cache.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("cache start failed: %w", err)
	}
	return nil
}

// newLogger writes text locally and JSON everywhere else.
func newLogger(env string) *slog.Logger {
	if env == "local" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
