package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/config"
	"github.com/hrm8/assistant/internal/store"
)

// businessStore is a store.Store that can also be seeded.
type businessStore interface {
	store.Store
	Load(ctx context.Context, fx store.Fixtures) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return cfg, nil
}

// openBusinessStore connects to Postgres when database_url is set and falls
// back to the sqlite file in the data directory.
func openBusinessStore(ctx context.Context, cfg *config.Config) (businessStore, error) {
	if cfg.DatabaseURL != "" {
		st, err := store.Connect(ctx, cfg.DatabaseURL, 10)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Debug().Str("backend", "postgres").Msg("business_store_opened")
		return st, nil
	}
	st, err := store.NewSQLite(ctx, cfg.BusinessDBPath())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("backend", "sqlite").Str("path", cfg.BusinessDBPath()).Msg("business_store_opened")
	return st, nil
}

func openAuditStore(cfg *config.Config) (*audit.Store, error) {
	st, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return st, nil
}
