package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"portal-minigame-server/config"
	"portal-minigame-server/storage"
	"portal-minigame-server/storage/bolt"
	"portal-minigame-server/storage/memory"
)

// openStore picks Postgres, then bbolt, then memory, and seeds the configured prize.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := selectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if prize, ok := cfg.SeedPrize(); ok {
		if err := store.SetPrize(ctx, cfg.PortalName, prize); err != nil {
			store.Close()
			return nil, fmt.Errorf("seeding prize: %w", err)
		}
		slog.Info("prize seeded", "tag", "storage", "portal", cfg.PortalName, "score", prize.Score)
	}
	return store, nil
}

func selectStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	pg, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to Postgres: %w", err)
	}
	if pg != nil {
		return pg, nil
	}

	bs, err := bolt.Open(cfg.BoltPath, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if bs != nil {
		return bs, nil
	}

	slog.Warn("no DATABASE_URL or BOLT_PATH, farm records live in memory only", "tag", "storage")
	return memory.New(), nil
}
