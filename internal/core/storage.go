package core

import (
	"context"
	"fmt"

	"ecodcluster/internal/config"
	"ecodcluster/internal/infra/persistence/memory"
	"ecodcluster/internal/infra/persistence/postgres"
	"ecodcluster/internal/infra/persistence/sqlite"
	"ecodcluster/pkg/domain"
)

// OpenClusterSource selects a backend from cfg. Defaults to sqlite when the
// driver is unset.
//
//	memory:   in-process snapshot, seeded from FixturePath when set
//	sqlite:   local database file, seeded from FixturePath when it holds no clusters
//	postgres: the clustering pipeline's database, read-only
func OpenClusterSource(ctx context.Context, cfg config.Storage) (domain.ClusterSource, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	switch driver {
	case config.StorageMemory:
		if cfg.FixturePath == "" {
			return memory.NewStore(), nil
		}
		snap, err := memory.LoadSnapshotFile(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return memory.NewStoreFromSnapshot(snap), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.FixturePath != "" {
			if err := seedIfEmpty(ctx, store, cfg.FixturePath); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("seed sqlite: %w", err)
			}
		}
		return store, nil
	case config.StoragePostgres:
		if cfg.FixturePath != "" {
			return nil, fmt.Errorf("postgres source is read-only; fixture %s cannot be imported", cfg.FixturePath)
		}
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

func seedIfEmpty(ctx context.Context, store *sqlite.Store, fixturePath string) error {
	existing, err := store.ListClusters(ctx, domain.ClusterFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	snap, err := memory.LoadSnapshotFile(fixturePath)
	if err != nil {
		return err
	}
	return store.Import(ctx, snap)
}
