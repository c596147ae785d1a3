package service

import (
	"context"
	"fmt"

	"github.com/okian/lounge/internal/adapters/repository"
	"github.com/okian/lounge/internal/config"
)

// OpenStore opens the player store selected by cfg.StoreBackend. A bare
// MongoHost is expanded to mongodb://host:27017 unless MongoURI is set.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case repository.BackendMemory:
		return repository.NewMemoryStore(ctx, repository.WithShardCount(cfg.ShardCount)), nil
	case repository.BackendMongo:
		uri := cfg.MongoURI
		if uri == "" {
			uri = repository.MongoURI(cfg.MongoHost)
		}
		store, err := repository.NewMongoStore(ctx, uri,
			repository.WithMongoDatabase(cfg.MongoDatabase),
			repository.WithMongoCollection(cfg.MongoCollection),
		)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return store, nil
	case repository.BackendPostgres:
		store, err := repository.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case repository.BackendSQLite:
		store, err := repository.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownStore, cfg.StoreBackend)
	}
}
