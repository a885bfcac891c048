package results

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/coverage-server/pkg/config"
)

// Backend is an opened result store together with its lifecycle hooks.
type Backend struct {
	Name  string
	Store Store
	Ping  func(ctx context.Context) error
	// Purge deletes expired results. Nil when the backend expires keys itself.
	Purge func(ctx context.Context) (int64, error)
	Close func() error
}

// Open connects the backend selected by cfg.Results.Backend. Postgres
// migrations are applied from migrationsDir when it is non-empty.
func Open(ctx context.Context, cfg *config.Config, migrationsDir string, logger *slog.Logger) (*Backend, error) {
	switch cfg.Results.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := NewRedisStore(client, cfg.Results.Expires)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("result backend connected", "backend", cfg.Results.Backend, "addr", cfg.Redis.Addr)
		return &Backend{
			Name:  config.BackendRedis,
			Store: store,
			Ping:  store.Ping,
			Close: client.Close,
		}, nil

	case config.BackendPostgres:
		db, err := Connect(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		if migrationsDir != "" {
			applied, err := RunMigrations(ctx, db, migrationsDir)
			if err != nil {
				db.Close()
				return nil, err
			}
			logger.Info("migrations applied", "files", applied)
		}
		store := NewPostgresStore(db, cfg.Results.Expires)
		logger.Info("result backend connected", "backend", cfg.Results.Backend, "host", cfg.Database.Host, "db", cfg.Database.DBName)
		return &Backend{
			Name:  config.BackendPostgres,
			Store: store,
			Ping:  store.Ping,
			Purge: store.PurgeExpired,
			Close: db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown result backend %q", cfg.Results.Backend)
}
