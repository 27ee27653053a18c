// internal/storage/factory.go
package storage

import (
	"context"
	"fmt"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

// Backend is a catalog store that can also be seeded and health-checked.
type Backend interface {
	catalog.Store
	catalog.Pinger
	Load(ctx context.Context, products []models.Product) (int, error)
}

// CloseFunc releases the connections behind a Backend.
type CloseFunc func(ctx context.Context) error

// Open connects the backend named by cfg.Catalog.Backend.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Backend, CloseFunc, error) {
	log = log.WithFields(map[string]interface{}{"backend": cfg.Catalog.Backend})
	noop := func(context.Context) error { return nil }

	switch cfg.Catalog.Backend {
	case config.BackendMongo:
		client, err := database.NewMongo(cfg.Database.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, nil, err
		}
		log.Info("Connected to catalog", map[string]interface{}{
			"database":   cfg.Database.Mongo.Database,
			"collection": cfg.Catalog.Collection,
		})
		return NewMongoCatalog(client.DB.Collection(cfg.Catalog.Collection), client.Ping), client.Close, nil

	case config.BackendPostgres:
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		closer := func(context.Context) error { return client.Close() }
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		store, err := NewPostgresCatalog(client.DB, cfg.Catalog.Table)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("Connected to catalog", map[string]interface{}{"table": cfg.Catalog.Table})
		return store, closer, nil

	case config.BackendElasticsearch:
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("Connected to catalog", map[string]interface{}{"index": cfg.Catalog.Index})
		return NewElasticCatalog(client.Client, cfg.Catalog.Index), noop, nil

	case config.BackendRedis:
		client := database.NewRedis(cfg.Database.Redis)
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("Connected to catalog", map[string]interface{}{"key_prefix": cfg.Catalog.KeyPrefix})
		return NewRedisCatalog(client.Client, cfg.Catalog.KeyPrefix), func(context.Context) error { return client.Close() }, nil

	case config.BackendMemory:
		store := NewMemoryCatalog()
		if cfg.Catalog.SeedFile != "" {
			products, err := ReadProducts(cfg.Catalog.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			if _, err := store.Load(ctx, products); err != nil {
				return nil, nil, err
			}
			log.Info("Seeded in-memory catalog", map[string]interface{}{
				"file":     cfg.Catalog.SeedFile,
				"products": len(products),
			})
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported catalog backend %q", cfg.Catalog.Backend)
	}
}

// Prepare creates the schema or index a backend needs before it can be loaded.
func Prepare(ctx context.Context, b Backend) error {
	switch s := b.(type) {
	case *PostgresCatalog:
		return s.EnsureSchema(ctx)
	case *ElasticCatalog:
		return s.EnsureIndex(ctx)
	default:
		return nil
	}
}
