package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"rulebook-classifier/internal/common/config"
	"rulebook-classifier/internal/common/database"
	"rulebook-classifier/internal/common/logger"
)

// Backend is the rulebook source selected by configuration together with the
// connections it holds. Exactly one of Files and Postgres is set; Cache is set
// when Redis is enabled in front of PostgreSQL and answered a ping.
type Backend struct {
	Source   Source
	Files    *FileStore
	Postgres *PostgresStore
	Cache    *RedisCache

	closers []func() error
}

// Open builds the backend for cfg.Rulebooks.Source. For PostgreSQL it dials
// the database and creates the rulebooks table if needed. An unreachable
// Redis only disables the cache.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backend, error) {
	switch cfg.Rulebooks.Source {
	case config.SourceFile:
		files := NewFileStore(cfg.Rulebooks.Directory)
		return &Backend{Source: files, Files: files}, nil

	case config.SourcePostgres:
		return openPostgres(ctx, cfg, log)

	default:
		return nil, fmt.Errorf("unknown rulebook source %q", cfg.Rulebooks.Source)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backend, error) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	pgStore := NewPostgresStore(pg.DB)
	if err := pgStore.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	b := &Backend{
		Source:   pgStore,
		Postgres: pgStore,
		closers:  []func() error{pg.Close},
	}

	if !cfg.Database.Redis.Enabled {
		return b, nil
	}

	rdb := database.NewRedis(cfg.Database.Redis)
	if err := rdb.Ping(ctx); err != nil {
		log.Warn("redis unavailable, rulebook cache disabled", map[string]interface{}{
			"address": cfg.Database.Redis.Address,
			"error":   err.Error(),
		})
		rdb.Close()
		return b, nil
	}

	b.Cache = NewRedisCache(rdb.Client, pgStore, config.GetDuration(cfg.Rulebooks.CacheTTL), rdb.KeyPrefix, log)
	b.Source = b.Cache
	b.closers = append(b.closers, rdb.Close)
	return b, nil
}

// Close releases every connection the backend opened.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return stderrors.Join(errs...)
}
