package storage

import (
	"context"
	"fmt"

	"NewsAnalyst/internal/ports"
)

// Store is an ArticleStore that owns resources.
type Store interface {
	ports.ArticleStore
	Close() error
}

// Open builds the store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		repo *SQLRepository
		err  error
	)
	switch driver {
	case "postgres":
		repo, err = OpenPostgres(ctx, dsn)
	case "sqlite":
		repo, err = OpenSQLite(ctx, dsn)
	case "memory":
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}
