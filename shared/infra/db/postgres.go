package db

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nastyazhadan/perp-trader/shared/infra/db/migrator"
)

// SetupDB opens a pool and migrates the schema before returning it.
func SetupDB(ctx context.Context, dbURI string, migrationsFS fs.FS) (*pgxpool.Pool, error) {
	pool, err := NewPgxPool(ctx, dbURI)
	if err != nil {
		return nil, fmt.Errorf("NewPgxPool: %w", err)
	}

	if _, err := Migrate(ctx, pool, migrationsFS); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Migrate runs pending migrations over an existing pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrationsFS fs.FS) (int, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	applied, err := migrator.NewMigrator(sqlDB, migrationsFS).Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrator.Up: %w", err)
	}

	return applied, nil
}

func NewPgxPool(ctx context.Context, dbURI string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURI)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	return pool, nil
}
