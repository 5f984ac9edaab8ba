package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"order-display/config"
)

// Pool is set by Init and shared by the migrate command and the postgres history store.
var Pool *pgxpool.Pool

func Init(ctx context.Context, cfg config.DBConfig) error {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	Pool = pool
	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
