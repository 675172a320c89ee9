package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kernlog/pump-sniper/internal/config"
	"github.com/Kernlog/pump-sniper/internal/journal"
	chstore "github.com/Kernlog/pump-sniper/internal/storage/clickhouse"
	"github.com/Kernlog/pump-sniper/internal/storage/memory"
	"github.com/Kernlog/pump-sniper/internal/storage/migrations"
	pgstore "github.com/Kernlog/pump-sniper/internal/storage/postgres"
)

// openStores picks journal backends. Each empty DSN falls back to memory.
func openStores(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (journal.Stores, func(), error) {
	stores := journal.Stores{
		Tokens:    memory.NewTokenStore(),
		Attempts:  memory.NewBuyAttemptStore(),
		Snapshots: memory.NewMarketSnapshotStore(),
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return stores, closeAll, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return stores, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Tokens = pgstore.NewTokenStore(pool)
		stores.Attempts = pgstore.NewBuyAttemptStore(pool)
		log.Info("journal: postgres enabled")
	} else {
		log.Info("journal: POSTGRES_DSN not set, tokens and buy attempts kept in memory")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			closeAll()
			return stores, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		stores.Snapshots = chstore.NewMarketSnapshotStore(conn)
		log.Info("journal: clickhouse enabled")
	} else {
		log.Info("journal: CLICKHOUSE_DSN not set, market snapshots kept in memory")
	}

	return stores, closeAll, nil
}
