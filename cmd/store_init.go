package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-api/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	ttl := time.Duration(cfg.Analysis.ResultTTLHours) * time.Hour

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "insight.db"
		}
		return store.NewSQLite(dsn, ttl)
	case "postgres":
		poolCfg := &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg, ttl)
	case "memory":
		return store.NewMemory(ttl), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
