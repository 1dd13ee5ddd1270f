package storage

import (
	"context"
	"fmt"

	"etf_agent/internal/modules/config"
	"etf_agent/internal/modules/storage/service"
	"etf_agent/pkg/db"
	"etf_agent/pkg/logger"

	"go.uber.org/fx"
)

// Stores: две логические серии, история (до вчера) и текущий день.
type Stores struct {
	fx.Out

	History service.BarStore `name:"history"`
	Today   service.BarStore `name:"today"`
}

func newStores(lc fx.Lifecycle, cfg *config.Config) (Stores, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		logger.Info("[STORAGE] driver=memory")
		return Stores{
			History: service.NewMemoryStore(cfg.Storage.HistoryTable),
			Today:   service.NewMemoryStore(cfg.Storage.TodayTable),
		}, nil
	case "postgres":
		return newPgStores(lc, cfg)
	default:
		return Stores{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newPgStores(lc fx.Lifecycle, cfg *config.Config) (Stores, error) {
	ctx := context.Background()
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: cfg.DB,
	})
	if err != nil {
		return Stores{}, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	err = poolMaster.Ping(ctx)
	if err != nil {
		poolMaster.Close()
		return Stores{}, err
	}

	loc, err := cfg.Location()
	if err != nil {
		poolMaster.Close()
		return Stores{}, err
	}

	tx := db.NewPgTxManager(poolMaster)
	history, err := service.NewPgStore(tx, cfg.Storage.HistoryTable, loc)
	if err != nil {
		tx.Close()
		return Stores{}, err
	}
	today, err := service.NewPgStore(tx, cfg.Storage.TodayTable, loc)
	if err != nil {
		tx.Close()
		return Stores{}, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, s := range []*service.PgStore{history, today} {
				if err := s.EnsureSchema(ctx); err != nil {
					return err
				}
			}
			logger.Info("[STORAGE] driver=postgres tables=%s,%s", history.Name(), today.Name())
			return nil
		},
		OnStop: func(context.Context) error {
			tx.Close()
			return nil
		},
	})

	return Stores{History: history, Today: today}, nil
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(newStores),
	)
}
