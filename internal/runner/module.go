package runner

import (
	"context"
	"errors"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
	archive "etf_agent/internal/modules/archive/service"
	broker "etf_agent/internal/modules/broker/service"
	"etf_agent/internal/modules/config"
	decision "etf_agent/internal/modules/decision/service"
	health "etf_agent/internal/modules/health/service"
	market "etf_agent/internal/modules/market/service"
	orders "etf_agent/internal/modules/orders/service"
	phase "etf_agent/internal/modules/phase/service"
	recovery "etf_agent/internal/modules/recovery/service"
	storage "etf_agent/internal/modules/storage/service"
	"etf_agent/pkg/logger"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config      *config.Config
	Broker      *broker.Client
	Account     *orders.Account
	AccountSync *orders.Sync
	Scheduler   *orders.Scheduler
	Aggregator  *market.Aggregator
	Timeline    *market.Timeline
	History     *market.History
	HistoryDB   storage.BarStore `name:"history"`
	TodayDB     storage.BarStore `name:"today"`
	Recovery    *recovery.Coordinator
	Phase       *phase.Tracker
	Decision    *decision.Client
	Archiver    *archive.Archiver
	State       *health.State
	Metrics     *health.Metrics
}

func NewSettings(cfg *config.Config) (Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, err
	}
	open, err := helper.ParseClock(cfg.Market.Open)
	if err != nil {
		return Settings{}, err
	}
	closeAt, err := helper.ParseClock(cfg.Market.Close)
	if err != nil {
		return Settings{}, err
	}
	holidays, err := cfg.HolidaySet()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Codes:          models.Codes(cfg.Candidates),
		Location:       loc,
		Open:           open,
		Close:          closeAt,
		PreOpenWindow:  cfg.Market.PreOpenWindow,
		Holidays:       holidays,
		HistoryDays:    cfg.Storage.HistoryDays,
		StallTolerance: 5 * time.Second,
		ConnectTimeout: time.Minute,
	}, nil
}

func NewRunner(set Settings, p Params) *Runner {
	p.Broker.OnConnection(p.State.SetWSConnected)
	return New(set, Components{
		Events:      p.Broker,
		Account:     p.Account,
		AccountSync: p.AccountSync,
		Scheduler:   p.Scheduler,
		Aggregator:  p.Aggregator,
		Timeline:    p.Timeline,
		History:     p.History,
		HistoryDB:   p.HistoryDB,
		TodayDB:     p.TodayDB,
		Recovery:    p.Recovery,
		Phase:       p.Phase,
		Predictor:   p.Decision,
		Archiver:    p.Archiver,
		State:       p.State,
		Metrics:     p.Metrics,
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(NewSettings, NewRunner),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner, sd fx.Shutdowner) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						if err := r.Prepare(ctx); err != nil {
							if errors.Is(err, context.Canceled) {
								return
							}
							logger.Warn("[RUNNER] not starting: %v", err)
							_ = sd.Shutdown()
							return
						}
						r.Run(ctx)
						if r.Finished() {
							_ = sd.Shutdown()
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
