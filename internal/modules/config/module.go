package config

import (
	"context"

	"etf_agent/pkg/logger"
	"etf_agent/pkg/tracing"

	"go.uber.org/fx"
)

// Module грузит конфиг и сразу поднимает логгер и трейсер.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *Config) error {
			if err := logger.Init(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
			}); err != nil {
				return err
			}
			logger.SetServiceName("etf_agent")
			tracing.SetServiceName("etf_agent")
			logger.Info("effective config:\n%s", cfg.Redacted())

			_, closer, err := tracing.InitTracer(tracing.Config{
				Enabled: cfg.Tracing.Enabled,
				Host:    cfg.Tracing.Host,
				Port:    cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closer()
					logger.Sync()
					return nil
				},
			})
			return nil
		}),
	)
}
