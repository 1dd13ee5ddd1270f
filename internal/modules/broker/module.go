package broker

import (
	"context"

	"etf_agent/internal/modules/broker/service"
	"etf_agent/internal/modules/config"

	"go.uber.org/fx"
)

func NewClient(cfg *config.Config) (*service.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return service.NewClient(service.Config{
		URL:            cfg.Broker.URL,
		Account:        cfg.Broker.Account,
		Password:       cfg.Broker.Password,
		RequestTimeout: cfg.Broker.RequestTimeout,
		PageInterval:   cfg.Broker.PageInterval,
		Location:       loc,
	}), nil
}

// Module поднимает соединение с мостом терминала.
func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(NewClient),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.Run(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
