package orders

import (
	"etf_agent/internal/models"
	broker "etf_agent/internal/modules/broker/service"
	"etf_agent/internal/modules/config"
	"etf_agent/internal/modules/orders/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("orders",
		fx.Provide(
			func(cfg *config.Config) *service.Account {
				return service.NewAccount(cfg.Orders.FeeRate)
			},
			func(c *broker.Client, acc *service.Account) *service.Sync {
				return service.NewSync(c, acc)
			},
			func(cfg *config.Config, acc *service.Account, c *broker.Client, sync *service.Sync) *service.Scheduler {
				return service.NewScheduler(cfg.Candidates, models.DecisionTag(cfg.Decision.NeutralTag), acc, c, sync)
			},
		),
	)
}
