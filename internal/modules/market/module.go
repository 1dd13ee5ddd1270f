package market

import (
	"etf_agent/internal/models"
	"etf_agent/internal/modules/config"
	"etf_agent/internal/modules/market/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			service.NewAggregator,
			service.NewHistory,
			func(cfg *config.Config) *service.Timeline {
				return service.NewTimeline(models.Codes(cfg.Candidates))
			},
			func(cfg *config.Config, tl *service.Timeline, h *service.History) *service.SessionStart {
				return service.NewSessionStart(tl, h, cfg.Market.OpenGrace)
			},
		),
	)
}
