package decision

import (
	"etf_agent/internal/modules/config"
	"etf_agent/internal/modules/decision/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("decision",
		fx.Provide(func(cfg *config.Config) *service.Client {
			return service.NewClient(cfg.Decision.URL, cfg.Decision.Window, cfg.Decision.Timeout, cfg.Candidates)
		}),
	)
}
