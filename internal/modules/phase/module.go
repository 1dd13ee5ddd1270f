package phase

import (
	market "etf_agent/internal/modules/market/service"
	"etf_agent/internal/modules/phase/service"
	recovery "etf_agent/internal/modules/recovery/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("phase",
		fx.Provide(func(opener *market.SessionStart, coord *recovery.Coordinator) *service.Tracker {
			return service.NewTracker(opener, coord)
		}),
	)
}
