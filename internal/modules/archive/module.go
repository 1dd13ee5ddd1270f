package archive

import (
	"etf_agent/internal/modules/archive/service"
	"etf_agent/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("archive",
		fx.Provide(func(cfg *config.Config) *service.Archiver {
			return service.NewArchiver(cfg.Archive.Dir)
		}),
	)
}
