package recovery

import (
	"etf_agent/internal/models"
	archive "etf_agent/internal/modules/archive/service"
	broker "etf_agent/internal/modules/broker/service"
	"etf_agent/internal/modules/config"
	market "etf_agent/internal/modules/market/service"
	"etf_agent/internal/modules/recovery/service"
	storage "etf_agent/internal/modules/storage/service"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config   *config.Config
	Broker   *broker.Client
	Today    storage.BarStore `name:"today"`
	Timeline *market.Timeline
	History  *market.History
	Archiver *archive.Archiver
}

func NewCoordinator(p Params) *service.Coordinator {
	return service.NewCoordinator(service.Deps{
		Codes:    models.Codes(p.Config.Candidates),
		Fetcher:  p.Broker,
		Today:    p.Today,
		Timeline: p.Timeline,
		History:  p.History.Series,
		Archiver: p.Archiver,
	})
}

func Module() fx.Option {
	return fx.Module("recovery",
		fx.Provide(NewCoordinator),
	)
}
