package main

import (
	"etf_agent/internal/modules/archive"
	"etf_agent/internal/modules/broker"
	"etf_agent/internal/modules/config"
	"etf_agent/internal/modules/decision"
	"etf_agent/internal/modules/health"
	"etf_agent/internal/modules/market"
	"etf_agent/internal/modules/orders"
	"etf_agent/internal/modules/phase"
	"etf_agent/internal/modules/recovery"
	"etf_agent/internal/modules/storage"
	"etf_agent/internal/runner"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module(),
		storage.Module(),
		broker.Module(),
		archive.Module(),
		market.Module(),
		decision.Module(),
		orders.Module(),
		recovery.Module(),
		phase.Module(),
		health.Module(),
		runner.Module(),
	).Run()
}
