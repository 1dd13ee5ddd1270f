package service

import (
	"etf_agent/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: свой registry, чтобы в тестах не конфликтовать с глобальным.
type Metrics struct {
	Registry *prometheus.Registry

	phase     prometheus.Gauge
	recovery  prometheus.Gauge
	ticks     *prometheus.CounterVec
	orders    *prometheus.CounterVec
	decisions *prometheus.CounterVec
	bars      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_market_phase",
			Help: "Current market phase (0=NOT_OPERATIONAL .. 5=AFTER_CLOSE_COMPLETE).",
		}),
		recovery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_recovery_state",
			Help: "Current recovery state (0=STANDBY .. 5=RECOVERED).",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_ticks_total",
			Help: "Trade ticks received by instrument.",
		}, []string{"code"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_orders_total",
			Help: "Order outcomes by side and result (submitted, rejected, filled).",
		}, []string{"side", "result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_decisions_total",
			Help: "Decision requests by outcome (tag, skipped, error).",
		}, []string{"outcome"}),
		bars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_bars_stored_total",
			Help: "Bars appended to a bar series.",
		}, []string{"series"}),
	}
	m.Registry.MustRegister(m.phase, m.recovery, m.ticks, m.orders, m.decisions, m.bars)
	return m
}

func (m *Metrics) Phase(p models.MarketPhase)      { m.phase.Set(float64(p)) }
func (m *Metrics) Recovery(r models.RecoveryState) { m.recovery.Set(float64(r)) }
func (m *Metrics) Tick(code string)                { m.ticks.WithLabelValues(code).Inc() }
func (m *Metrics) Order(side models.Side, result string) {
	m.orders.WithLabelValues(string(side), result).Inc()
}
func (m *Metrics) Decision(outcome string)     { m.decisions.WithLabelValues(outcome).Inc() }
func (m *Metrics) Stored(series string, n int) { m.bars.WithLabelValues(series).Add(float64(n)) }
