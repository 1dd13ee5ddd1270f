package service

import (
	"sync/atomic"
	"time"

	"etf_agent/internal/models"
)

// State: снимок агента для health-эндпоинтов; пишет цикл раннера, читает HTTP.
type State struct {
	startedAt time.Time

	wsConnected   atomic.Bool
	lastTickUnix  atomic.Int64 // unix seconds
	phase         atomic.Int32
	recovery      atomic.Int32
	recoveryUsed  atomic.Bool
	activePlan    atomic.Bool
	lastDecision  atomic.Value // string
	decisionFails atomic.Int32
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.lastDecision.Store("")
	return s
}

// Ready: рынок открыт и восстановление (если было) завершено.
func (s *State) Ready() bool {
	if s.Phase() != models.PhaseOpen {
		return false
	}
	return !s.recoveryUsed.Load() || s.Recovery() == models.RecoveryRecovered
}

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetPhase(p models.MarketPhase) { s.phase.Store(int32(p)) }
func (s *State) Phase() models.MarketPhase     { return models.MarketPhase(s.phase.Load()) }

func (s *State) SetRecovery(r models.RecoveryState) {
	if r != models.RecoveryStandby {
		s.recoveryUsed.Store(true)
	}
	s.recovery.Store(int32(r))
}
func (s *State) Recovery() models.RecoveryState { return models.RecoveryState(s.recovery.Load()) }

func (s *State) SetActivePlan(v bool) { s.activePlan.Store(v) }
func (s *State) ActivePlan() bool     { return s.activePlan.Load() }

func (s *State) SetDecision(tag string, fails int) {
	s.lastDecision.Store(tag)
	s.decisionFails.Store(int32(fails))
}
func (s *State) LastDecision() string { return s.lastDecision.Load().(string) }
func (s *State) DecisionFails() int   { return int(s.decisionFails.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
