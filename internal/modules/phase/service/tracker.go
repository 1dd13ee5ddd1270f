package service

import (
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// Коды фазы рынка из push-события терминала (FID 215).
var phaseCodes = map[string]models.MarketPhase{
	"0": models.PhaseBeforeOpen,
	"3": models.PhaseOpen,
	"2": models.PhaseAfterSimultaneousQuote,
	"4": models.PhaseAfterClose,
	"8": models.PhaseAfterClose,
	"9": models.PhaseAfterCloseComplete,
}

// SessionOpener: обычный старт дня без восстановления.
type SessionOpener interface {
	OpenSession(now time.Time)
}

// RecoveryProbe: идёт ли сейчас эпизод восстановления.
type RecoveryProbe interface {
	Active() bool
}

// Tracker хранит текущую фазу; двигается только push-событиями и только вперёд.
type Tracker struct {
	phase    models.MarketPhase
	changed  time.Time
	opener   SessionOpener
	recovery RecoveryProbe
}

func NewTracker(opener SessionOpener, recovery RecoveryProbe) *Tracker {
	return &Tracker{
		phase:    models.PhaseNotOperational,
		opener:   opener,
		recovery: recovery,
	}
}

func (t *Tracker) Phase() models.MarketPhase { return t.phase }

func (t *Tracker) ChangedAt() time.Time { return t.changed }

// Assume выставляет фазу без события: процесс поднялся, когда рынок уже открыт.
func (t *Tracker) Assume(p models.MarketPhase, now time.Time) {
	logger.Info("[PHASE] assume %s", p)
	t.phase = p
	t.changed = now
}

// Apply обрабатывает push смены фазы; возвращает true, если фаза сменилась.
func (t *Tracker) Apply(ev models.PhaseEvent) bool {
	next, ok := phaseCodes[ev.Code]
	if !ok {
		logger.Debug("[PHASE] unknown code %q ignored", ev.Code)
		return false
	}
	if next <= t.phase {
		if next < t.phase {
			logger.Warn("[PHASE] regression %s -> %s ignored", t.phase, next)
		}
		return false
	}

	logger.Info("[PHASE] %s -> %s", t.phase, next)
	t.phase = next
	t.changed = ev.At

	if next == models.PhaseOpen && (t.recovery == nil || !t.recovery.Active()) && t.opener != nil {
		t.opener.OpenSession(ev.At)
	}
	return true
}

// Trading: можно ли ставить заявки в текущей фазе.
func (t *Tracker) Trading() bool { return t.phase == models.PhaseOpen }

// Closed: день закончен, пора сохранять и выходить.
func (t *Tracker) Closed() bool { return t.phase >= models.PhaseAfterClose }

// Reset: новый торговый день.
func (t *Tracker) Reset() {
	t.phase = models.PhaseNotOperational
	t.changed = time.Time{}
}
