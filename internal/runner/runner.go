package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
	archive "etf_agent/internal/modules/archive/service"
	health "etf_agent/internal/modules/health/service"
	market "etf_agent/internal/modules/market/service"
	orders "etf_agent/internal/modules/orders/service"
	phase "etf_agent/internal/modules/phase/service"
	recovery "etf_agent/internal/modules/recovery/service"
	storage "etf_agent/internal/modules/storage/service"
	"etf_agent/pkg/logger"
	"etf_agent/pkg/tracing"

	"github.com/opentracing/opentracing-go"
)

const decisionFailWarn = 3

// EventSource: push-поток брокера.
type EventSource interface {
	Events() <-chan models.Event
	WaitConnected(ctx context.Context) error
}

type AccountLoader interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
}

type Predictor interface {
	Predict(ctx context.Context, combined models.Series) (map[models.DecisionTag]float64, error)
}

type SessionArchiver interface {
	ArchiveSession(ctx context.Context, day time.Time, rows models.Series) (string, error)
}

type Components struct {
	Events      EventSource
	Account     *orders.Account
	AccountSync AccountLoader
	Scheduler   *orders.Scheduler
	Aggregator  *market.Aggregator
	Timeline    *market.Timeline
	History     *market.History
	HistoryDB   storage.BarStore
	TodayDB     storage.BarStore
	Recovery    *recovery.Coordinator
	Phase       *phase.Tracker
	Predictor   Predictor
	Archiver    SessionArchiver
	State       *health.State
	Metrics     *health.Metrics
}

// Runner: единственный цикл агента, секундный таймер плюс push-события.
// Все компоненты трогаются только отсюда.
type Runner struct {
	set Settings
	c   Components
	now func() time.Time

	lastMinute    time.Time
	decisionFails int
	stallLogged   bool
	finished      bool
}

var _ SessionArchiver = (*archive.Archiver)(nil)

func New(set Settings, c Components) *Runner {
	if set.Location == nil {
		set.Location = time.Local
	}
	if c.Scheduler != nil && c.Metrics != nil {
		c.Scheduler.Observe(c.Metrics)
	}
	return &Runner{set: set, c: c, now: time.Now}
}

func (r *Runner) clock() time.Time { return r.now().In(r.set.Location) }

// Finished: сессия закрыта и сохранена.
func (r *Runner) Finished() bool { return r.finished }

// Prepare проверяет время запуска, грузит счёт и историю, при открытом рынке начинает восстановление.
func (r *Runner) Prepare(ctx context.Context) error {
	now := r.clock()
	openNow, err := r.set.launchGate(now)
	if err != nil {
		return err
	}

	wctx := ctx
	if r.set.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, r.set.ConnectTimeout)
		defer cancel()
	}
	if err := r.c.Events.WaitConnected(wctx); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if err := r.c.AccountSync.Load(ctx); err != nil {
		return fmt.Errorf("prepare: account: %w", err)
	}
	if err := r.c.History.Load(ctx, r.c.HistoryDB, r.set.Codes, r.set.HistoryDays, now); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	r.c.Aggregator.Reset(helper.FloorDay(now))
	r.lastMinute = helper.FloorMinute(now)

	if openNow {
		logger.Info("[RUNNER] started after open (%s), recovering", now.Format("15:04:05"))
		r.c.Phase.Assume(models.PhaseOpen, now)
		r.c.Recovery.Start(now)
	} else {
		logger.Info("[RUNNER] started before open (%s), waiting for phase push", now.Format("15:04:05"))
	}
	r.syncHealth()
	return nil
}

// Run крутит цикл до отмены ctx или закрытия сессии.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	events := r.c.Events.Events()

	for !r.finished {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.HandleEvent(ctx, ev)
		case <-ticker.C:
			r.OnTimer(ctx, r.clock())
		}
	}
}

// HandleEvent складывает push-событие в состояние.
func (r *Runner) HandleEvent(_ context.Context, ev models.Event) {
	switch e := ev.(type) {
	case models.PhaseEvent:
		if r.c.Phase.Apply(e) {
			r.syncHealth()
		}
	case models.TickEvent:
		r.c.Aggregator.Insert(e.Tick)
		r.c.Account.ApplyTick(e.Tick)
		r.c.State.TouchTick(e.Tick.Time)
		r.c.Metrics.Tick(e.Tick.Code)
	case models.ExecutionReport:
		if r.c.Account.ApplyExecution(e) {
			r.c.Scheduler.OnExecution(e)
			r.c.Metrics.Order(e.Side, "filled")
		}
	case models.BalanceUpdate:
		r.c.Account.ApplyBalance(e)
	default:
		logger.Debug("[RUNNER] unknown event %T", ev)
	}
}

// OnTimer: секундный шаг.
func (r *Runner) OnTimer(ctx context.Context, now time.Time) {
	if r.finished {
		return
	}
	if r.c.Phase.Closed() {
		r.finishSession(ctx, now)
		return
	}

	if r.c.Recovery.Active() {
		r.c.Recovery.Dispatch(ctx, now)
		if r.c.Recovery.Overdue(now, r.set.StallTolerance) && !r.stallLogged {
			logger.Error("[RUNNER] recovery stalled in %s", r.c.Recovery.State())
			r.stallLogged = true
		}
	}
	r.syncHealth()

	minute := helper.FloorMinute(now)
	newMinute := minute.After(r.lastMinute)
	if newMinute {
		r.lastMinute = minute
	}

	if !r.canTrade() {
		return
	}

	if r.c.Scheduler.Active() {
		r.c.Scheduler.Step(ctx)
		r.c.State.SetActivePlan(r.c.Scheduler.Active())
	}

	if !newMinute {
		return
	}
	if err := r.c.AccountSync.Refresh(ctx); err != nil {
		logger.Warn("[RUNNER] account refresh: %v", err)
	}
	if r.updateLive(ctx, minute) {
		r.decide(ctx)
	}
}

func (r *Runner) canTrade() bool {
	if !r.c.Phase.Trading() {
		return false
	}
	return r.c.Recovery.Recovered() || r.c.Recovery.State() == models.RecoveryStandby
}

// updateLive пересобирает timeline живыми барами [pivot, to) и пишет их в дневную серию.
func (r *Runner) updateLive(ctx context.Context, to time.Time) bool {
	pivot, ok := r.c.Timeline.Pivot()
	if !ok || !r.c.Timeline.Finalized() || to.Sub(pivot) < time.Minute {
		return false
	}
	bars := r.c.Aggregator.Produce(pivot, to)
	r.c.Timeline.UpdateLive(pivot, bars)
	logger.Debug("[RUNNER] live bars [%s, %s): %d", pivot.Format("15:04"), to.Format("15:04"), len(bars))

	if len(bars) > 0 {
		n, err := r.c.TodayDB.Append(ctx, bars)
		if err != nil {
			logger.Warn("[RUNNER] store live bars: %v", err)
		} else {
			r.c.Metrics.Stored(r.c.TodayDB.Name(), n)
		}
	}
	return true
}

func (r *Runner) decide(ctx context.Context) {
	if !r.c.Timeline.Complete(r.set.Codes) {
		logger.Info("[RUNNER] combined data incomplete, decision skipped")
		r.c.Metrics.Decision("skipped")
		return
	}

	span, ctx := tracing.Start(ctx, "runner.decide", opentracing.Tags{"minute": r.lastMinute.Format("15:04")})
	var err error
	defer func() { tracing.Finish(span, err) }()

	scores, err := r.c.Predictor.Predict(ctx, r.c.Timeline.Combined())
	if err == nil {
		var tag models.DecisionTag
		tag, err = r.c.Scheduler.Pick(scores)
		if err == nil {
			r.decisionFails = 0
			r.c.State.SetDecision(string(tag), 0)
			r.c.Metrics.Decision(string(tag))
			logger.Info("[RUNNER] decision %s scores=%v", tag, scores)

			if derr := r.c.Scheduler.Decide(tag); derr != nil && !errors.Is(derr, orders.ErrPlanActive) {
				logger.Error("[RUNNER] build plan: %v", derr)
			}
			r.c.State.SetActivePlan(r.c.Scheduler.Active())
			return
		}
	}

	r.decisionFails++
	r.c.State.SetDecision(r.c.State.LastDecision(), r.decisionFails)
	r.c.Metrics.Decision("error")
	if r.decisionFails >= decisionFailWarn {
		logger.Error("[RUNNER] decision failed %d times in a row: %v", r.decisionFails, err)
	} else {
		logger.Warn("[RUNNER] decision failed: %v", err)
	}
}

// finishSession: последний пересчёт баров, запись дня в историю и архив.
func (r *Runner) finishSession(ctx context.Context, now time.Time) {
	r.finished = true
	day := helper.FloorDay(now)
	r.updateLive(ctx, helper.FloorMinute(now).Add(time.Minute))

	today := r.c.Timeline.Today(day)
	rows := make([]models.Bar, 0)
	codes := make([]string, 0, len(today))
	for code := range today {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		rows = append(rows, today[code]...)
	}

	if len(rows) > 0 {
		n, err := r.c.HistoryDB.Append(ctx, rows)
		if err != nil {
			logger.Error("[RUNNER] persist session: %v", err)
		} else {
			r.c.Metrics.Stored(r.c.HistoryDB.Name(), n)
			logger.Info("[RUNNER] session persisted: %d of %d rows", n, len(rows))
		}
	}
	if _, err := r.c.Archiver.ArchiveSession(ctx, day, today); err != nil {
		logger.Warn("[RUNNER] archive session: %v", err)
	}
	logger.Info("[RUNNER] market closed (%s at %s), stopping", r.c.Phase.Phase(), r.c.Phase.ChangedAt().Format("15:04:05"))
}

func (r *Runner) syncHealth() {
	r.c.State.SetPhase(r.c.Phase.Phase())
	r.c.Metrics.Phase(r.c.Phase.Phase())
	r.c.State.SetRecovery(r.c.Recovery.State())
	r.c.Metrics.Recovery(r.c.Recovery.State())
}
