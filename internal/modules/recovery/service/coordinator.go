package service

import (
	"context"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

const settleWait = 10 * time.Second

// BatchFetcher: дневной минутный график по инструменту (блокирующий батч-запрос).
type BatchFetcher interface {
	FetchMinuteBars(ctx context.Context, code string, day time.Time) ([]models.Bar, error)
}

// BarSink: куда кладётся дневной батч, обрезанный по pivot.
type BarSink interface {
	Append(ctx context.Context, rows []models.Bar) (int, error)
}

// Splicer: часть Timeline, которую трогает восстановление.
type Splicer interface {
	SetPivot(ts time.Time) bool
	FinalizePrePivot(history, sameDay models.Series)
}

// BatchArchiver сохраняет сырой дневной батч для разбора полётов.
type BatchArchiver interface {
	ArchiveBatch(ctx context.Context, day time.Time, rows models.Series) error
}

type Deps struct {
	Codes    []string
	Fetcher  BatchFetcher
	Today    BarSink
	Timeline Splicer
	History  func() models.Series // история до вчера, загруженная на старте
	Archiver BatchArchiver
}

// transition: строка таблицы, сколько ждать в from, что сделать при входе в next.
type transition struct {
	from  models.RecoveryState
	next  models.RecoveryState
	wait  func(entered time.Time) time.Duration
	enter func(c *Coordinator, ctx context.Context, now time.Time)
}

var transitions = []transition{
	{
		from: models.RecoveryWarmupLiveStart,
		next: models.RecoveryWarmupLiveEnd,
		wait: helper.UntilNextMinute,
	},
	{
		from:  models.RecoveryWarmupLiveEnd,
		next:  models.RecoveryWarmupBatchStart,
		wait:  fixed(settleWait),
		enter: (*Coordinator).fetchBatch,
	},
	{
		from:  models.RecoveryWarmupBatchStart,
		next:  models.RecoveryWarmupBatchEnd,
		wait:  fixed(settleWait),
		enter: (*Coordinator).splice,
	},
	{
		from: models.RecoveryWarmupBatchEnd,
		next: models.RecoveryRecovered,
		wait: helper.UntilNextMinute,
	},
}

func fixed(d time.Duration) func(time.Time) time.Duration {
	return func(time.Time) time.Duration { return d }
}

func lookup(s models.RecoveryState) (transition, bool) {
	for _, tr := range transitions {
		if tr.from == s {
			return tr, true
		}
	}
	return transition{}, false
}

// pending: единственный отложенный переход.
type pending struct {
	tr  transition
	due time.Time
}

// Coordinator: восстановление сессии, когда процесс поднялся после открытия рынка.
// Живёт в цикле раннера, блокировок нет.
type Coordinator struct {
	deps Deps

	state   models.RecoveryState
	entered time.Time
	pending *pending

	batch models.Series
	pivot time.Time
}

func NewCoordinator(deps Deps) *Coordinator {
	if deps.History == nil {
		deps.History = func() models.Series { return nil }
	}
	return &Coordinator{deps: deps}
}

func (c *Coordinator) State() models.RecoveryState { return c.state }

func (c *Coordinator) Recovered() bool { return c.state == models.RecoveryRecovered }

// Active: эпизод начат и ещё не завершён.
func (c *Coordinator) Active() bool {
	return c.state != models.RecoveryStandby && c.state != models.RecoveryRecovered
}

// Pivot: pivot текущего эпизода (после входа в WARMUP_BATCH_END).
func (c *Coordinator) Pivot() (time.Time, bool) {
	return c.pivot, !c.pivot.IsZero()
}

// Start запускает эпизод: STANDBY -> WARMUP_LIVE_START.
func (c *Coordinator) Start(now time.Time) bool {
	if c.state != models.RecoveryStandby {
		logger.Warn("[RECOVERY] start ignored in state %s", c.state)
		return false
	}
	c.enter(models.RecoveryWarmupLiveStart, now)
	return true
}

// Dispatch вызывается каждую секунду; за вызов не больше одного перехода.
func (c *Coordinator) Dispatch(ctx context.Context, now time.Time) bool {
	p := c.pending
	if p == nil || now.Before(p.due) {
		return false
	}
	c.pending = nil
	if p.tr.enter != nil {
		p.tr.enter(c, ctx, now)
	}
	c.enter(p.tr.next, now)
	return true
}

// Overdue: отложенный переход просрочен больше чем на tol (цикл где-то завис).
func (c *Coordinator) Overdue(now time.Time, tol time.Duration) bool {
	return c.pending != nil && now.Sub(c.pending.due) > tol
}

// Reset возвращает координатор в STANDBY перед новым торговым днём.
func (c *Coordinator) Reset() {
	c.state = models.RecoveryStandby
	c.entered = time.Time{}
	c.pending = nil
	c.batch = nil
	c.pivot = time.Time{}
}

func (c *Coordinator) enter(s models.RecoveryState, now time.Time) {
	logger.Info("[RECOVERY] %s -> %s at %s", c.state, s, now.Format("15:04:05"))
	c.state = s
	c.entered = now

	tr, ok := lookup(s)
	if !ok {
		return
	}
	c.pending = &pending{tr: tr, due: now.Add(tr.wait(now))}
}

func (c *Coordinator) fetchBatch(ctx context.Context, now time.Time) {
	day := helper.FloorDay(now)
	c.batch = make(models.Series, len(c.deps.Codes))
	for _, code := range c.deps.Codes {
		rows, err := c.deps.Fetcher.FetchMinuteBars(ctx, code, day)
		if err != nil {
			logger.Error("[RECOVERY] batch fetch %s: %v", code, err)
			continue
		}
		c.batch[code] = rows
		logger.Info("[RECOVERY] batch fetch %s: rows=%d", code, len(rows))
	}

	if c.deps.Archiver != nil {
		if err := c.deps.Archiver.ArchiveBatch(ctx, day, c.batch); err != nil {
			logger.Warn("[RECOVERY] archive batch: %v", err)
		}
	}
}

// splice ставит pivot, пишет батч до pivot в дневную серию и фиксирует pre-pivot часть.
func (c *Coordinator) splice(ctx context.Context, now time.Time) {
	pivot := helper.FloorMinute(now)
	if !c.deps.Timeline.SetPivot(pivot) {
		logger.Error("[RECOVERY] pivot %s rejected", pivot.Format(time.RFC3339))
	}
	c.pivot = pivot

	bounded := make(models.Series, len(c.batch))
	var rows []models.Bar
	for code, series := range c.batch {
		for _, b := range series {
			if b.Time.Before(pivot) {
				bounded[code] = append(bounded[code], b)
				rows = append(rows, b)
			}
		}
	}

	if c.deps.Today != nil && len(rows) > 0 {
		n, err := c.deps.Today.Append(ctx, rows)
		if err != nil {
			logger.Error("[RECOVERY] store batch: %v", err)
		} else {
			logger.Info("[RECOVERY] stored %d batch rows below pivot", n)
		}
	}

	c.deps.Timeline.FinalizePrePivot(c.deps.History(), bounded)
}
