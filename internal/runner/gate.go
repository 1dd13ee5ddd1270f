package runner

import (
	"errors"
	"fmt"
	"time"

	"etf_agent/internal/helper"
)

var (
	ErrNotTradingDay = errors.New("not a trading day")
	ErrTooEarly      = errors.New("too early before market open")
	ErrAfterClose    = errors.New("market already closed")
)

// Settings: параметры сессии, уже разобранные из конфига.
type Settings struct {
	Codes          []string
	Location       *time.Location
	Open           time.Duration // смещение от полуночи
	Close          time.Duration
	PreOpenWindow  time.Duration
	Holidays       map[string]bool
	HistoryDays    int
	StallTolerance time.Duration
	ConnectTimeout time.Duration
}

// launchGate решает, есть ли смысл стартовать сейчас; true: рынок уже открыт.
func (s Settings) launchGate(now time.Time) (openNow bool, err error) {
	now = now.In(s.Location)
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, fmt.Errorf("%s: %w", now.Format("2006-01-02 Mon"), ErrNotTradingDay)
	}
	if s.Holidays[now.Format("2006-01-02")] {
		return false, fmt.Errorf("%s holiday: %w", now.Format("2006-01-02"), ErrNotTradingDay)
	}

	open := helper.AtClock(now, s.Open)
	closeAt := helper.AtClock(now, s.Close)
	if now.Before(open.Add(-s.PreOpenWindow)) {
		return false, fmt.Errorf("now %s, open %s: %w", now.Format("15:04:05"), open.Format("15:04"), ErrTooEarly)
	}
	if !now.Before(closeAt) {
		return false, fmt.Errorf("now %s, close %s: %w", now.Format("15:04:05"), closeAt.Format("15:04"), ErrAfterClose)
	}
	return !now.Before(open), nil
}
