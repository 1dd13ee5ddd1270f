package service

import (
	"time"

	"etf_agent/internal/helper"
	"etf_agent/pkg/logger"
)

// SessionStart: обычное открытие дня без восстановления:
// pivot = минута (now + grace), pre-pivot: только история.
type SessionStart struct {
	timeline *Timeline
	history  *History
	grace    time.Duration
}

func NewSessionStart(timeline *Timeline, history *History, grace time.Duration) *SessionStart {
	return &SessionStart{timeline: timeline, history: history, grace: grace}
}

func (s *SessionStart) OpenSession(now time.Time) {
	pivot := helper.FloorMinute(now.Add(s.grace))
	if !s.timeline.SetPivot(pivot) {
		return
	}
	s.timeline.FinalizePrePivot(s.history.Series(), nil)
	logger.Info("[TIMELINE] session opened, pivot %s", pivot.Format("15:04"))
}
