package service

import (
	"context"
	"fmt"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// HistorySource: чтение исторической серии.
type HistorySource interface {
	LastNDays(ctx context.Context, codes []string, n int, now time.Time) (models.Series, error)
}

// History: история до вчерашнего дня, загруженная один раз на старте.
type History struct {
	series models.Series
}

func NewHistory() *History {
	return &History{series: make(models.Series)}
}

// Load читает последние n дней; строки сегодняшнего дня отбрасываются.
func (h *History) Load(ctx context.Context, src HistorySource, codes []string, n int, now time.Time) error {
	rows, err := src.LastNDays(ctx, codes, n, now)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	today := helper.FloorDay(now)
	out := make(models.Series, len(codes))
	for _, code := range codes {
		for _, b := range rows[code] {
			if b.Time.Before(today) {
				out[code] = append(out[code], b)
			}
		}
		logger.Info("[TIMELINE] history %s: rows=%d", code, len(out[code]))
	}
	h.series = out
	return nil
}

// Series: загруженная история (общая, не менять).
func (h *History) Series() models.Series { return h.series }
