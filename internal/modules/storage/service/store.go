package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
)

// Epoch: high-water mark инструмента, по которому ещё ничего не сохранено.
var Epoch = time.Unix(0, 0).UTC()

// BarStore: append-only серия минутных баров, ключ (код, время).
type BarStore interface {
	// Append пишет строки новее high-water mark инструмента и возвращает число записанных.
	Append(ctx context.Context, rows []models.Bar) (int, error)
	// LastNDays: бары с ts >= начала дня (now - n дней), по каждому коду, по возрастанию времени.
	LastNDays(ctx context.Context, codes []string, n int, now time.Time) (models.Series, error)
	// LatestTimestamp: high-water mark или Epoch.
	LatestTimestamp(ctx context.Context, code string) (time.Time, error)
	Name() string
}

// aboveWatermark оставляет строки строго новее high-water mark своего кода, по (код, время).
// latest спрашивается один раз на код; повтор минуты внутри пачки тоже отбрасывается.
func aboveWatermark(rows []models.Bar, latest func(code string) (time.Time, error)) ([]models.Bar, error) {
	hwm := make(map[string]time.Time)
	out := make([]models.Bar, 0, len(rows))
	for _, b := range sortedRows(rows) {
		last, ok := hwm[b.Code]
		if !ok {
			var err error
			if last, err = latest(b.Code); err != nil {
				return nil, fmt.Errorf("latest %s: %w", b.Code, err)
			}
			hwm[b.Code] = last
		}
		if !b.Time.After(last) {
			continue
		}
		out = append(out, b)
		hwm[b.Code] = b.Time
	}
	return out, nil
}

// sortedRows: копия строк по (код, время), чтобы high-water mark рос монотонно внутри одной пачки.
func sortedRows(rows []models.Bar) []models.Bar {
	cp := append([]models.Bar(nil), rows...)
	sort.SliceStable(cp, func(i, j int) bool {
		if cp[i].Code != cp[j].Code {
			return cp[i].Code < cp[j].Code
		}
		return cp[i].Time.Before(cp[j].Time)
	})
	return cp
}

func cutoffFor(now time.Time, n int) time.Time {
	if n < 0 {
		n = 0
	}
	return helper.FloorDay(now).AddDate(0, 0, -n)
}
