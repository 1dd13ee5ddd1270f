package service

import (
	"sort"
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// Timeline склеивает историю (до вчера), дневной батч и живые бары в одну серию на инструмент.
// Граница между батчем и живыми барами: pivot, общий для всех инструментов.
type Timeline struct {
	codes []string

	prePivot  models.Series
	combined  models.Series
	finalized bool

	pivot    time.Time
	hasPivot bool
}

func NewTimeline(codes []string) *Timeline {
	cp := append([]string(nil), codes...)
	return &Timeline{
		codes:    cp,
		prePivot: make(models.Series),
		combined: make(models.Series),
	}
}

// SetPivot ставит pivot; сдвиг назад отклоняется.
func (t *Timeline) SetPivot(ts time.Time) bool {
	if t.hasPivot && ts.Before(t.pivot) {
		logger.Warn("[TIMELINE] pivot %s rejected: earlier than current %s", ts.Format(time.RFC3339), t.pivot.Format(time.RFC3339))
		return false
	}
	t.pivot = ts
	t.hasPivot = true
	logger.Info("[TIMELINE] pivot set to %s", ts.Format(time.RFC3339))
	return true
}

func (t *Timeline) Pivot() (time.Time, bool) {
	return t.pivot, t.hasPivot
}

// FinalizePrePivot фиксирует статическую часть: история + дневной батч (батча может не быть).
// Батч-строки, не новее последней строки истории, отбрасываются.
func (t *Timeline) FinalizePrePivot(history, sameDay models.Series) {
	pre := make(models.Series, len(t.codes))
	for _, code := range t.codes {
		series := normalize(history[code])
		series = appendAfter(series, normalize(sameDay[code]))
		pre[code] = series

		if n := len(series); n > 0 {
			logger.Info("[TIMELINE] pre-pivot %s: rows=%d last=%s", code, n, series[n-1].Time.Format(time.RFC3339))
		} else {
			logger.Info("[TIMELINE] pre-pivot %s: rows=0", code)
		}
	}
	t.prePivot = pre
	t.combined = make(models.Series)
	t.finalized = true
}

func (t *Timeline) Finalized() bool { return t.finalized }

// UpdateLive пересобирает combined: копия pre-pivot + живые бары с ts >= pivot.
// Инструмент без живых баров сохраняет прежнюю combined-серию.
func (t *Timeline) UpdateLive(pivot time.Time, live []models.Bar) {
	if !t.finalized {
		return
	}

	byCode := make(models.Series)
	for _, b := range live {
		if b.Time.Before(pivot) {
			continue
		}
		byCode[b.Code] = append(byCode[b.Code], b)
	}

	for _, code := range t.codes {
		rows := normalize(byCode[code])
		if len(rows) == 0 {
			continue
		}
		pre := t.prePivot[code]
		merged := make([]models.Bar, 0, len(pre)+len(rows))
		merged = append(merged, pre...)
		merged = appendAfter(merged, rows)
		t.combined[code] = merged

		logger.Debug("[TIMELINE] live update %s: pre=%d live=%d last=%s",
			code, len(pre), len(rows), rows[len(rows)-1].Time.Format(time.RFC3339))
	}
}

// Combined: снимок склеенных серий; пусто до FinalizePrePivot.
func (t *Timeline) Combined() models.Series {
	out := make(models.Series, len(t.combined))
	if !t.finalized {
		return out
	}
	for code, rows := range t.combined {
		out[code] = append([]models.Bar(nil), rows...)
	}
	return out
}

// Complete: есть ли combined-серия по каждому из кодов.
func (t *Timeline) Complete(codes []string) bool {
	if !t.finalized {
		return false
	}
	for _, c := range codes {
		if len(t.combined[c]) == 0 {
			return false
		}
	}
	return true
}

// Today: бары combined-серии начиная с day.
func (t *Timeline) Today(day time.Time) models.Series {
	out := make(models.Series)
	for code, rows := range t.combined {
		i := sort.Search(len(rows), func(i int) bool { return !rows[i].Time.Before(day) })
		if i < len(rows) {
			out[code] = append([]models.Bar(nil), rows[i:]...)
		}
	}
	return out
}

// normalize сортирует по времени и схлопывает одинаковые минуты (побеждает последняя).
func normalize(rows []models.Bar) []models.Bar {
	if len(rows) == 0 {
		return nil
	}
	cp := append([]models.Bar(nil), rows...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time.Before(cp[j].Time) })

	out := cp[:0]
	for _, b := range cp {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// appendAfter дописывает в base только строки новее последней строки base.
func appendAfter(base, rows []models.Bar) []models.Bar {
	if len(base) == 0 {
		return append(base, rows...)
	}
	last := base[len(base)-1].Time
	for _, b := range rows {
		if b.Time.After(last) {
			base = append(base, b)
		}
	}
	return base
}
