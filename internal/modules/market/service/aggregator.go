package service

import (
	"sort"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
)

// Aggregator копит тики текущего торгового дня и режет их в минутные бары.
// Дедупликация между вызовами Produce: забота потребителя (Timeline).
type Aggregator struct {
	day   time.Time
	ticks map[string][]models.Tick // порядок = порядок прихода
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		ticks: make(map[string][]models.Tick),
	}
}

// Insert кладёт тик в буфер. Тик другого дня сбрасывает буфер на этот день.
func (a *Aggregator) Insert(t models.Tick) {
	if a.day.IsZero() || !helper.SameDay(a.day, t.Time) {
		a.Reset(helper.FloorDay(t.Time))
	}
	a.ticks[t.Code] = append(a.ticks[t.Code], t)
}

// Reset очищает буфер под новый торговый день.
func (a *Aggregator) Reset(day time.Time) {
	a.day = day
	a.ticks = make(map[string][]models.Tick)
}

// Produce строит бары для [from, to): один бар на (инструмент, минуту), минуты без тиков пропускаются.
// Результат отсортирован по коду, затем по времени.
func (a *Aggregator) Produce(from, to time.Time) []models.Bar {
	if !from.Before(to) {
		return nil
	}

	codes := make([]string, 0, len(a.ticks))
	for code := range a.ticks {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []models.Bar
	for _, code := range codes {
		out = append(out, aggregate(code, a.ticks[code], from, to)...)
	}
	return out
}

func aggregate(code string, ticks []models.Tick, from, to time.Time) []models.Bar {
	buckets := make(map[int64]*models.Bar)
	var order []int64

	for _, t := range ticks {
		if t.Time.Before(from) || !t.Time.Before(to) {
			continue
		}
		minute := helper.FloorMinute(t.Time)
		key := minute.Unix()

		b, ok := buckets[key]
		if !ok {
			buckets[key] = &models.Bar{
				Code:   code,
				Time:   minute,
				Open:   t.Price,
				High:   t.Price,
				Low:    t.Price,
				Close:  t.Price,
				Volume: t.Volume,
			}
			order = append(order, key)
			continue
		}
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.Volume += t.Volume
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]models.Bar, 0, len(order))
	for _, k := range order {
		out = append(out, *buckets[k])
	}
	return out
}
