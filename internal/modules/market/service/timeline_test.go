package service

import (
	"testing"
	"time"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(code string, ts time.Time, px float64) models.Bar {
	return models.Bar{Code: code, Time: ts, Open: px, High: px, Low: px, Close: px, Volume: 1}
}

func minutes(code string, from, to time.Time) []models.Bar {
	var out []models.Bar
	for ts := from; !ts.After(to); ts = ts.Add(time.Minute) {
		out = append(out, bar(code, ts, 100))
	}
	return out
}

func assertOnePerMinute(t *testing.T, rows []models.Bar) {
	t.Helper()
	seen := make(map[int64]bool, len(rows))
	for i, b := range rows {
		require.False(t, seen[b.Time.Unix()], "duplicate minute %s", b.Time)
		seen[b.Time.Unix()] = true
		if i > 0 {
			require.True(t, rows[i-1].Time.Before(b.Time), "not ordered at %d", i)
		}
	}
}

func TestTimeline_ReadsEmptyBeforeFinalize(t *testing.T) {
	tl := NewTimeline([]string{"X"})
	tl.UpdateLive(at(9, 11, 0), []models.Bar{bar("X", at(9, 11, 0), 1)})

	assert.Empty(t, tl.Combined())
	assert.False(t, tl.Complete([]string{"X"}))
}

func TestTimeline_EndToEndSplice(t *testing.T) {
	yesterday := time.Date(2026, 10, 14, 15, 0, 0, 0, kst)

	history := models.Series{
		"X": append(minutes("X", yesterday, yesterday.Add(29*time.Minute)), minutes("X", at(9, 0, 0), at(9, 5, 0))...),
	}
	batch := models.Series{"X": minutes("X", at(9, 0, 0), at(9, 10, 0))}

	tl := NewTimeline([]string{"X"})
	tl.FinalizePrePivot(history, batch)

	pivot := at(9, 11, 0)
	require.True(t, tl.SetPivot(pivot))

	agg := NewAggregator()
	agg.Insert(tick("X", at(9, 11, 3), 101, 2))
	agg.Insert(tick("X", at(9, 11, 40), 102, 2))
	tl.UpdateLive(pivot, agg.Produce(pivot, at(9, 12, 0)))

	got := tl.Combined()["X"]
	assertOnePerMinute(t, got)

	assert.Equal(t, yesterday, got[0].Time)
	assert.Equal(t, at(9, 11, 0), got[len(got)-1].Time)
	assert.Equal(t, at(9, 10, 0), got[len(got)-2].Time)
	// 30 вчерашних + 09:00..09:10 + 09:11
	assert.Len(t, got, 30+11+1)
	assert.True(t, tl.Complete([]string{"X"}))
}

func TestTimeline_LiveRowsBelowPivotAreIgnored(t *testing.T) {
	tl := NewTimeline([]string{"X", "Y"})
	tl.FinalizePrePivot(models.Series{
		"X": minutes("X", at(9, 0, 0), at(9, 9, 0)),
		"Y": minutes("Y", at(9, 0, 0), at(9, 9, 0)),
	}, nil)

	pivot := at(9, 10, 0)
	live := append(minutes("X", at(9, 5, 0), at(9, 14, 0)), minutes("Y", at(9, 8, 0), at(9, 12, 0))...)
	tl.UpdateLive(pivot, live)

	for _, code := range []string{"X", "Y"} {
		rows := tl.Combined()[code]
		assertOnePerMinute(t, rows)
		for _, b := range rows {
			assert.Equal(t, code, b.Code)
		}
	}
	assert.Len(t, tl.Combined()["X"], 10+5)
	assert.Len(t, tl.Combined()["Y"], 10+3)
}

func TestTimeline_RepeatedUpdatesReplaceCombined(t *testing.T) {
	tl := NewTimeline([]string{"X"})
	tl.FinalizePrePivot(models.Series{"X": minutes("X", at(9, 0, 0), at(9, 9, 0))}, nil)
	pivot := at(9, 10, 0)

	tl.UpdateLive(pivot, minutes("X", at(9, 10, 0), at(9, 11, 0)))
	tl.UpdateLive(pivot, minutes("X", at(9, 10, 0), at(9, 12, 0)))

	rows := tl.Combined()["X"]
	assertOnePerMinute(t, rows)
	assert.Len(t, rows, 13)

	// пустое обновление не трогает прежнюю серию
	tl.UpdateLive(pivot, nil)
	assert.Len(t, tl.Combined()["X"], 13)
}

func TestTimeline_GapIsCarriedNotFilled(t *testing.T) {
	tl := NewTimeline([]string{"X"})
	tl.FinalizePrePivot(models.Series{"X": minutes("X", at(9, 0, 0), at(9, 9, 0))}, nil)
	pivot := at(9, 10, 0)

	tl.UpdateLive(pivot, []models.Bar{bar("X", at(9, 10, 0), 1), bar("X", at(9, 12, 0), 1)})
	rows := tl.Combined()["X"]
	require.Len(t, rows, 12)
	assert.Equal(t, at(9, 12, 0), rows[11].Time)
	assert.Equal(t, at(9, 10, 0), rows[10].Time)
}

func TestTimeline_PivotIsMonotonic(t *testing.T) {
	tl := NewTimeline([]string{"X"})
	_, ok := tl.Pivot()
	assert.False(t, ok)

	assert.True(t, tl.SetPivot(at(9, 10, 0)))
	assert.False(t, tl.SetPivot(at(9, 9, 0)))
	assert.True(t, tl.SetPivot(at(9, 10, 0)))
	assert.True(t, tl.SetPivot(at(10, 0, 0)))

	p, ok := tl.Pivot()
	require.True(t, ok)
	assert.Equal(t, at(10, 0, 0), p)
}

func TestTimeline_Today(t *testing.T) {
	yesterday := time.Date(2026, 10, 14, 15, 0, 0, 0, kst)
	tl := NewTimeline([]string{"X"})
	tl.FinalizePrePivot(models.Series{"X": minutes("X", yesterday, yesterday.Add(9*time.Minute))}, nil)
	tl.UpdateLive(at(9, 0, 0), minutes("X", at(9, 0, 0), at(9, 4, 0)))

	today := tl.Today(at(0, 0, 0))
	assert.Len(t, today["X"], 5)
}
