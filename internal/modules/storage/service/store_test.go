package service

import (
	"errors"
	"testing"
	"time"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAboveWatermark_FiltersPerCode(t *testing.T) {
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, kst)
	stored := map[string]time.Time{"X": base.Add(time.Minute), "Y": Epoch}
	asked := map[string]int{}

	// 09:00 ниже HWM, 09:01 равен ему, 09:02 повторяется внутри пачки
	rows := []models.Bar{
		row("X", base.Add(3*time.Minute)),
		row("X", base),
		row("X", base.Add(time.Minute)),
		row("X", base.Add(2*time.Minute)),
		row("X", base.Add(2*time.Minute)),
		row("Y", base),
	}
	got, err := aboveWatermark(rows, func(code string) (time.Time, error) {
		asked[code]++
		return stored[code], nil
	})
	require.NoError(t, err)

	var keys []string
	for _, b := range got {
		keys = append(keys, b.Code+" "+b.Time.Format("15:04"))
	}
	assert.Equal(t, []string{"X 09:02", "X 09:03", "Y 09:00"}, keys)
	assert.Equal(t, map[string]int{"X": 1, "Y": 1}, asked)
}

func TestAboveWatermark_LatestError(t *testing.T) {
	boom := errors.New("conn reset")
	_, err := aboveWatermark([]models.Bar{row("X", time.Now())}, func(string) (time.Time, error) {
		return time.Time{}, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCutoffFor(t *testing.T) {
	now := time.Date(2026, 10, 15, 13, 45, 0, 0, kst)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, kst), cutoffFor(now, 0))
	assert.Equal(t, time.Date(2026, 10, 8, 0, 0, 0, 0, kst), cutoffFor(now, 7))
	assert.Equal(t, cutoffFor(now, 0), cutoffFor(now, -3))
}
