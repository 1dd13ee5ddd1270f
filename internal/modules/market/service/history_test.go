package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rows models.Series
	err  error
	n    int
}

func (s *stubSource) LastNDays(_ context.Context, _ []string, n int, _ time.Time) (models.Series, error) {
	s.n = n
	return s.rows, s.err
}

func TestHistory_LoadDropsToday(t *testing.T) {
	yesterday := time.Date(2026, 10, 14, 15, 29, 0, 0, kst)
	src := &stubSource{rows: models.Series{
		"X": {bar("X", yesterday, 1), bar("X", at(9, 0, 0), 2)},
	}}

	h := NewHistory()
	require.NoError(t, h.Load(context.Background(), src, []string{"X", "Y"}, 7, at(9, 30, 0)))
	assert.Equal(t, 7, src.n)
	require.Len(t, h.Series()["X"], 1)
	assert.Equal(t, yesterday, h.Series()["X"][0].Time)
	assert.Empty(t, h.Series()["Y"])
}

func TestHistory_LoadError(t *testing.T) {
	h := NewHistory()
	err := h.Load(context.Background(), &stubSource{err: errors.New("conn refused")}, []string{"X"}, 7, at(9, 0, 0))
	assert.ErrorContains(t, err, "conn refused")
	assert.Empty(t, h.Series())
}
