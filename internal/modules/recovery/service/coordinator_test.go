package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"etf_agent/internal/models"
	storage "etf_agent/internal/modules/storage/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*3600)

func at(h, m, s int) time.Time {
	return time.Date(2026, 10, 15, h, m, s, 0, kst)
}

func minutes(code string, from, to time.Time) []models.Bar {
	var out []models.Bar
	for ts := from; !ts.After(to); ts = ts.Add(time.Minute) {
		out = append(out, models.Bar{Code: code, Time: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	}
	return out
}

type fakeFetcher struct {
	rows  map[string][]models.Bar
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) FetchMinuteBars(_ context.Context, code string, _ time.Time) ([]models.Bar, error) {
	f.calls = append(f.calls, code)
	if f.fail[code] {
		return nil, errors.New("bridge down")
	}
	return f.rows[code], nil
}

type fakeSplicer struct {
	pivots  []time.Time
	history models.Series
	sameDay models.Series
	calls   int
}

func (s *fakeSplicer) SetPivot(ts time.Time) bool {
	s.pivots = append(s.pivots, ts)
	return true
}

func (s *fakeSplicer) FinalizePrePivot(history, sameDay models.Series) {
	s.history = history
	s.sameDay = sameDay
	s.calls++
}

type fakeArchiver struct{ got models.Series }

func (a *fakeArchiver) ArchiveBatch(_ context.Context, _ time.Time, rows models.Series) error {
	a.got = rows
	return nil
}

type fixture struct {
	coord    *Coordinator
	fetcher  *fakeFetcher
	splicer  *fakeSplicer
	today    *storage.MemoryStore
	archiver *fakeArchiver
}

func newFixture() *fixture {
	f := &fixture{
		fetcher: &fakeFetcher{
			rows: map[string][]models.Bar{
				"X": minutes("X", at(9, 0, 0), at(9, 31, 0)),
				"Y": minutes("Y", at(9, 0, 0), at(9, 31, 0)),
			},
			fail: map[string]bool{},
		},
		splicer:  &fakeSplicer{},
		today:    storage.NewMemoryStore("today"),
		archiver: &fakeArchiver{},
	}
	history := models.Series{"X": minutes("X", at(8, 0, 0), at(8, 5, 0))}
	f.coord = NewCoordinator(Deps{
		Codes:    []string{"X", "Y"},
		Fetcher:  f.fetcher,
		Today:    f.today,
		Timeline: f.splicer,
		History:  func() models.Series { return history },
		Archiver: f.archiver,
	})
	return f
}

func TestCoordinator_FullEpisodeTiming(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coord

	require.True(t, c.Start(at(9, 30, 25)))
	assert.Equal(t, models.RecoveryWarmupLiveStart, c.State())
	assert.True(t, c.Active())

	// до границы минуты
	assert.False(t, c.Dispatch(ctx, at(9, 30, 59)))
	assert.True(t, c.Dispatch(ctx, at(9, 31, 0)))
	assert.Equal(t, models.RecoveryWarmupLiveEnd, c.State())

	assert.False(t, c.Dispatch(ctx, at(9, 31, 9)))
	assert.Empty(t, f.fetcher.calls)
	assert.True(t, c.Dispatch(ctx, at(9, 31, 10)))
	assert.Equal(t, models.RecoveryWarmupBatchStart, c.State())
	assert.Equal(t, []string{"X", "Y"}, f.fetcher.calls)
	assert.Len(t, f.archiver.got["X"], 32)

	assert.False(t, c.Dispatch(ctx, at(9, 31, 19)))
	assert.True(t, c.Dispatch(ctx, at(9, 31, 20)))
	assert.Equal(t, models.RecoveryWarmupBatchEnd, c.State())

	pivot, ok := c.Pivot()
	require.True(t, ok)
	assert.Equal(t, at(9, 31, 0), pivot)
	assert.Equal(t, []time.Time{at(9, 31, 0)}, f.splicer.pivots)
	assert.Equal(t, 1, f.splicer.calls)
	assert.Len(t, f.splicer.history["X"], 6)

	// 09:31 из батча отрезан pivot'ом
	require.Len(t, f.splicer.sameDay["X"], 31)
	assert.Equal(t, at(9, 30, 0), f.splicer.sameDay["X"][30].Time)

	hwm, err := f.today.LatestTimestamp(ctx, "Y")
	require.NoError(t, err)
	assert.Equal(t, at(9, 30, 0), hwm)

	assert.False(t, c.Dispatch(ctx, at(9, 31, 59)))
	assert.True(t, c.Dispatch(ctx, at(9, 32, 0)))
	assert.Equal(t, models.RecoveryRecovered, c.State())
	assert.True(t, c.Recovered())
	assert.False(t, c.Active())

	// дальше только простой
	assert.False(t, c.Dispatch(ctx, at(9, 40, 0)))
	assert.Equal(t, models.RecoveryRecovered, c.State())
}

func TestCoordinator_OneTransitionPerTickAndMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coord
	require.True(t, c.Start(at(9, 30, 25)))

	// просрочены все ожидания, но за тик только один шаг
	late := at(9, 45, 0)
	require.True(t, c.Dispatch(ctx, late))
	assert.Equal(t, models.RecoveryWarmupLiveEnd, c.State())

	prev := c.State()
	recovered := 0
	for i := 1; i <= 120; i++ {
		advanced := c.Dispatch(ctx, late.Add(time.Duration(i)*time.Second))
		cur := c.State()
		assert.GreaterOrEqual(t, cur, prev)
		if advanced {
			assert.Equal(t, prev+1, cur)
		}
		if advanced && cur == models.RecoveryRecovered {
			recovered++
		}
		prev = cur
	}
	assert.Equal(t, 1, recovered)
	assert.Equal(t, models.RecoveryRecovered, c.State())
	assert.Len(t, f.splicer.pivots, 1)
}

func TestCoordinator_StartOnlyFromStandby(t *testing.T) {
	f := newFixture()
	require.True(t, f.coord.Start(at(9, 30, 0)))
	assert.False(t, f.coord.Start(at(9, 30, 1)))

	f.coord.Reset()
	assert.Equal(t, models.RecoveryStandby, f.coord.State())
	_, ok := f.coord.Pivot()
	assert.False(t, ok)
	assert.True(t, f.coord.Start(at(9, 30, 2)))
}

func TestCoordinator_FailedFetchDoesNotBlockEpisode(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.fetcher.fail["Y"] = true
	c := f.coord

	require.True(t, c.Start(at(10, 0, 0)))
	for _, ts := range []time.Time{at(10, 1, 0), at(10, 1, 10), at(10, 1, 20), at(10, 2, 0)} {
		require.True(t, c.Dispatch(ctx, ts))
	}
	assert.True(t, c.Recovered())
	assert.NotEmpty(t, f.splicer.sameDay["X"])
	assert.Empty(t, f.splicer.sameDay["Y"])
}

func TestCoordinator_Overdue(t *testing.T) {
	f := newFixture()
	c := f.coord
	assert.False(t, c.Overdue(at(9, 0, 0), time.Second))

	require.True(t, c.Start(at(9, 30, 25)))
	assert.False(t, c.Overdue(at(9, 31, 2), 5*time.Second))
	assert.True(t, c.Overdue(at(9, 31, 6), 5*time.Second))
}
