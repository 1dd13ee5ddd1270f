package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"etf_agent/internal/models"
)

// MemoryStore: BarStore в памяти процесса (дневная серия, тесты, storage.driver=memory).
type MemoryStore struct {
	name string

	mu   sync.RWMutex
	data map[string][]models.Bar
}

func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name: name,
		data: make(map[string][]models.Bar),
	}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Append(_ context.Context, rows []models.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, err := aboveWatermark(rows, func(code string) (time.Time, error) {
		if series := s.data[code]; len(series) > 0 {
			return series[len(series)-1].Time, nil
		}
		return Epoch, nil
	})
	if err != nil {
		return 0, err
	}
	for _, b := range fresh {
		s.data[b.Code] = append(s.data[b.Code], b)
	}
	return len(fresh), nil
}

func (s *MemoryStore) LastNDays(_ context.Context, codes []string, n int, now time.Time) (models.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := cutoffFor(now, n)
	out := make(models.Series, len(codes))
	for _, code := range codes {
		series := s.data[code]
		i := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(cutoff) })
		if i < len(series) {
			out[code] = append([]models.Bar(nil), series[i:]...)
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestTimestamp(_ context.Context, code string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[code]
	if len(series) == 0 {
		return Epoch, nil
	}
	return series[len(series)-1].Time, nil
}
