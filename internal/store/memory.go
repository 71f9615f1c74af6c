package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

var (
	// ErrNotFound is returned when no run matches a query.
	ErrNotFound = errors.New("no run history")
)

// MemoryHistory is a concurrency-safe in-memory run history.
type MemoryHistory struct {
	mu sync.RWMutex

	// time-ordered by StartedAt
	runs []forecast.RunRecord

	// retention configuration
	maxRecords int           // max number of records kept
	maxAge     time.Duration // optional max age for records
	now        func() time.Time
}

// NewMemoryHistory creates a new MemoryHistory with optional limits.
// If maxRecords is <= 0, it is treated as unlimited.
func NewMemoryHistory(maxRecords int, maxAge time.Duration) *MemoryHistory {
	return &MemoryHistory{
		maxRecords: maxRecords,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveRun appends a run record and enforces retention.
func (s *MemoryHistory) SaveRun(_ context.Context, rec forecast.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, rec)

	// Enforce retention by count.
	if s.maxRecords > 0 && len(s.runs) > s.maxRecords {
		over := len(s.runs) - s.maxRecords
		s.runs = s.runs[over:]
	}

	// Enforce retention by age. The newest record is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs)-1; i++ {
			if !s.runs[i].StartedAt.Before(cutoff) {
				break
			}
		}
		s.runs = s.runs[i:]
	}
	return nil
}

// LatestRun returns the most recent run.
func (s *MemoryHistory) LatestRun(_ context.Context) (forecast.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return forecast.RunRecord{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// RunsBetween returns all runs started between from and to (inclusive).
func (s *MemoryHistory) RunsBetween(_ context.Context, from, to time.Time) ([]forecast.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []forecast.RunRecord
	for _, rec := range s.runs {
		if !rec.StartedAt.Before(from) && !rec.StartedAt.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
