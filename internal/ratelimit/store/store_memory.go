package store

import (
	"context"
	"sync"
	"time"

	"eligo/internal/ratelimit/models"
)

// InMemoryStore is a per-process sliding window. It backs single-instance
// deployments and serves as the fallback while Redis is unreachable.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records one request for key when the window has room.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit models.Limit) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := prune(s.buckets[key], now.Add(-limit.Window))

	if len(stamps) >= limit.RequestsPerWindow {
		s.buckets[key] = stamps
		resetAt := now.Add(limit.Window)
		if len(stamps) > 0 {
			resetAt = stamps[0].Add(limit.Window)
		}
		return denied(limit, resetAt, now), nil
	}

	stamps = append(stamps, now)
	s.buckets[key] = stamps
	return &models.Result{
		Allowed:   true,
		Limit:     limit.RequestsPerWindow,
		Remaining: limit.RequestsPerWindow - len(stamps),
		ResetAt:   stamps[0].Add(limit.Window),
	}, nil
}

// Reset forgets key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order so the slice stays sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

func denied(limit models.Limit, resetAt, now time.Time) *models.Result {
	retry := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return &models.Result{
		Allowed:    false,
		Limit:      limit.RequestsPerWindow,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}
}
