package memory

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = time.Minute

// Store хранит отметки времени попыток в памяти процесса.
type Store struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	now       func() time.Time
	lastPrune time.Time
}

func New() *Store {
	return &Store{attempts: make(map[string][]time.Time), now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) Attempt(_ context.Context, key string, max int, window time.Duration) (bool, time.Duration, error) {
	if max <= 0 {
		return false, window, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastPrune) >= pruneEvery {
		s.prune(now, window)
		s.lastPrune = now
	}
	kept := keepAfter(s.attempts[key], now.Add(-window))
	if len(kept) >= max {
		s.attempts[key] = kept
		return false, kept[0].Add(window).Sub(now), nil
	}
	s.attempts[key] = append(kept, now)
	return true, 0, nil
}

// prune удаляет ключи без попыток в текущем окне, чтобы карта не росла бесконечно.
func (s *Store) prune(now time.Time, window time.Duration) {
	cut := now.Add(-window)
	for k, ts := range s.attempts {
		if len(ts) == 0 || !ts[len(ts)-1].After(cut) {
			delete(s.attempts, k)
		}
	}
}

func keepAfter(ts []time.Time, cut time.Time) []time.Time {
	i := 0
	for _, t := range ts {
		if t.After(cut) {
			ts[i] = t
			i++
		}
	}
	return ts[:i]
}
