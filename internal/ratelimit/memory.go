package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneThreshold bounds how many buckets accumulate before expired ones are dropped.
const pruneThreshold = 10000

type bucket struct {
	consumed     int
	windowEnd    time.Time
	blockedUntil time.Time
}

// MemoryStore keeps buckets in process memory. Counters reset on restart, and instances
// do not share them; use RedisStore when more than one instance serves traffic.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[Key]*bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[Key]*bucket)}
}

func (s *MemoryStore) Consume(_ context.Context, key Key, rule Rule, now time.Time) (int, time.Time, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if ok && now.Before(b.blockedUntil) {
		return 0, time.Time{}, b.blockedUntil.Sub(now), nil
	}
	if !ok || !now.Before(b.windowEnd) {
		if len(s.buckets) >= pruneThreshold {
			s.prune(now)
		}
		b = &bucket{windowEnd: now.Add(rule.Duration)}
		s.buckets[key] = b
	}

	b.consumed++
	if b.consumed <= rule.Points {
		return b.consumed, b.windowEnd, 0, nil
	}

	if rule.BlockDuration > 0 {
		b.blockedUntil = now.Add(rule.BlockDuration)
		// the window restarts once the block is over
		b.consumed = 0
		b.windowEnd = b.blockedUntil
		return 0, time.Time{}, rule.BlockDuration, nil
	}
	return 0, time.Time{}, b.windowEnd.Sub(now), nil
}

func (s *MemoryStore) prune(now time.Time) {
	for key, b := range s.buckets {
		if !now.Before(b.windowEnd) && !now.Before(b.blockedUntil) {
			delete(s.buckets, key)
		}
	}
}

// Len reports the number of tracked buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
