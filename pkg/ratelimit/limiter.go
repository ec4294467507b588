package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// KeyedLimiter throttles per key, and optionally across all keys through a
// shared global limiter. Keys idle for longer than idleTTL are dropped on
// the next Wait.
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	global    *rate.Limiter
	r         rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewKeyedLimiter(r rate.Limit, burst int, idleTTL time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*limiterEntry),
		r:        r,
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// WithGlobal adds a limiter shared by every key.
func (s *KeyedLimiter) WithGlobal(r rate.Limit, burst int) *KeyedLimiter {
	s.global = rate.NewLimiter(r, burst)
	return s
}

// Wait blocks until both the global and the key's limiter allow one event.
func (s *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if s.global != nil {
		if err := s.global.Wait(ctx); err != nil {
			return err
		}
	}
	return s.get(key).Wait(ctx)
}

// Len is the number of keys currently tracked.
func (s *KeyedLimiter) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *KeyedLimiter) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if entry, exists := s.limiters[key]; exists {
		entry.lastAccess = now
		return entry.limiter
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(s.r, s.burst), lastAccess: now}
	s.limiters[key] = entry
	return entry.limiter
}

func (s *KeyedLimiter) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 || now.Sub(s.lastSweep) < s.idleTTL {
		return
	}
	for key, entry := range s.limiters {
		if now.Sub(entry.lastAccess) > s.idleTTL {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}
