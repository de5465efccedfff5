package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	count     int64
	expiresAt time.Time // zero = no expiry set yet
}

var _ AtomicStore = (*MemoryStore)(nil)

// MemoryStore is a process-local Store. It is exact within one process and
// is what single-instance deployments and tests use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// live returns the entry for key, dropping it first when expired. Caller holds mu.
func (s *MemoryStore) live(key string) *memEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) incr(key string) *memEntry {
	e := s.live(key)
	if e == nil {
		e = &memEntry{}
		s.entries[key] = e
	}
	e.count++
	return e
}

func (s *MemoryStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incr(key).count, nil
}

func (s *MemoryStore) ExpireIfUnset(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil && e.expiresAt.IsZero() {
		e.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) IncrementWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.incr(key)
	if e.expiresAt.IsZero() {
		e.expiresAt = s.now().Add(ttl)
	}
	return e.count, nil
}

func (s *MemoryStore) Peek(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, 0, nil
	}
	var ttl time.Duration
	if !e.expiresAt.IsZero() {
		ttl = e.expiresAt.Sub(s.now())
	}
	return e.count, ttl, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if s.live(key) == nil {
			n++
		}
	}
	return n
}

// RunJanitor purges expired entries every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Purge()
		}
	}
}
