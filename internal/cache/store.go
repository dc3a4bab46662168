// Package cache provides a TTL-aware in-memory store with explicit
// stale-read fallback, used by the fetch executor to degrade gracefully
// when every upstream host is down.
package cache

import (
	"sync"
	"time"
)

const (
	defaultMaxEntries = 4096
	// Entries untouched for this many janitor sweeps are evicted.
	defaultIdleSweeps = 10
)

// Entry is a cached value with its write timestamp and TTL.
type Entry[T any] struct {
	Value     T
	Timestamp time.Time
	TTL       time.Duration
	Succeeded bool
}

// Fresh reports whether the entry is within its TTL at the given time.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

type slot[T any] struct {
	entry      Entry[T]
	lastAccess time.Time
}

// Store is a mutex-guarded key→entry map. Entries are overwritten on every
// successful write and are never removed on expiry alone: an expired entry
// remains readable through GetStale until the janitor evicts it.
type Store[T any] struct {
	mu         sync.RWMutex
	entries    map[string]*slot[T]
	maxEntries int

	janitorOnce sync.Once
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewStore creates an empty store. maxEntries <= 0 uses the default cap.
func NewStore[T any](maxEntries int) *Store[T] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Store[T]{
		entries:    make(map[string]*slot[T]),
		maxEntries: maxEntries,
		stopChan:   make(chan struct{}),
	}
}

// Set writes a successful value for key, overwriting any previous entry.
func (s *Store[T]) Set(key string, value T, ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	s.entries[key] = &slot[T]{
		entry: Entry[T]{
			Value:     value,
			Timestamp: now,
			TTL:       ttl,
			Succeeded: true,
		},
		lastAccess: now,
	}
}

// Get returns the entry for key along with whether it is still fresh.
// A fresh read requires the entry to be within TTL and written by a success.
func (s *Store[T]) Get(key string) (Entry[T], bool, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.entries[key]
	if !ok {
		var zero Entry[T]
		return zero, false, false
	}
	sl.lastAccess = now

	fresh := sl.entry.Succeeded && sl.entry.Fresh(now)
	return sl.entry, fresh, true
}

// GetStale returns the entry for key regardless of freshness. Used as the
// degraded-mode fallback after all live fetch attempts have failed.
func (s *Store[T]) GetStale(key string) (Entry[T], bool) {
	entry, _, ok := s.Get(key)
	return entry, ok
}

// Len returns the number of cached entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartJanitor begins periodic eviction of entries that have not been
// accessed for defaultIdleSweeps sweep intervals. Safe to call once.
func (s *Store[T]) StartJanitor(interval time.Duration) {
	s.janitorOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.evictIdle(time.Duration(defaultIdleSweeps) * interval)
				case <-s.stopChan:
					return
				}
			}
		}()
	})
}

// Stop halts the janitor goroutine if it was started.
func (s *Store[T]) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
}

// evictIdle removes entries not accessed within maxIdle.
func (s *Store[T]) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sl := range s.entries {
		if sl.lastAccess.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// evictOldestLocked removes the least recently accessed entry to make room.
// Caller must hold the write lock.
func (s *Store[T]) evictOldestLocked() {
	var oldestKey string
	var oldestAccess time.Time
	for key, sl := range s.entries {
		if oldestKey == "" || sl.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = sl.lastAccess
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
