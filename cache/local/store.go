// Package local is the in-process cache backend: a TTL key/value store with
// hashes and capped lists, plus a fan-out pub/sub.
package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Store settings.
type Config struct {
	GCInterval time.Duration
}

type entry struct {
	data     string
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// Store is an in-process implementation of the cache store. Expired keys are
// dropped lazily on read and by a background sweep.
type Store struct {
	mu     sync.RWMutex
	kv     map[string]entry
	hashes map[string]map[string]string
	lists  map[string][]string

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a Store and starts its expiry sweep.
func NewStore(cfg Config) *Store {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &Store{
		kv:     make(map[string]entry),
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		stop:   make(chan struct{}),
	}
	go s.sweep(interval)
	return s
}

// Close stops the expiry sweep. Safe to call more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.mu.Lock()
			for k, e := range s.kv {
				if e.expired(now) {
					delete(s.kv, k)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// ---- KV ----

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.kv[key]
	s.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return "", ErrNotFound
	}
	return e.data, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.kv[key] = e
	s.mu.Unlock()
	return nil
}

// Del removes keys of any kind.
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.kv, k)
		delete(s.hashes, k)
		delete(s.lists, k)
	}
	return nil
}

// ---- Hash ----

func (s *Store) HSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (s *Store) HSetMany(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (s *Store) HGet(_ context.Context, key, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *Store) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

// ---- List ----

// LPush prepends values in order, so the last value ends up at index 0.
func (s *Store) LPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	next := make([]string, 0, len(l)+len(values))
	for i := len(values) - 1; i >= 0; i-- {
		next = append(next, values[i])
	}
	s.lists[key] = append(next, l...)
	return nil
}

func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, l[lo:hi+1])
	return out, nil
}

func (s *Store) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		delete(s.lists, key)
		return nil
	}
	s.lists[key] = append([]string(nil), l[lo:hi+1]...)
	return nil
}

// PushCapped is LPush followed by LTrim(0, limit-1) under one lock. A limit
// of zero or less keeps everything.
func (s *Store) PushCapped(_ context.Context, key string, limit int64, values ...string) error {
	s.mu.Lock()
	l := s.lists[key]
	next := make([]string, 0, len(l)+len(values))
	for i := len(values) - 1; i >= 0; i-- {
		next = append(next, values[i])
	}
	next = append(next, l...)
	if limit > 0 && int64(len(next)) > limit {
		next = next[:limit]
	}
	s.lists[key] = next
	s.mu.Unlock()
	return nil
}

// span resolves redis-style inclusive indexes, where negative values count
// from the end of a list of length n.
func span(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
