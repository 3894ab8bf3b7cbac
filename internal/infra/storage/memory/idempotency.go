package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"staybook/internal/app/middleware"
)

// DefaultIdempotencyTTL matches the expiry index of the mongo store.
const DefaultIdempotencyTTL = 7 * 24 * time.Hour

// sweepEvery is how many saves pass between scans for expired outcomes.
const sweepEvery = 256

type storedOutcome struct {
	rec       middleware.IdempotencyRecord
	expiresAt time.Time
}

// IdempotencyStore keeps command outcomes until TTL passes. Expired outcomes
// read as absent and are dropped on the next sweep, so a long-running
// process without mongo does not grow without bound.
type IdempotencyStore struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.Mutex
	items map[string]storedOutcome
	saves int
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]storedOutcome)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.items[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if !s.now().Before(out.expiresAt) {
		delete(s.items, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return cloneRecord(out.rec), true, nil
}

// Save replaces any outcome stored under rec.Key and restarts its TTL.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = storedOutcome{rec: cloneRecord(rec), expiresAt: now.Add(s.ttl())}
	s.saves++
	if s.saves%sweepEvery == 0 {
		s.sweep(now)
	}
	return nil
}

// Len reports the outcomes held, expired ones included until swept.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *IdempotencyStore) sweep(now time.Time) {
	for key, out := range s.items {
		if !now.Before(out.expiresAt) {
			delete(s.items, key)
		}
	}
}

func (s *IdempotencyStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultIdempotencyTTL
	}
	return s.TTL
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func cloneRecord(rec middleware.IdempotencyRecord) middleware.IdempotencyRecord {
	rec.Payload = bytes.Clone(rec.Payload)
	return rec
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
