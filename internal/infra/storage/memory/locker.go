package memory

import (
	"context"
	"sync"
)

// Locker is a process-local keyed mutex. Waiters give up when ctx is done.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.forget(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.forget(key, s)
		return nil, ctx.Err()
	}
}

func (l *Locker) forget(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
