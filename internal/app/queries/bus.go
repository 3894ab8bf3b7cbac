// Package queries routes read requests to their handlers.
package queries

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Query is a read request identified by a stable key.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("queries: handler not found")
	ErrResultType      = errors.New("queries: result type mismatch")
	ErrNilBus          = errors.New("queries: nil bus")
	ErrNilQuery        = errors.New("queries: nil query")
)

// Ask sends query through bus and returns the handler's result as R.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s answered %T", ErrResultType, query.Key(), res)
	}
	return value, nil
}

type route func(ctx context.Context, query Query) (any, error)

// InMemoryBus dispatches in-process to one handler per query key.
type InMemoryBus struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{routes: make(map[string]route)}
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	if query == nil {
		return nil, ErrNilQuery
	}
	b.mu.RLock()
	r, ok := b.routes[query.Key()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, query.Key())
	}
	return r(ctx, query)
}

// Register routes Q, keyed by the zero value's Key, to handler. Registering
// the same key twice panics.
func Register[Q Query, R any](bus *InMemoryBus, handler Handler[Q, R]) {
	if bus == nil || handler == nil {
		panic("queries: register needs a bus and a handler")
	}
	var zero Q
	key := zero.Key()
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, dup := bus.routes[key]; dup {
		panic("queries: duplicate handler for " + key)
	}
	bus.routes[key] = func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("queries: %s routed %T", key, raw)
		}
		return handler.Handle(ctx, q)
	}
}
