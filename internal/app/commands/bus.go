// Package commands routes state-changing requests to their handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Command is a write intent identified by a stable key.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Bus is what middleware wraps and transports call.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrResultType      = errors.New("commands: result type mismatch")
	ErrNilBus          = errors.New("commands: nil bus")
	ErrNilCommand      = errors.New("commands: nil command")
)

// Dispatch sends cmd through bus and returns the handler's result as R.
// A replayed result decoded by middleware must already have type R.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return value, nil
}

type route func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus dispatches in-process to one handler per command key.
type InMemoryBus struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{routes: make(map[string]route)}
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	b.mu.RLock()
	r, ok := b.routes[cmd.Key()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.Key())
	}
	return r(ctx, cmd)
}

// Register routes C, keyed by the zero value's Key, to handler. Registering
// the same key twice panics.
func Register[C Command, R any](bus *InMemoryBus, handler Handler[C, R]) {
	if bus == nil || handler == nil {
		panic("commands: register needs a bus and a handler")
	}
	var zero C
	key := zero.Key()
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, dup := bus.routes[key]; dup {
		panic("commands: duplicate handler for " + key)
	}
	bus.routes[key] = func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("commands: %s routed %T", key, raw)
		}
		return handler.Handle(ctx, cmd)
	}
}
