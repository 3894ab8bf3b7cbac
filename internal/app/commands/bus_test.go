package commands

import (
	"context"
	"errors"
	"testing"
)

type ping struct{ Name string }

func (ping) Key() string { return "test.ping" }

type unrouted struct{}

func (unrouted) Key() string { return "test.unrouted" }

func TestDispatchRoutesByKey(t *testing.T) {
	bus := NewInMemoryBus()
	Register[ping, string](bus, HandlerFunc[ping, string](func(_ context.Context, p ping) (string, error) {
		return "pong " + p.Name, nil
	}))

	got, err := Dispatch[ping, string](context.Background(), bus, ping{Name: "a"})
	if err != nil || got != "pong a" {
		t.Fatalf("Dispatch = %q, %v", got, err)
	}
	if _, err := Dispatch[ping, int](context.Background(), bus, ping{}); !errors.Is(err, ErrResultType) {
		t.Fatalf("expected ErrResultType, got %v", err)
	}
	if _, err := Dispatch[unrouted, string](context.Background(), bus, unrouted{}); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
	if _, err := Dispatch[ping, string](context.Background(), nil, ping{}); !errors.Is(err, ErrNilBus) {
		t.Fatalf("expected ErrNilBus, got %v", err)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[ping, string](func(context.Context, ping) (string, error) { return "", nil })
	Register[ping, string](bus, h)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a duplicate registration")
		}
	}()
	Register[ping, string](bus, h)
}
