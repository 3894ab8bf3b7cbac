package middleware

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
	"staybook/internal/domain/shared/apperr"
)

type reserveCommand struct {
	UserID    string `validate:"required"`
	Room      string `validate:"required"`
	ClientKey string
}

func (c reserveCommand) Key() string            { return "test.reserve" }
func (c reserveCommand) ActorID() string        { return c.UserID }
func (c reserveCommand) IdempotencyKey() string { return c.ClientKey }
func (c reserveCommand) ResultPrototype() any   { return &reserveResult{} }

type reserveResult struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

type staffCommand struct {
	UserID string
	Role   string
}

func (c staffCommand) Key() string       { return "test.staff" }
func (c staffCommand) ActorID() string   { return c.UserID }
func (c staffCommand) ActorRole() string { return c.Role }

type memoryStore struct {
	records map[string]IdempotencyRecord
}

func (s *memoryStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *memoryStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.records[rec.Key] = rec
	return nil
}

type countingOutbox struct {
	flushes int
}

func (o *countingOutbox) Add(context.Context, outbox.EventRecord) error { return nil }
func (o *countingOutbox) Flush(context.Context) error {
	o.flushes++
	return errors.New("broker down")
}

func newReserveBus(calls *int, fail error) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.Register[reserveCommand, *reserveResult](bus, commands.HandlerFunc[reserveCommand, *reserveResult](
		func(_ context.Context, cmd reserveCommand) (*reserveResult, error) {
			*calls++
			if fail != nil {
				return nil, fail
			}
			return &reserveResult{Room: cmd.Room, Count: *calls}, nil
		}))
	commands.Register[staffCommand, string](bus, commands.HandlerFunc[staffCommand, string](
		func(context.Context, staffCommand) (string, error) { return "ok", nil }))
	return bus
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	calls := 0
	store := &memoryStore{records: map[string]IdempotencyRecord{}}
	bus := ChainCommands(newReserveBus(&calls, nil), Idempotency(store, nil))
	ctx := context.Background()

	first, err := commands.Dispatch[reserveCommand, *reserveResult](ctx, bus, reserveCommand{UserID: "u", Room: "R_A", ClientKey: "k"})
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := commands.Dispatch[reserveCommand, *reserveResult](ctx, bus, reserveCommand{UserID: "u", Room: "R_A", ClientKey: "k"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if *first != *second {
		t.Fatalf("replay returned %+v, want %+v", second, first)
	}

	if _, err := commands.Dispatch[reserveCommand, *reserveResult](ctx, bus, reserveCommand{UserID: "u", Room: "R_A"}); err != nil {
		t.Fatalf("keyless dispatch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("keyless command must not be deduplicated, calls=%d", calls)
	}
}

func TestIdempotencyReplaysFinalErrorsOnly(t *testing.T) {
	ctx := context.Background()

	calls := 0
	store := &memoryStore{records: map[string]IdempotencyRecord{}}
	bus := ChainCommands(newReserveBus(&calls, apperr.Validation("R_A", "room is restricted")), Idempotency(store, nil))
	for i := 0; i < 2; i++ {
		_, err := bus.Dispatch(ctx, reserveCommand{UserID: "u", Room: "R_A", ClientKey: "k"})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("attempt %d: expected validation error, got %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("validation failure should be replayed, handler ran %d times", calls)
	}

	calls = 0
	store = &memoryStore{records: map[string]IdempotencyRecord{}}
	bus = ChainCommands(newReserveBus(&calls, apperr.Conflict("test", errors.New("busy"))), Idempotency(store, nil))
	for i := 0; i < 2; i++ {
		if _, err := bus.Dispatch(ctx, reserveCommand{UserID: "u", Room: "R_A", ClientKey: "k"}); !apperr.Retryable(err) {
			t.Fatalf("attempt %d: expected retryable error, got %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("retryable failure must not be stored, handler ran %d times", calls)
	}
}

func TestAuthorizationAndValidation(t *testing.T) {
	calls := 0
	bus := ChainCommands(newReserveBus(&calls, nil),
		Authorization(UserAuthorizer{RequirePrefix: true}),
		Validation(NewStructValidator()),
	)
	ctx := context.Background()

	if _, err := bus.Dispatch(ctx, reserveCommand{UserID: "alice", Room: "R_A"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected malformed user id to be rejected, got %v", err)
	}
	if _, err := bus.Dispatch(ctx, reserveCommand{UserID: "U_23456789"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected missing room to be rejected, got %v", err)
	}
	if _, err := bus.Dispatch(ctx, staffCommand{UserID: "U_23456789", Role: "guest"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := bus.Dispatch(ctx, staffCommand{UserID: "U_23456789", Role: RoleStaff}); err != nil {
		t.Fatalf("staff command: %v", err)
	}
	if calls != 0 {
		t.Fatalf("rejected commands reached the handler %d times", calls)
	}
}

func TestOutboxFlushRunsAfterEveryCommand(t *testing.T) {
	calls := 0
	box := &countingOutbox{}
	bus := ChainCommands(newReserveBus(&calls, nil), OutboxFlush(box, nil))

	res, err := commands.Dispatch[reserveCommand, *reserveResult](context.Background(), bus, reserveCommand{UserID: "u", Room: "R_A"})
	if err != nil {
		t.Fatalf("flush failure must not fail the command: %v", err)
	}
	if res.Room != "R_A" || box.flushes != 1 {
		t.Fatalf("unexpected result %+v after %d flushes", res, box.flushes)
	}
}
