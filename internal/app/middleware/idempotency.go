package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/domain/shared/apperr"
)

// IdempotentCommand is implemented by commands whose result is replayed for a repeated key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer the cached payload is decoded into.
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	ErrorKind  string
	Error      string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome of a command seen under the same key.
// Retryable failures are not stored so the client can try again.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(rec, idCmd, codec)
			}
			result, err := next.Dispatch(ctx, cmd)
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if err != nil {
				if apperr.Retryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				record.ErrorKind = string(apperr.KindOf(err))
				record.Error = err.Error()
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		if rec.ErrorKind != "" {
			return nil, &apperr.Error{Kind: apperr.Kind(rec.ErrorKind), Msg: rec.Error}
		}
		return nil, errors.New(rec.Error)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
