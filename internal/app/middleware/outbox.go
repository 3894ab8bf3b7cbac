package middleware

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
)

// OutboxFlush flushes pending records after a successful command. A failed
// flush is logged, not returned: the state change already happened and the
// records stay queued for the relay.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if flushErr := box.Flush(context.WithoutCancel(ctx)); flushErr != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", flushErr)
			}
			return res, err
		})
	}
}
