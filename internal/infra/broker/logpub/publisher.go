// Package logpub is the broker used when no message bus is configured:
// events are written to the log instead of being delivered.
package logpub

import (
	"context"
	"log/slog"
)

type Publisher struct {
	Logger *slog.Logger
}

func (p Publisher) Publish(_ context.Context, topic string, key string, payload []byte, _ map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event published", "topic", topic, "key", key, "payload", string(payload))
	return nil
}
