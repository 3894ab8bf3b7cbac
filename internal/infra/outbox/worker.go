package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "staybook/internal/app/outbox"
)

// Queue is the claimable side of the outbox the worker drains.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Worker relays stored events to the broker as CloudEvents.
type Worker struct {
	Queue       Queue
	Publisher   appoutbox.Publisher
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Publisher == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger().Error("outbox relay", "worker_id", w.ID, "error", err)
			}
		}
	}
}

// Drain relays due records until none are left.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		sent, err := w.ProcessOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
}

// ProcessOnce relays one record and reports whether there was one to relay.
// Publish failures are scheduled for retry and not returned.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	doc, err := w.Queue.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, err
	}
	rec := doc.Record()
	payload, headers, err := appoutbox.CloudEvent(rec, w.Source)
	if err == nil {
		err = w.Publisher.Publish(ctx, appoutbox.Topic(rec.Name, w.TopicPrefix), rec.Aggregate, payload, headers)
	}
	if err != nil {
		w.logger().Warn("outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempts", doc.Attempts+1, "error", err)
		return true, w.Queue.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	return true, w.Queue.MarkSent(ctx, doc.ID)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}
