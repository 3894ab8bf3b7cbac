package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const defaultInterval = time.Hour

// Completer closes bookings whose checkout is on or before now.
type Completer interface {
	CompleteDue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically moves finished stays to COMPLETED.
type Sweeper struct {
	Completer Completer
	Interval  time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

var ErrSweeperNotConfigured = errors.New("schedule: sweeper missing completer")

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Completer == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int {
	done, err := s.Completer.CompleteDue(ctx, s.now())
	if err != nil && ctx.Err() == nil {
		s.logger().Warn("completion sweep incomplete", "completed", done, "error", err)
	}
	if done > 0 {
		s.logger().Info("completion sweep", "completed", done)
	}
	return done
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return defaultInterval
	}
	return s.Interval
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
