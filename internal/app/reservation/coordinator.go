package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/ids"
)

const (
	defaultIDRetries       = 5
	defaultConflictRetries = 3
	defaultCommitTimeout   = 15 * time.Second
	conflictBackoff        = 20 * time.Millisecond
)

// Ledger is the slice of the availability ledger the coordinator drives.
type Ledger interface {
	RangeOf(ctx context.Context, unit availability.Unit, dr daterange.DateRange) ([]availability.Day, error)
	Occupy(ctx context.Context, unit availability.Unit, dr daterange.DateRange, bookingID string, guests int) error
	Release(ctx context.Context, unit availability.Unit, dr daterange.DateRange, bookingID string) error
}

// Locker serializes Create and Cancel of one booking.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Coordinator creates and cancels bookings so that a booking record exists
// exactly when the ledger holds its nights.
type Coordinator struct {
	Catalog  rooms.Catalog
	Ledger   Ledger
	Bookings booking.Repository
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	// Locker is optional; without it Create still re-reads the record after
	// occupying and undoes the nights of a booking cancelled meanwhile.
	Locker Locker

	// NewID generates booking ids; ids.NewBookingID when nil.
	NewID           func() (string, error)
	IDRetries       int
	ConflictRetries int
	// CommitTimeout bounds the occupy phase of Create. Expiry takes the
	// same compensating path as a capacity failure.
	CommitTimeout time.Duration
	Now           func() time.Time
}

type Selection struct {
	RoomID rooms.RoomID
	Guests []booking.Guest
}

func (s Selection) genders() (male, female int) {
	for _, g := range s.Guests {
		switch g.Gender {
		case rooms.GenderMale:
			male++
		case rooms.GenderFemale:
			female++
		}
	}
	return male, female
}

func (c *Coordinator) Get(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, err := c.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id)
	}
	return b, nil
}

func (c *Coordinator) ListByUser(ctx context.Context, userID string) ([]*booking.Booking, error) {
	if userID == "" {
		return nil, apperr.Validation("", "user id is required")
	}
	return c.Bookings.ListByUser(ctx, userID)
}

func mapRepoErr(err error, id booking.BookingID) error {
	if errors.Is(err, booking.ErrBookingNotFound) {
		return apperr.NotFound("booking", string(id))
	}
	return err
}

// retry runs fn again while it fails with a retryable conflict.
func (c *Coordinator) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < c.conflictRetries(); i++ {
		err = fn()
		if err == nil || !apperr.Retryable(err) {
			return err
		}
		if i == c.conflictRetries()-1 {
			break
		}
		c.logger().Warn("retrying after conflict", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(conflictBackoff * time.Duration(i+1)):
		}
	}
	return err
}

func (c *Coordinator) lock(ctx context.Context, id booking.BookingID) (func(), error) {
	if c.Locker == nil {
		return func() {}, nil
	}
	unlock, err := c.Locker.Lock(ctx, "booking:"+string(id))
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", id, err)
	}
	return unlock, nil
}

func (c *Coordinator) record(ctx context.Context, b *booking.Booking) {
	evs := b.Drain()
	if c.Outbox == nil || len(evs) == 0 {
		return
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, evs); err != nil {
		c.logger().Error("record booking events", "booking_id", b.ID, "error", err)
	}
}

func (c *Coordinator) newID() (string, error) {
	if c.NewID != nil {
		return c.NewID()
	}
	return ids.NewBookingID()
}

func (c *Coordinator) idRetries() int {
	if c.IDRetries <= 0 {
		return defaultIDRetries
	}
	return c.IDRetries
}

func (c *Coordinator) conflictRetries() int {
	if c.ConflictRetries <= 0 {
		return defaultConflictRetries
	}
	return c.ConflictRetries
}

func (c *Coordinator) commitTimeout() time.Duration {
	if c.CommitTimeout <= 0 {
		return defaultCommitTimeout
	}
	return c.CommitTimeout
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
