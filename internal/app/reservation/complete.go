package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
)

// Complete moves a CONFIRMED booking whose checkout has passed to COMPLETED.
// Completing an already completed booking is a no-op.
func (c *Coordinator) Complete(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, err := c.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id)
	}
	if b.State == booking.StateCompleted {
		return b, nil
	}
	if err := b.Complete(c.now()); err != nil {
		if b.State == booking.StateConfirmed {
			return nil, apperr.Validation("", "booking %s checks out on %s", id, b.Range.CheckOut.Format(time.DateOnly))
		}
		return nil, apperr.Validation("", "booking %s cannot be completed in state %s", id, b.State)
	}
	if err := c.Bookings.Save(ctx, b); err != nil {
		if errors.Is(err, booking.ErrConcurrentUpdate) {
			return nil, apperr.Conflict("reservation.complete", err)
		}
		return nil, err
	}
	c.record(ctx, b)
	c.logger().Info("booking completed", "booking_id", id)
	return b, nil
}

// CompleteDue completes every CONFIRMED booking with checkout on or before now
// and reports how many it moved.
func (c *Coordinator) CompleteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := c.Bookings.ListCheckoutBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	done := 0
	var errs []error
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := c.Complete(ctx, b.ID); err != nil {
			errs = append(errs, fmt.Errorf("complete %s: %w", b.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
