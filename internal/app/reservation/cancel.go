package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
)

type CancelResult struct {
	Booking          *booking.Booking
	AlreadyCancelled bool
	Failures         []apperr.ReleaseFailure
}

// Cancel releases every assignment of a CONFIRMED booking and marks it
// CANCELLED. Cancelling twice is a no-op. Every release is attempted; if any
// fails, the booking is still cancelled and a partial release error lists
// the rooms that need reconciliation.
func (c *Coordinator) Cancel(ctx context.Context, id booking.BookingID) (CancelResult, error) {
	unlock, err := c.lock(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	defer unlock()

	b, err := c.Bookings.ByID(ctx, id)
	if err != nil {
		return CancelResult{}, mapRepoErr(err, id)
	}
	switch b.State {
	case booking.StateCancelled:
		return CancelResult{Booking: b, AlreadyCancelled: true}, nil
	case booking.StateCompleted:
		return CancelResult{}, apperr.Validation("", "booking %s is completed and cannot be cancelled", id)
	}

	// the assignment snapshot decides how the room was occupied, not the live catalog
	var (
		failures []apperr.ReleaseFailure
		errs     []error
	)
	for _, a := range b.Assignments {
		unit := availability.UnitFromSnapshot(a.RoomID, a.Room)
		err := c.retry(ctx, func() error {
			return c.Ledger.Release(ctx, unit, b.Range, string(b.ID))
		})
		if err != nil {
			failures = append(failures, apperr.ReleaseFailure{RoomID: string(a.RoomID), Error: err.Error()})
			errs = append(errs, fmt.Errorf("release %s: %w", a.RoomID, err))
			c.logger().Error("release failed during cancel", "booking_id", id, "room_id", a.RoomID, "error", err)
		}
	}

	b, already, err := c.markCancelled(ctx, b, failures)
	if err != nil {
		return CancelResult{}, err
	}
	if already {
		return CancelResult{Booking: b, AlreadyCancelled: true}, nil
	}
	c.record(ctx, b)

	res := CancelResult{Booking: b, Failures: failures}
	if len(failures) > 0 {
		return res, apperr.PartialRelease(string(id), failures, errors.Join(errs...))
	}
	c.logger().Info("booking cancelled", "booking_id", id, "rooms", len(b.Assignments))
	return res, nil
}

// markCancelled saves the CANCELLED state, reloading when another writer
// updated the booking in the meantime.
func (c *Coordinator) markCancelled(ctx context.Context, b *booking.Booking, failures []apperr.ReleaseFailure) (*booking.Booking, bool, error) {
	for attempt := 0; ; attempt++ {
		now := c.now()
		changed, err := b.Cancel(now)
		if err != nil {
			return nil, false, apperr.Validation("", "booking %s cannot be cancelled in state %s", b.ID, b.State)
		}
		if !changed {
			return b, true, nil
		}
		if len(failures) > 0 {
			b.Record(booking.ReleaseIncomplete{BookingID: b.ID, Rooms: failedRooms(failures), Errors: failedErrors(failures), At: now})
		}
		err = c.Bookings.Save(ctx, b)
		if err == nil {
			return b, false, nil
		}
		if !errors.Is(err, booking.ErrConcurrentUpdate) || attempt+1 >= c.conflictRetries() {
			if errors.Is(err, booking.ErrConcurrentUpdate) {
				return nil, false, apperr.Conflict("reservation.cancel", err)
			}
			return nil, false, err
		}
		fresh, err := c.Bookings.ByID(ctx, b.ID)
		if err != nil {
			return nil, false, mapRepoErr(err, b.ID)
		}
		b = fresh
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(conflictBackoff):
		}
	}
}

func failedRooms(failures []apperr.ReleaseFailure) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.RoomID
	}
	return out
}

func failedErrors(failures []apperr.ReleaseFailure) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Error
	}
	return out
}
