package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

type CreateRequest struct {
	UserID     string
	Range      daterange.DateRange
	Contact    booking.Contact
	Selections []Selection
}

// Create re-validates the selection, persists a CONFIRMED booking and
// occupies every night of every selected room. If any room cannot be
// occupied, every room of the booking is released and the record deleted.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*booking.Booking, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperr.Validation("", "user id is required")
	}
	if err := req.Range.Validate(); err != nil {
		return nil, apperr.Validation("", "invalid date range: %v", err)
	}
	if len(req.Selections) == 0 {
		return nil, apperr.Validation("", "at least one room must be selected")
	}

	nights := req.Range.Nights()
	seen := make(map[rooms.RoomID]bool, len(req.Selections))
	assignments := make([]booking.RoomAssignment, 0, len(req.Selections))
	for _, sel := range req.Selections {
		room, err := c.checkSelection(ctx, sel, seen)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, booking.NewAssignment(room.ID, room.Snapshot(), sel.Guests, nights))
	}

	for _, a := range assignments {
		if err := c.ensureAvailable(ctx, a, req.Range); err != nil {
			return nil, err
		}
	}

	b, unlock, err := c.insert(ctx, req, assignments)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := c.occupyAll(ctx, b); err != nil {
		return nil, err
	}
	if err := c.confirmHeld(ctx, b); err != nil {
		return nil, err
	}
	c.record(ctx, b)
	c.logger().Info("booking created", "booking_id", b.ID, "user_id", b.UserID, "range", b.Range.String(), "rooms", len(b.Assignments), "guests", b.GuestCount())
	return b, nil
}

// ensureAvailable checks the ledger as it is now, not as the caller last saw it.
func (c *Coordinator) ensureAvailable(ctx context.Context, a booking.RoomAssignment, dr daterange.DateRange) error {
	days, err := c.Ledger.RangeOf(ctx, availability.UnitFromSnapshot(a.RoomID, a.Room), dr)
	if err != nil {
		return err
	}
	for _, d := range days {
		if d.Remaining() < a.GuestCount {
			return apperr.CapacityExceeded(string(a.RoomID), d.Date, a.GuestCount, d.Remaining())
		}
	}
	return nil
}

// insert stores a new booking, drawing a fresh id when the last one collided.
// The booking lock is taken before the record becomes visible and is returned held.
func (c *Coordinator) insert(ctx context.Context, req CreateRequest, assignments []booking.RoomAssignment) (*booking.Booking, func(), error) {
	var lastErr error
	for attempt := 0; attempt < c.idRetries(); attempt++ {
		id, err := c.newID()
		if err != nil {
			return nil, nil, fmt.Errorf("generate booking id: %w", err)
		}
		b, err := booking.NewBooking(booking.CreateParams{
			ID:          booking.BookingID(id),
			UserID:      req.UserID,
			Range:       req.Range,
			Assignments: assignments,
			Contact:     req.Contact,
			CreatedAt:   c.now(),
		})
		if err != nil {
			return nil, nil, apperr.Validation("", "%v", err)
		}
		unlock, err := c.lock(ctx, b.ID)
		if err != nil {
			return nil, nil, err
		}
		err = c.Bookings.Insert(ctx, b)
		if err == nil {
			return b, unlock, nil
		}
		unlock()
		if !errors.Is(err, booking.ErrDuplicateID) {
			return nil, nil, err
		}
		c.logger().Warn("booking id collision", "booking_id", id, "attempt", attempt+1)
		lastErr = err
	}
	return nil, nil, apperr.Conflict("reservation.create", lastErr)
}

// occupyAll applies every assignment under CommitTimeout and rolls back on failure.
func (c *Coordinator) occupyAll(ctx context.Context, b *booking.Booking) error {
	commitCtx, cancel := context.WithTimeout(ctx, c.commitTimeout())
	defer cancel()

	for _, a := range b.Assignments {
		unit := availability.UnitFromSnapshot(a.RoomID, a.Room)
		err := c.retry(commitCtx, func() error {
			return c.Ledger.Occupy(commitCtx, unit, b.Range, string(b.ID), a.GuestCount)
		})
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = apperr.Conflict("reservation.create", err)
		}
		if rbErr := c.rollback(ctx, b); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// confirmHeld re-reads the record once every night is held. A cancel that
// ran before the nights were occupied released nothing, so they are released
// here and the cancelled record is left in place.
func (c *Coordinator) confirmHeld(ctx context.Context, b *booking.Booking) error {
	current, err := c.Bookings.ByID(ctx, b.ID)
	if err != nil {
		err = fmt.Errorf("reload booking %s: %w", b.ID, err)
		if rbErr := c.rollback(ctx, b); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if current.State != booking.StateCancelled {
		return nil
	}
	c.logger().Warn("booking cancelled while being created", "booking_id", b.ID)
	cancelled := apperr.Validation("", "booking %s was cancelled while being created", b.ID)
	if err := c.releaseAll(ctx, b); err != nil {
		return errors.Join(cancelled, err)
	}
	return cancelled
}

// rollback releases every room of b and deletes the record. A failing Occupy
// may have written a night before it errored, so no assignment is skipped;
// releasing a night the booking does not hold changes nothing.
func (c *Coordinator) rollback(ctx context.Context, b *booking.Booking) error {
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout())
	defer cancel()

	var errs []error
	if err := c.releaseAll(undoCtx, b); err != nil {
		errs = append(errs, err)
	}
	if err := c.Bookings.Delete(undoCtx, b.ID); err != nil {
		errs = append(errs, fmt.Errorf("delete booking: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		c.logger().Error("booking rollback incomplete", "booking_id", b.ID, "error", err)
		return err
	}
	c.logger().Info("booking rolled back", "booking_id", b.ID, "released_rooms", len(b.Assignments))
	return nil
}

// releaseAll releases every assignment of b detached from the caller, so a
// cancelled request still cleans up.
func (c *Coordinator) releaseAll(ctx context.Context, b *booking.Booking) error {
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout())
	defer cancel()

	var errs []error
	for _, a := range b.Assignments {
		unit := availability.UnitFromSnapshot(a.RoomID, a.Room)
		err := c.retry(undoCtx, func() error {
			return c.Ledger.Release(undoCtx, unit, b.Range, string(b.ID))
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", a.RoomID, err))
		}
	}
	return errors.Join(errs...)
}
