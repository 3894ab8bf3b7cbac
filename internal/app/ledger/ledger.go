package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

const (
	defaultMaxRetries          = 8
	defaultCompensationTimeout = 10 * time.Second
)

// Locker serializes writers of a single room. Day row versions still guard
// every write, so an expired lease cannot overbook.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Ledger owns per-room, per-night occupancy. Every write goes through a
// version compare-and-swap on the Day row and is retried on conflict.
type Ledger struct {
	Store               availability.Store
	Catalog             rooms.Catalog
	Locker              Locker
	MaxRetries          int
	CompensationTimeout time.Duration
	Logger              *slog.Logger
	Now                 func() time.Time
}

// Day returns the stored row or the AVAILABLE default for roomID on date.
func (l *Ledger) Day(ctx context.Context, roomID rooms.RoomID, date time.Time) (availability.Day, error) {
	room, err := l.room(ctx, roomID)
	if err != nil {
		return availability.Day{}, err
	}
	day, found, err := l.Store.Day(ctx, roomID, daterange.Date(date))
	if err != nil {
		return availability.Day{}, err
	}
	if !found {
		return availability.NewDay(availability.UnitOf(room), date), nil
	}
	return day, nil
}

// Range returns one Day per night of dr, defaults included.
func (l *Ledger) Range(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) ([]availability.Day, error) {
	room, err := l.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return l.RangeOf(ctx, availability.UnitOf(room), dr)
}

// RangeOf is Range for a unit the caller already resolved.
func (l *Ledger) RangeOf(ctx context.Context, unit availability.Unit, dr daterange.DateRange) ([]availability.Day, error) {
	if err := dr.Validate(); err != nil {
		return nil, apperr.Validation(string(unit.RoomID), "invalid date range: %v", err)
	}
	rows, err := l.Store.Range(ctx, unit.RoomID, dr)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]availability.Day, len(rows))
	for _, row := range rows {
		byDate[row.Date.UTC().Format(time.DateOnly)] = row
	}
	dates := dr.Dates()
	out := make([]availability.Day, 0, len(dates))
	for _, date := range dates {
		if row, ok := byDate[date.Format(time.DateOnly)]; ok {
			out = append(out, row)
			continue
		}
		out = append(out, availability.NewDay(unit, date))
	}
	return out, nil
}

// Remaining is the headcount every night of dr can still take.
func (l *Ledger) Remaining(ctx context.Context, unit availability.Unit, dr daterange.DateRange) (int, error) {
	days, err := l.RangeOf(ctx, unit, dr)
	if err != nil {
		return 0, err
	}
	return MinRemaining(days), nil
}

// MinRemaining returns the smallest remaining headcount across days.
func MinRemaining(days []availability.Day) int {
	if len(days) == 0 {
		return 0
	}
	low := days[0].Remaining()
	for _, d := range days[1:] {
		if r := d.Remaining(); r < low {
			low = r
		}
	}
	return low
}

// Occupy records bookingID with guests on every night of dr. Nights are
// applied in date order; when one fails, the nights up to and including the
// failing one are released before the error is returned, so the booking holds
// all nights or none.
func (l *Ledger) Occupy(ctx context.Context, unit availability.Unit, dr daterange.DateRange, bookingID string, guests int) error {
	if err := dr.Validate(); err != nil {
		return apperr.Validation(string(unit.RoomID), "invalid date range: %v", err)
	}
	if guests < 1 {
		return apperr.Validation(string(unit.RoomID), "guest count must be positive")
	}
	if bookingID == "" {
		return apperr.Validation(string(unit.RoomID), "booking id required")
	}
	unlock, err := l.lock(ctx, unit.RoomID)
	if err != nil {
		return err
	}
	defer unlock()

	dates := dr.Dates()
	for i, date := range dates {
		err := l.mutate(ctx, unit, date, "ledger.occupy", func(d *availability.Day) (bool, error) {
			if d.Holds(bookingID) {
				return false, nil
			}
			return true, d.Occupy(unit, bookingID, guests)
		})
		if err != nil {
			// the failing night is undone too: its write may have landed
			// before the store reported the error
			if cerr := l.compensate(ctx, unit, dates[:i+1], bookingID); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
	}
	return nil
}

// Release removes bookingID from every night of dr. Releasing a booking that
// holds nothing is a no-op. Every night is attempted even if one fails.
func (l *Ledger) Release(ctx context.Context, unit availability.Unit, dr daterange.DateRange, bookingID string) error {
	if err := dr.Validate(); err != nil {
		return apperr.Validation(string(unit.RoomID), "invalid date range: %v", err)
	}
	unlock, err := l.lock(ctx, unit.RoomID)
	if err != nil {
		return err
	}
	defer unlock()
	return l.releaseDates(ctx, unit, dr.Dates(), bookingID)
}

// SetMaintenance blocks (on) or unblocks every night of dr for staff use.
// Blocking fails with CapacityExceeded when a night is occupied, leaving
// all nights as they were.
func (l *Ledger) SetMaintenance(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange, on bool) error {
	if err := dr.Validate(); err != nil {
		return apperr.Validation(string(roomID), "invalid date range: %v", err)
	}
	room, err := l.room(ctx, roomID)
	if err != nil {
		return err
	}
	unit := availability.UnitOf(room)
	unlock, err := l.lock(ctx, roomID)
	if err != nil {
		return err
	}
	defer unlock()

	var changed []time.Time
	for _, date := range dr.Dates() {
		flipped := false
		err := l.mutate(ctx, unit, date, "ledger.maintenance", func(d *availability.Day) (bool, error) {
			before := d.Status
			if err := d.SetMaintenance(on); err != nil {
				if errors.Is(err, availability.ErrMaintenanceBusy) {
					return false, apperr.CapacityExceeded(string(roomID), d.Date, 0, d.Remaining())
				}
				return false, err
			}
			flipped = d.Status != before
			return flipped, nil
		})
		if err != nil {
			undo := l.detached(ctx)
			defer undo.cancel()
			for _, done := range changed {
				if uerr := l.mutate(undo.ctx, unit, done, "ledger.maintenance", func(d *availability.Day) (bool, error) {
					return true, d.SetMaintenance(!on)
				}); uerr != nil {
					err = errors.Join(err, uerr)
				}
			}
			return err
		}
		if flipped {
			changed = append(changed, date)
		}
	}
	return nil
}

func (l *Ledger) compensate(ctx context.Context, unit availability.Unit, dates []time.Time, bookingID string) error {
	if len(dates) == 0 {
		return nil
	}
	undo := l.detached(ctx)
	defer undo.cancel()
	err := l.releaseDates(undo.ctx, unit, dates, bookingID)
	if err != nil {
		l.logger().Error("ledger compensation failed", "room_id", unit.RoomID, "booking_id", bookingID, "nights", len(dates), "error", err)
		return fmt.Errorf("compensating release: %w", err)
	}
	l.logger().Info("ledger compensated partial occupy", "room_id", unit.RoomID, "booking_id", bookingID, "nights", len(dates))
	return nil
}

func (l *Ledger) releaseDates(ctx context.Context, unit availability.Unit, dates []time.Time, bookingID string) error {
	var errs []error
	for _, date := range dates {
		err := l.mutate(ctx, unit, date, "ledger.release", func(d *availability.Day) (bool, error) {
			return d.Release(bookingID, unit.Dormitory), nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mutate reads the row for date, applies fn and saves it guarded by the row
// version, retrying from a fresh read when another writer got there first.
// fn reports false to skip the write.
func (l *Ledger) mutate(ctx context.Context, unit availability.Unit, date time.Time, op string, fn func(*availability.Day) (bool, error)) error {
	attempts := l.maxRetries()
	for attempt := 0; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		day, found, err := l.Store.Day(ctx, unit.RoomID, date)
		if err != nil {
			return err
		}
		if !found {
			day = availability.NewDay(unit, date)
		}
		write, err := fn(&day)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}
		day.UpdatedAt = l.now()
		err = l.Store.Save(ctx, &day)
		if err == nil {
			return nil
		}
		if !errors.Is(err, availability.ErrVersionConflict) {
			return err
		}
		l.logger().Debug("ledger version conflict", "op", op, "room_id", unit.RoomID, "date", date.Format(time.DateOnly), "attempt", attempt+1)
	}
	return apperr.Conflict(op, fmt.Errorf("room %s on %s: %w", unit.RoomID, date.Format(time.DateOnly), availability.ErrVersionConflict))
}

func (l *Ledger) room(ctx context.Context, id rooms.RoomID) (rooms.Room, error) {
	if l.Catalog == nil {
		return rooms.Room{}, errors.New("ledger: catalog not configured")
	}
	room, err := l.Catalog.Room(ctx, id)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return rooms.Room{}, apperr.NotFound("room", string(id))
		}
		return rooms.Room{}, err
	}
	return room, nil
}

func (l *Ledger) lock(ctx context.Context, roomID rooms.RoomID) (func(), error) {
	if l.Locker == nil {
		return func() {}, nil
	}
	unlock, err := l.Locker.Lock(ctx, "room:"+string(roomID))
	if err != nil {
		return nil, fmt.Errorf("lock room %s: %w", roomID, err)
	}
	return unlock, nil
}

type detachedCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// detached keeps compensation running after the caller's context is done.
func (l *Ledger) detached(ctx context.Context) detachedCtx {
	timeout := l.CompensationTimeout
	if timeout <= 0 {
		timeout = defaultCompensationTimeout
	}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	return detachedCtx{ctx: c, cancel: cancel}
}

func (l *Ledger) maxRetries() int {
	if l.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return l.MaxRetries
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Ledger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}
