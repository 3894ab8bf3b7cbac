package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

var (
	// ErrVersionConflict is returned by Store.Save when the row changed since it was read.
	ErrVersionConflict = errors.New("availability: version conflict")
	ErrInvalidGuests   = errors.New("availability: guest count must be positive")
	ErrMaintenanceBusy = errors.New("availability: maintenance requires an empty day")
)

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusPartial     Status = "PARTIAL"
	StatusFull        Status = "FULL"
	StatusMaintenance Status = "MAINTENANCE"
)

type Occupant struct {
	BookingID  string `json:"booking_id" bson:"booking_id"`
	GuestCount int    `json:"guest_count" bson:"guest_count"`
}

// Day is the occupancy of one room on one night.
type Day struct {
	RoomID             rooms.RoomID
	Date               time.Time
	Status             Status
	Dormitory          bool
	OccupyingBookingID string
	Occupancy          int
	Capacity           int
	Occupants          []Occupant
	CustomerVisible    bool
	StaffVisible       bool
	Version            int64
	UpdatedAt          time.Time
}

// Unit describes how a room is occupied: shared by bed or held exclusively.
type Unit struct {
	RoomID    rooms.RoomID
	Dormitory bool
	Capacity  int
}

func UnitOf(room rooms.Room) Unit {
	return Unit{RoomID: room.ID, Dormitory: room.IsDormitory(), Capacity: room.Capacity}
}

func UnitFromSnapshot(id rooms.RoomID, snap rooms.Snapshot) Unit {
	return Unit{RoomID: id, Dormitory: snap.IsDormitory(), Capacity: snap.Capacity}
}

// Store persists Day rows keyed by (room, date). Absent rows mean AVAILABLE.
type Store interface {
	Day(ctx context.Context, roomID rooms.RoomID, date time.Time) (Day, bool, error)
	// Range returns the persisted rows inside dr ordered by date.
	Range(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) ([]Day, error)
	// Save writes day if the stored version still equals day.Version, then bumps it.
	// A zero version inserts and conflicts when the row already exists.
	Save(ctx context.Context, day *Day) error
}

// NewDay is the implicit default for a date without a stored row.
func NewDay(unit Unit, date time.Time) Day {
	return Day{
		RoomID:          unit.RoomID,
		Date:            daterange.Date(date),
		Status:          StatusAvailable,
		Dormitory:       unit.Dormitory,
		Capacity:        unit.Capacity,
		CustomerVisible: true,
		StaffVisible:    true,
	}
}

// Remaining is the headcount the day can still take.
func (d Day) Remaining() int {
	switch {
	case d.Status == StatusMaintenance:
		return 0
	case d.Dormitory:
		if free := d.Capacity - d.Occupancy; free > 0 {
			return free
		}
		return 0
	case d.OccupyingBookingID == "":
		return d.Capacity
	default:
		return 0
	}
}

func (d Day) Holds(bookingID string) bool {
	if d.OccupyingBookingID == bookingID {
		return true
	}
	for _, o := range d.Occupants {
		if o.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (d Day) empty() bool {
	return d.OccupyingBookingID == "" && d.Occupancy == 0 && len(d.Occupants) == 0
}

// Occupy adds bookingID with guests to the day. Occupying twice with the same
// booking is a no-op so a retried step cannot count guests twice.
func (d *Day) Occupy(unit Unit, bookingID string, guests int) error {
	if guests < 1 {
		return ErrInvalidGuests
	}
	if d.Holds(bookingID) {
		return nil
	}
	if d.empty() && d.Status != StatusMaintenance {
		d.Dormitory = unit.Dormitory
		d.Capacity = unit.Capacity
	}
	if d.Status == StatusMaintenance {
		return apperr.CapacityExceeded(string(d.RoomID), d.Date, guests, 0)
	}
	if d.Dormitory {
		if d.Occupancy+guests > d.Capacity {
			return apperr.CapacityExceeded(string(d.RoomID), d.Date, guests, d.Remaining())
		}
		d.Occupants = append(d.Occupants, Occupant{BookingID: bookingID, GuestCount: guests})
		d.Occupancy += guests
	} else {
		if d.Status != StatusAvailable || d.OccupyingBookingID != "" {
			return apperr.CapacityExceeded(string(d.RoomID), d.Date, guests, 0)
		}
		if guests > d.Capacity {
			return apperr.CapacityExceeded(string(d.RoomID), d.Date, guests, d.Capacity)
		}
		d.OccupyingBookingID = bookingID
	}
	d.recompute()
	return nil
}

// Release removes bookingID's contribution and reports whether anything changed.
// dormitory selects the release path the booking was originally applied with.
func (d *Day) Release(bookingID string, dormitory bool) bool {
	changed := false
	if dormitory {
		kept := make([]Occupant, 0, len(d.Occupants))
		for _, o := range d.Occupants {
			if o.BookingID == bookingID {
				d.Occupancy -= o.GuestCount
				changed = true
				continue
			}
			kept = append(kept, o)
		}
		d.Occupants = kept
		if len(d.Occupants) == 0 {
			d.Occupants = nil
		}
		if d.Occupancy < 0 {
			d.Occupancy = 0
		}
	} else if d.OccupyingBookingID == bookingID && bookingID != "" {
		d.OccupyingBookingID = ""
		changed = true
	}
	if changed {
		d.recompute()
	}
	return changed
}

// SetMaintenance blocks an empty day or lifts an existing block.
func (d *Day) SetMaintenance(on bool) error {
	if on {
		if d.Status == StatusMaintenance {
			return nil
		}
		if !d.empty() {
			return ErrMaintenanceBusy
		}
		d.Status = StatusMaintenance
		return nil
	}
	if d.Status != StatusMaintenance {
		return nil
	}
	d.Status = StatusAvailable
	d.recompute()
	return nil
}

func (d *Day) recompute() {
	if d.Status == StatusMaintenance {
		return
	}
	if d.Dormitory {
		switch {
		case d.Occupancy <= 0:
			d.Status = StatusAvailable
		case d.Occupancy < d.Capacity:
			d.Status = StatusPartial
		default:
			d.Status = StatusFull
		}
		return
	}
	if d.OccupyingBookingID != "" {
		d.Status = StatusFull
	} else {
		d.Status = StatusAvailable
	}
}

// CheckInvariants verifies the occupancy rules for the row.
func (d Day) CheckInvariants() error {
	if d.Dormitory {
		sum := 0
		for _, o := range d.Occupants {
			sum += o.GuestCount
		}
		if sum != d.Occupancy {
			return fmt.Errorf("availability: occupancy %d != sum of entries %d", d.Occupancy, sum)
		}
		if d.Occupancy < 0 || d.Occupancy > d.Capacity {
			return fmt.Errorf("availability: occupancy %d outside [0,%d]", d.Occupancy, d.Capacity)
		}
		if d.Status == StatusMaintenance {
			return nil
		}
		want := StatusPartial
		if d.Occupancy == 0 {
			want = StatusAvailable
		} else if d.Occupancy == d.Capacity {
			want = StatusFull
		}
		if d.Status != want {
			return fmt.Errorf("availability: status %s, expected %s", d.Status, want)
		}
		return nil
	}
	if d.Status == StatusMaintenance {
		return nil
	}
	if (d.Status == StatusFull) != (d.OccupyingBookingID != "") {
		return fmt.Errorf("availability: status %s with occupying booking %q", d.Status, d.OccupyingBookingID)
	}
	return nil
}

// Clone returns a deep copy so stores never share occupant slices with callers.
func (d Day) Clone() Day {
	out := d
	if d.Occupants != nil {
		out.Occupants = append([]Occupant(nil), d.Occupants...)
	}
	return out
}
