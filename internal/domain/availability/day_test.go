package availability

import (
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/shared/apperr"
)

var night = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func dormUnit() Unit    { return Unit{RoomID: "R_BBBBBB", Dormitory: true, Capacity: 6} }
func privateUnit() Unit { return Unit{RoomID: "R_AAAAAA", Capacity: 1} }

func TestNewDayDefaultsToAvailable(t *testing.T) {
	d := NewDay(dormUnit(), night.Add(5*time.Hour))
	if d.Status != StatusAvailable || !d.CustomerVisible || !d.StaffVisible {
		t.Fatalf("unexpected default %+v", d)
	}
	if !d.Date.Equal(night) {
		t.Fatalf("date not normalized: %v", d.Date)
	}
	if d.Remaining() != 6 {
		t.Fatalf("expected 6 beds, got %d", d.Remaining())
	}
}

func TestDormitoryPartialFillThenRelease(t *testing.T) {
	d := NewDay(dormUnit(), night)
	if err := d.Occupy(dormUnit(), "B_A", 4); err != nil {
		t.Fatalf("occupy A: %v", err)
	}
	if d.Status != StatusPartial || d.Occupancy != 4 {
		t.Fatalf("after A: %s %d", d.Status, d.Occupancy)
	}
	if err := d.Occupy(dormUnit(), "B_B", 2); err != nil {
		t.Fatalf("occupy B: %v", err)
	}
	if d.Status != StatusFull || d.Occupancy != 6 {
		t.Fatalf("after B: %s %d", d.Status, d.Occupancy)
	}
	if err := d.Occupy(dormUnit(), "B_C", 1); !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
	if !d.Release("B_A", true) {
		t.Fatalf("release A reported no change")
	}
	if d.Status != StatusPartial || d.Occupancy != 2 || len(d.Occupants) != 1 || d.Occupants[0].BookingID != "B_B" {
		t.Fatalf("after release: %+v", d)
	}
	if err := d.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestOccupyIsIdempotentPerBooking(t *testing.T) {
	d := NewDay(dormUnit(), night)
	for i := 0; i < 3; i++ {
		if err := d.Occupy(dormUnit(), "B_A", 2); err != nil {
			t.Fatalf("occupy: %v", err)
		}
	}
	if d.Occupancy != 2 || len(d.Occupants) != 1 {
		t.Fatalf("repeat occupy counted twice: %+v", d)
	}
}

func TestPrivateRoomSingleHolder(t *testing.T) {
	d := NewDay(privateUnit(), night)
	if err := d.Occupy(privateUnit(), "B_A", 1); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if d.Status != StatusFull || d.OccupyingBookingID != "B_A" {
		t.Fatalf("unexpected %+v", d)
	}
	if err := d.Occupy(privateUnit(), "B_B", 1); !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("second holder must fail, got %v", err)
	}
	if d.Release("B_B", false) {
		t.Fatalf("releasing a foreign booking must be a no-op")
	}
	if !d.Release("B_A", false) || d.Status != StatusAvailable {
		t.Fatalf("release failed: %+v", d)
	}
	if d.Release("B_A", false) {
		t.Fatalf("second release must be a no-op")
	}
}

func TestMaintenance(t *testing.T) {
	d := NewDay(privateUnit(), night)
	if err := d.SetMaintenance(true); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("maintenance day must have no capacity")
	}
	if err := d.Occupy(privateUnit(), "B_A", 1); !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("occupy during maintenance must fail, got %v", err)
	}
	if err := d.SetMaintenance(false); err != nil || d.Status != StatusAvailable {
		t.Fatalf("lift maintenance: %v %s", err, d.Status)
	}

	busy := NewDay(dormUnit(), night)
	_ = busy.Occupy(dormUnit(), "B_A", 1)
	if err := busy.SetMaintenance(true); !errors.Is(err, ErrMaintenanceBusy) {
		t.Fatalf("expected ErrMaintenanceBusy, got %v", err)
	}
}

func TestCloneDoesNotShareOccupants(t *testing.T) {
	d := NewDay(dormUnit(), night)
	_ = d.Occupy(dormUnit(), "B_A", 1)
	c := d.Clone()
	c.Occupants[0].GuestCount = 5
	if d.Occupants[0].GuestCount != 1 {
		t.Fatalf("clone shares backing array")
	}
}
