package mongo

import (
	"testing"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
)

func TestDayDocIDUsesCalendarDate(t *testing.T) {
	evening := time.Date(2025, 7, 1, 23, 30, 0, 0, time.UTC)
	if got := dayDocID("R_DORM01", evening); got != "R_DORM01:2025-07-01" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestDayDocumentKeepsOccupants(t *testing.T) {
	day := availability.Day{
		RoomID:    rooms.RoomID("R_DORM01"),
		Date:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:    availability.StatusPartial,
		Dormitory: true,
		Occupancy: 3,
		Capacity:  6,
		Occupants: []availability.Occupant{
			{BookingID: "B_1", GuestCount: 2},
			{BookingID: "B_2", GuestCount: 1},
		},
		CustomerVisible: true,
		StaffVisible:    true,
		Version:         4,
	}
	doc := newDayDocument(day)
	if doc.ID != "R_DORM01:2025-07-01" || doc.Version != 4 {
		t.Fatalf("unexpected document %+v", doc)
	}
	back := doc.toDay()
	if back.Occupancy != 3 || len(back.Occupants) != 2 || back.Occupants[1].BookingID != "B_2" {
		t.Fatalf("occupants lost: %+v", back)
	}
	if err := back.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}
