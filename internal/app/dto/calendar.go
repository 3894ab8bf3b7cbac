package dto

import (
	"time"

	"staybook/internal/domain/availability"
)

type CalendarDay struct {
	Date            string `json:"date"`
	Status          string `json:"status"`
	Occupancy       int    `json:"occupancy"`
	Capacity        int    `json:"capacity"`
	Remaining       int    `json:"remaining"`
	BookingID       string `json:"booking_id,omitempty"`
	CustomerVisible bool   `json:"customer_visible"`
}

type Calendar struct {
	RoomID string        `json:"room_id"`
	From   string        `json:"from"`
	To     string        `json:"to"`
	Days   []CalendarDay `json:"days"`
}

// MapCalendar renders ledger days for a room. Staff see who holds a
// non-dormitory night; customers only see the status.
func MapCalendar(roomID string, from, to time.Time, days []availability.Day, staff bool) Calendar {
	out := Calendar{
		RoomID: roomID,
		From:   from.Format(time.DateOnly),
		To:     to.Format(time.DateOnly),
		Days:   make([]CalendarDay, 0, len(days)),
	}
	for _, d := range days {
		if !staff && !d.CustomerVisible {
			continue
		}
		day := CalendarDay{
			Date:            d.Date.Format(time.DateOnly),
			Status:          string(d.Status),
			Occupancy:       d.Occupancy,
			Capacity:        d.Capacity,
			Remaining:       d.Remaining(),
			CustomerVisible: d.CustomerVisible,
		}
		if staff {
			day.BookingID = d.OccupyingBookingID
		}
		out.Days = append(out.Days, day)
	}
	return out
}
