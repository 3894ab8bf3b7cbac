package booking

import (
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID BookingID           `json:"booking_id"`
	UserID    string              `json:"user_id"`
	Range     daterange.DateRange `json:"range"`
	Rooms     []string            `json:"rooms"`
	Guests    int                 `json:"guests"`
	Total     money.Money         `json:"total"`
	At        time.Time           `json:"at"`
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID           `json:"booking_id"`
	UserID    string              `json:"user_id"`
	Range     daterange.DateRange `json:"range"`
	Rooms     []string            `json:"rooms"`
	At        time.Time           `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID `json:"booking_id"`
	At        time.Time `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

// ReleaseIncomplete tells operators which rooms still hold a cancelled booking.
type ReleaseIncomplete struct {
	BookingID BookingID `json:"booking_id"`
	Rooms     []string  `json:"rooms"`
	Errors    []string  `json:"errors"`
	At        time.Time `json:"at"`
}

func (e ReleaseIncomplete) EventName() string     { return "booking.release_incomplete" }
func (e ReleaseIncomplete) AggregateID() string   { return string(e.BookingID) }
func (e ReleaseIncomplete) OccurredAt() time.Time { return e.At }
