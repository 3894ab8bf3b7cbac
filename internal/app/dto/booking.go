package dto

import (
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type GuestDTO struct {
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	Primary bool   `json:"primary"`
}

type RoomAssignment struct {
	RoomID            string     `json:"room_id"`
	Type              string     `json:"type"`
	Capacity          int        `json:"capacity"`
	GenderRestriction string     `json:"gender_restriction"`
	Location          string     `json:"location"`
	GuestCount        int        `json:"guest_count"`
	NightlyAmount     MoneyDTO   `json:"nightly_amount"`
	Amount            MoneyDTO   `json:"amount"`
	Guests            []GuestDTO `json:"guests"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	CheckIn     string           `json:"check_in"`
	CheckOut    string           `json:"check_out"`
	Nights      int              `json:"nights"`
	State       string           `json:"state"`
	Rooms       []RoomAssignment `json:"rooms"`
	Contact     Contact          `json:"contact"`
	Guests      int              `json:"guests"`
	Total       MoneyDTO         `json:"total"`
	CreatedAt   time.Time        `json:"created_at"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

// CancelResult reports whether the cancel changed anything. A partial
// release is returned as an error carrying the failed rooms instead.
type CancelResult struct {
	Booking          Booking `json:"booking"`
	AlreadyCancelled bool    `json:"already_cancelled"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

func MapBooking(b *booking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	out := Booking{
		ID:       string(b.ID),
		UserID:   b.UserID,
		CheckIn:  b.Range.CheckIn.Format(time.DateOnly),
		CheckOut: b.Range.CheckOut.Format(time.DateOnly),
		Nights:   b.Range.Nights(),
		State:    string(b.State),
		Contact: Contact{
			Name:  b.Contact.Name,
			Email: b.Contact.Email,
			Phone: b.Contact.Phone,
		},
		Guests:    b.GuestCount(),
		Total:     MapMoney(b.Total),
		CreatedAt: b.CreatedAt,
		Rooms:     make([]RoomAssignment, 0, len(b.Assignments)),
	}
	if !b.CancelledAt.IsZero() {
		at := b.CancelledAt
		out.CancelledAt = &at
	}
	if !b.CompletedAt.IsZero() {
		at := b.CompletedAt
		out.CompletedAt = &at
	}
	for _, a := range b.Assignments {
		guests := make([]GuestDTO, 0, len(a.Guests))
		for _, g := range a.Guests {
			guests = append(guests, GuestDTO{Name: g.Name, Gender: string(g.Gender), Primary: g.Primary})
		}
		out.Rooms = append(out.Rooms, RoomAssignment{
			RoomID:            string(a.RoomID),
			Type:              string(a.Room.Type),
			Capacity:          a.Room.Capacity,
			GenderRestriction: string(a.Room.Restriction),
			Location:          a.Room.Location,
			GuestCount:        a.GuestCount,
			NightlyAmount:     MapMoney(a.NightlyAmount),
			Amount:            MapMoney(a.Amount),
			Guests:            guests,
		})
	}
	return out
}

func MapBookings(items []*booking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
