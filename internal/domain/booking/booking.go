package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidState       = errors.New("booking: invalid state transition")
	ErrBookingNotFound    = errors.New("booking: not found")
	ErrDuplicateID        = errors.New("booking: duplicate id")
	ErrConcurrentUpdate   = errors.New("booking: concurrent update")
	ErrUserRequired       = errors.New("booking: user id required")
	ErrNoAssignments      = errors.New("booking: at least one room assignment required")
	ErrGuestCountMismatch = errors.New("booking: guest list does not match guest count")
)

type BookingID string

type State string

const (
	StateConfirmed State = "CONFIRMED"
	StateCancelled State = "CANCELLED"
	StateCompleted State = "COMPLETED"
)

type Guest struct {
	Name    string       `json:"name" bson:"name"`
	Gender  rooms.Gender `json:"gender" bson:"gender"`
	Primary bool         `json:"primary" bson:"primary"`
}

// Contact is the primary contact snapshot taken at booking time.
type Contact struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone" bson:"phone"`
}

// RoomAssignment is immutable once the booking is created.
type RoomAssignment struct {
	RoomID        rooms.RoomID   `json:"room_id" bson:"room_id"`
	Room          rooms.Snapshot `json:"room" bson:"room"`
	GuestCount    int            `json:"guest_count" bson:"guest_count"`
	NightlyAmount money.Money    `json:"nightly_amount" bson:"nightly_amount"`
	Amount        money.Money    `json:"amount" bson:"amount"`
	Guests        []Guest        `json:"guests" bson:"guests"`
}

// NewAssignment prices guests in the snapshotted room for the given nights.
func NewAssignment(id rooms.RoomID, snap rooms.Snapshot, guests []Guest, nights int) RoomAssignment {
	nightly := snap.NightlyCharge(len(guests))
	return RoomAssignment{
		RoomID:        id,
		Room:          snap,
		GuestCount:    len(guests),
		NightlyAmount: nightly,
		Amount:        nightly.Multiply(int64(nights)),
		Guests:        append([]Guest(nil), guests...),
	}
}

type Booking struct {
	ID          BookingID
	UserID      string
	Range       daterange.DateRange
	State       State
	Assignments []RoomAssignment
	Contact     Contact
	Total       money.Money
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt time.Time
	CompletedAt time.Time
	Version     int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Insert stores a new booking and fails with ErrDuplicateID when the id is taken.
	Insert(ctx context.Context, booking *Booking) error
	// Save updates an existing booking guarded by its version.
	Save(ctx context.Context, booking *Booking) error
	Delete(ctx context.Context, id BookingID) error
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	// ListCheckoutBefore returns CONFIRMED bookings whose checkout is not after cutoff.
	ListCheckoutBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID          BookingID
	UserID      string
	Range       daterange.DateRange
	Assignments []RoomAssignment
	Contact     Contact
	CreatedAt   time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if len(params.Assignments) == 0 {
		return nil, ErrNoAssignments
	}
	amounts := make([]money.Money, 0, len(params.Assignments))
	for _, a := range params.Assignments {
		if a.GuestCount != len(a.Guests) || a.GuestCount < 1 {
			return nil, ErrGuestCountMismatch
		}
		amounts = append(amounts, a.Amount)
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:          params.ID,
		UserID:      params.UserID,
		Range:       params.Range,
		State:       StateConfirmed,
		Assignments: append([]RoomAssignment(nil), params.Assignments...),
		Contact:     params.Contact,
		Total:       total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.Record(BookingCreated{
		BookingID: b.ID,
		UserID:    b.UserID,
		Range:     b.Range,
		Rooms:     b.RoomIDs(),
		Guests:    b.GuestCount(),
		Total:     b.Total,
		At:        now,
	})
	return b, nil
}

// Cancel moves a confirmed booking to CANCELLED. It reports false when the
// booking was already cancelled, which callers treat as success.
func (b *Booking) Cancel(now time.Time) (bool, error) {
	switch b.State {
	case StateCancelled:
		return false, nil
	case StateConfirmed:
	default:
		return false, ErrInvalidState
	}
	b.State = StateCancelled
	b.CancelledAt = now.UTC()
	b.UpdatedAt = b.CancelledAt
	b.Record(BookingCancelled{BookingID: b.ID, UserID: b.UserID, Range: b.Range, Rooms: b.RoomIDs(), At: b.CancelledAt})
	return true, nil
}

// Complete closes a confirmed booking after its checkout date has passed.
func (b *Booking) Complete(now time.Time) error {
	if b.State != StateConfirmed {
		return ErrInvalidState
	}
	if now.Before(b.Range.CheckOut) {
		return ErrInvalidState
	}
	b.State = StateCompleted
	b.CompletedAt = now.UTC()
	b.UpdatedAt = b.CompletedAt
	b.Record(BookingCompleted{BookingID: b.ID, At: b.CompletedAt})
	return nil
}

func (b *Booking) RoomIDs() []string {
	out := make([]string, 0, len(b.Assignments))
	for _, a := range b.Assignments {
		out = append(out, string(a.RoomID))
	}
	return out
}

func (b *Booking) GuestCount() int {
	n := 0
	for _, a := range b.Assignments {
		n += a.GuestCount
	}
	return n
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	out := &Booking{
		ID:          b.ID,
		UserID:      b.UserID,
		Range:       b.Range,
		State:       b.State,
		Contact:     b.Contact,
		Total:       b.Total,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		CancelledAt: b.CancelledAt,
		CompletedAt: b.CompletedAt,
		Version:     b.Version,
	}
	out.Assignments = make([]RoomAssignment, len(b.Assignments))
	for i, a := range b.Assignments {
		a.Guests = append([]Guest(nil), a.Guests...)
		out.Assignments[i] = a
	}
	return out
}
