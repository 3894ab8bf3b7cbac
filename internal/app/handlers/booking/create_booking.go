package booking

import (
	"context"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/reservation"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

type GuestInput struct {
	Name    string `json:"name" validate:"required"`
	Gender  string `json:"gender" validate:"required,oneof=male female"`
	Primary bool   `json:"primary"`
}

type RoomSelectionInput struct {
	RoomID string       `json:"room_id" validate:"required"`
	Guests []GuestInput `json:"guests" validate:"required,min=1,dive"`
}

type ContactInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type CreateBookingCommand struct {
	UserID          string               `validate:"required"`
	CheckIn         string               `validate:"required,datetime=2006-01-02"`
	CheckOut        string               `validate:"required,datetime=2006-01-02"`
	Contact         ContactInput         `validate:"required"`
	Rooms           []RoomSelectionInput `validate:"required,min=1,dive"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

// IdempotencyKey scopes the client key to the user so keys never collide across users.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.UserID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) ActorID() string { return c.UserID }

type CreateBookingHandler struct {
	Coordinator *reservation.Coordinator
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, apperr.Validation("", "invalid stay dates: %v", err)
	}
	selections, err := mapSelections(cmd.Rooms)
	if err != nil {
		return nil, err
	}
	b, err := h.Coordinator.Create(ctx, reservation.CreateRequest{
		UserID: strings.TrimSpace(cmd.UserID),
		Range:  dr,
		Contact: domainbooking.Contact{
			Name:  strings.TrimSpace(cmd.Contact.Name),
			Email: strings.TrimSpace(cmd.Contact.Email),
			Phone: strings.TrimSpace(cmd.Contact.Phone),
		},
		Selections: selections,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// mapSelections converts request rooms; with no guest flagged primary the
// first guest of the first room becomes the primary guest.
func mapSelections(in []RoomSelectionInput) ([]reservation.Selection, error) {
	out := make([]reservation.Selection, 0, len(in))
	primary := false
	for _, sel := range in {
		guests := make([]domainbooking.Guest, 0, len(sel.Guests))
		for _, g := range sel.Guests {
			gender, err := rooms.ParseGender(g.Gender)
			if err != nil {
				return nil, apperr.Validation(sel.RoomID, "guest %q: %v", g.Name, err)
			}
			if g.Primary && primary {
				return nil, apperr.Validation(sel.RoomID, "only one primary guest is allowed")
			}
			primary = primary || g.Primary
			guests = append(guests, domainbooking.Guest{Name: strings.TrimSpace(g.Name), Gender: gender, Primary: g.Primary})
		}
		out = append(out, reservation.Selection{RoomID: rooms.RoomID(strings.TrimSpace(sel.RoomID)), Guests: guests})
	}
	if !primary && len(out) > 0 && len(out[0].Guests) > 0 {
		out[0].Guests[0].Primary = true
	}
	return out, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
var _ middleware.Actor = CreateBookingCommand{}
