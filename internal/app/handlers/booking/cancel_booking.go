package booking

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/reservation"
	domainbooking "staybook/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	UserID    string `validate:"required"`
	BookingID string `validate:"required"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) ActorID() string { return c.UserID }

type CancelBookingHandler struct {
	Coordinator *reservation.Coordinator
}

// Handle cancels a booking owned by the caller. A partial release is
// returned as an error; the booking is cancelled regardless.
func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.CancelResult, error) {
	id := domainbooking.BookingID(cmd.BookingID)
	if _, err := ownedBooking(ctx, h.Coordinator, cmd.UserID, id); err != nil {
		return nil, err
	}
	res, err := h.Coordinator.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &dto.CancelResult{
		Booking:          dto.MapBooking(res.Booking),
		AlreadyCancelled: res.AlreadyCancelled,
	}
	return out, nil
}

var _ commands.Handler[CancelBookingCommand, *dto.CancelResult] = (*CancelBookingHandler)(nil)
var _ middleware.Actor = CancelBookingCommand{}
