package booking

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/reservation"
	domainbooking "staybook/internal/domain/booking"
)

const completeBookingKey = "booking.complete"

// CompleteBookingCommand is issued by the checkout feed, not by guests.
type CompleteBookingCommand struct {
	BookingID string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string { return completeBookingKey }

type CompleteBookingHandler struct {
	Coordinator *reservation.Coordinator
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*dto.Booking, error) {
	b, err := h.Coordinator.Complete(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[CompleteBookingCommand, *dto.Booking] = (*CompleteBookingHandler)(nil)
