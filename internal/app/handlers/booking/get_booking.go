package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/app/reservation"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
)

const getBookingKey = "booking.get"

type GetBookingQuery struct {
	UserID    string `validate:"required"`
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) ActorID() string { return q.UserID }

type GetBookingHandler struct {
	Coordinator *reservation.Coordinator
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	b, err := ownedBooking(ctx, h.Coordinator, q.UserID, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

// ownedBooking hides bookings of other users behind not found.
func ownedBooking(ctx context.Context, c *reservation.Coordinator, userID string, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, apperr.NotFound("booking", string(id))
	}
	return b, nil
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
var _ middleware.Actor = GetBookingQuery{}
