package booking

import (
	"context"
	"log/slog"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/reservation"
)

const listMyBookingsKey = "booking.list_mine"

type ListMyBookingsQuery struct {
	UserID string `validate:"required"`
}

func (q ListMyBookingsQuery) Key() string { return listMyBookingsKey }

func (q ListMyBookingsQuery) ActorID() string { return q.UserID }

type ListMyBookingsHandler struct {
	Coordinator *reservation.Coordinator
	Logger      *slog.Logger
}

func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	items, err := h.Coordinator.ListByUser(ctx, q.UserID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("listed bookings", "user_id", q.UserID, "count", len(items))
	}
	return dto.MapBookings(items), nil
}

var _ queries.Handler[ListMyBookingsQuery, dto.BookingCollection] = (*ListMyBookingsHandler)(nil)
