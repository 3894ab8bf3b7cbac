package availability

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/ledger"
	"staybook/internal/app/queries"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

const getCalendarKey = "availability.calendar"

type GetCalendarQuery struct {
	RoomID string `validate:"required"`
	From   string `validate:"required,datetime=2006-01-02"`
	To     string `validate:"required,datetime=2006-01-02"`
	Staff  bool
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	Ledger *ledger.Ledger
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	dr, err := daterange.Parse(q.From, q.To)
	if err != nil {
		return dto.Calendar{}, apperr.Validation(q.RoomID, "invalid calendar window: %v", err)
	}
	days, err := h.Ledger.Range(ctx, rooms.RoomID(q.RoomID), dr)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(q.RoomID, dr.CheckIn, dr.CheckOut, days, q.Staff), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
