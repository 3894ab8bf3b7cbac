package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/reservation"
)

const validateSelectionKey = "booking.validate_selection"

type ValidateSelectionQuery struct {
	UserID string               `validate:"required"`
	Rooms  []RoomSelectionInput `validate:"required,min=1,dive"`
}

func (q ValidateSelectionQuery) Key() string { return validateSelectionKey }

func (q ValidateSelectionQuery) ActorID() string { return q.UserID }

type ValidateSelectionHandler struct {
	Coordinator *reservation.Coordinator
}

func (h *ValidateSelectionHandler) Handle(ctx context.Context, q ValidateSelectionQuery) (dto.SelectionValidation, error) {
	selections, err := mapSelections(q.Rooms)
	if err != nil {
		return dto.SelectionValidation{}, err
	}
	verdicts, err := h.Coordinator.ValidateSelection(ctx, selections)
	if err != nil {
		return dto.SelectionValidation{}, err
	}
	out := dto.SelectionValidation{Valid: true, Rooms: make([]dto.RoomValidation, 0, len(verdicts))}
	for _, v := range verdicts {
		out.Valid = out.Valid && v.Valid
		out.Rooms = append(out.Rooms, dto.RoomValidation{RoomID: string(v.RoomID), Valid: v.Valid, Reason: v.Reason})
	}
	return out, nil
}

var _ queries.Handler[ValidateSelectionQuery, dto.SelectionValidation] = (*ValidateSelectionHandler)(nil)
