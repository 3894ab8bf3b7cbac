package availability

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/ledger"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

const setMaintenanceKey = "availability.maintenance"

type SetMaintenanceCommand struct {
	ActorIDV string `validate:"required"`
	Role     string
	RoomID   string `validate:"required"`
	From     string `validate:"required,datetime=2006-01-02"`
	To       string `validate:"required,datetime=2006-01-02"`
	On       bool
}

func (c SetMaintenanceCommand) Key() string { return setMaintenanceKey }

func (c SetMaintenanceCommand) ActorID() string { return c.ActorIDV }

func (c SetMaintenanceCommand) ActorRole() string { return c.Role }

type SetMaintenanceHandler struct {
	Ledger *ledger.Ledger
	Logger *slog.Logger
}

func (h *SetMaintenanceHandler) Handle(ctx context.Context, cmd SetMaintenanceCommand) (*dto.Calendar, error) {
	dr, err := daterange.Parse(cmd.From, cmd.To)
	if err != nil {
		return nil, apperr.Validation(cmd.RoomID, "invalid maintenance window: %v", err)
	}
	roomID := rooms.RoomID(cmd.RoomID)
	if err := h.Ledger.SetMaintenance(ctx, roomID, dr, cmd.On); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("maintenance updated", "room_id", roomID, "range", dr.String(), "on", cmd.On, "actor", cmd.ActorIDV)
	}
	days, err := h.Ledger.Range(ctx, roomID, dr)
	if err != nil {
		return nil, err
	}
	out := dto.MapCalendar(cmd.RoomID, dr.CheckIn, dr.CheckOut, days, true)
	return &out, nil
}

var _ commands.Handler[SetMaintenanceCommand, *dto.Calendar] = (*SetMaintenanceHandler)(nil)
var _ middleware.StaffAction = SetMaintenanceCommand{}
