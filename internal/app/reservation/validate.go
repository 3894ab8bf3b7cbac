package reservation

import (
	"context"
	"errors"

	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
)

// RoomValidation is the pre-flight verdict for one selected room.
type RoomValidation struct {
	RoomID rooms.RoomID `json:"room_id"`
	Valid  bool         `json:"valid"`
	Reason string       `json:"reason,omitempty"`
}

// ValidateSelection runs the room checks of Create without touching any state.
func (c *Coordinator) ValidateSelection(ctx context.Context, selections []Selection) ([]RoomValidation, error) {
	out := make([]RoomValidation, 0, len(selections))
	seen := make(map[rooms.RoomID]bool, len(selections))
	for _, sel := range selections {
		v := RoomValidation{RoomID: sel.RoomID, Valid: true}
		_, err := c.checkSelection(ctx, sel, seen)
		if err != nil {
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
				return nil, err
			}
			v.Valid = false
			v.Reason = appErr.Msg
		}
		out = append(out, v)
	}
	return out, nil
}

// checkSelection verifies existence, gender restriction and capacity for one room.
func (c *Coordinator) checkSelection(ctx context.Context, sel Selection, seen map[rooms.RoomID]bool) (rooms.Room, error) {
	id := string(sel.RoomID)
	if seen[sel.RoomID] {
		return rooms.Room{}, apperr.Validation(id, "room selected more than once")
	}
	seen[sel.RoomID] = true
	room, err := c.Catalog.Room(ctx, sel.RoomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return rooms.Room{}, apperr.Validation(id, "room does not exist")
		}
		return rooms.Room{}, err
	}
	if len(sel.Guests) == 0 {
		return room, apperr.Validation(id, "at least one guest is required")
	}
	for _, g := range sel.Guests {
		if g.Gender != rooms.GenderMale && g.Gender != rooms.GenderFemale {
			return room, apperr.Validation(id, "guest %q has no valid gender", g.Name)
		}
	}
	male, female := sel.genders()
	if !room.Restriction.Allows(male, female) {
		return room, apperr.Validation(id, "room is restricted to %s guests", room.Restriction)
	}
	if len(sel.Guests) > room.Capacity {
		return room, apperr.Validation(id, "%d guests exceed room capacity %d", len(sel.Guests), room.Capacity)
	}
	return room, nil
}
