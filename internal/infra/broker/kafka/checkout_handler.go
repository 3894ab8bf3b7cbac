package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/domain/shared/apperr"
)

// CheckoutEventType is the front desk fact that completes a stay.
const CheckoutEventType = "stay.checked_out"

// Inbox deduplicates redelivered messages per consumer.
type Inbox interface {
	// Claim records eventID and reports whether it had been seen before.
	Claim(ctx context.Context, eventID string) (seen bool, err error)
	// Forget drops a claim so a failed message can be processed again.
	Forget(ctx context.Context, eventID string) error
}

type checkoutEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		BookingID string `json:"booking_id"`
	} `json:"data"`
}

// CheckoutHandler completes bookings from stay.checked_out CloudEvents.
type CheckoutHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h *CheckoutHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env checkoutEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger().Warn("dropping malformed checkout message", "offset", msg.Offset, "error", err)
		return nil
	}
	if env.Type != CheckoutEventType && env.Type != CheckoutEventType+".v1" {
		return nil
	}
	if env.ID == "" || env.Data.BookingID == "" {
		h.logger().Warn("dropping checkout message without ids", "offset", msg.Offset)
		return nil
	}
	seen, err := h.Inbox.Claim(ctx, env.ID)
	if err != nil {
		return fmt.Errorf("inbox claim %s: %w", env.ID, err)
	}
	if seen {
		return nil
	}
	_, err = commands.Dispatch[bookinghandlers.CompleteBookingCommand, *dto.Booking](ctx, h.Bus, bookinghandlers.CompleteBookingCommand{BookingID: env.Data.BookingID})
	switch {
	case err == nil:
		h.logger().Info("stay checked out", "booking_id", env.Data.BookingID, "event_id", env.ID)
		return nil
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation):
		// a cancelled booking or an early checkout is final; redelivery would not help
		h.logger().Warn("checkout ignored", "booking_id", env.Data.BookingID, "error", err)
		return nil
	default:
		if ferr := h.Inbox.Forget(ctx, env.ID); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
}

func (h *CheckoutHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger
}

var _ MessageHandler = (*CheckoutHandler)(nil)
