package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/middleware"
	"staybook/internal/domain/shared/apperr"
)

type errorBody struct {
	Error     string                  `json:"error"`
	Kind      string                  `json:"kind,omitempty"`
	RoomID    string                  `json:"room_id,omitempty"`
	BookingID string                  `json:"booking_id,omitempty"`
	Date      string                  `json:"date,omitempty"`
	Requested int                     `json:"requested,omitempty"`
	Available *int                    `json:"available,omitempty"`
	Failures  []apperr.ReleaseFailure `json:"failures,omitempty"`
}

// statusFor maps engine error kinds onto HTTP statuses.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindCapacityExceeded:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusServiceUnavailable
	case apperr.KindPartialRelease:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, middleware.ErrForbidden) {
		c.JSON(http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		}
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	body := errorBody{
		Error:     appErr.Error(),
		Kind:      string(appErr.Kind),
		RoomID:    appErr.RoomID,
		BookingID: appErr.BookingID,
		Failures:  appErr.Failures,
	}
	if !appErr.Date.IsZero() {
		body.Date = appErr.Date.Format(time.DateOnly)
	}
	if appErr.Kind == apperr.KindCapacityExceeded {
		body.Requested = appErr.Requested
		available := appErr.Available
		body.Available = &available
	}
	status := statusFor(appErr.Kind)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}
