package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type selectionRequest struct {
	Rooms []bookingapp.RoomSelectionInput `json:"rooms" binding:"required"`
}

type createBookingRequest struct {
	CheckIn  string                          `json:"check_in" binding:"required"`
	CheckOut string                          `json:"check_out" binding:"required"`
	Contact  bookingapp.ContactInput         `json:"contact"`
	Rooms    []bookingapp.RoomSelectionInput `json:"rooms" binding:"required"`
}

func (h BookingHandler) Validate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q := bookingapp.ValidateSelectionQuery{UserID: user, Rooms: req.Rooms}
	result, err := queries.Ask[bookingapp.ValidateSelectionQuery, dto.SelectionValidation](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		UserID:          user,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Contact:         req.Contact,
		Rooms:           req.Rooms,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/v1/bookings/"+result.ID)
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{UserID: user, BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Cancel answers 200 for a clean cancel and 202 with the failed rooms when
// some nights could not be released.
func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{UserID: user, BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.CancelResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := bookingapp.ListMyBookingsQuery{UserID: user}
	result, err := queries.Ask[bookingapp.ListMyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
