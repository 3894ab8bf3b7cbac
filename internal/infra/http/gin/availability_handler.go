package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{
		RoomID: c.Param("id"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Staff:  userRole(c) == middleware.RoleStaff,
	}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type maintenanceRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	On   *bool  `json:"on" binding:"required"`
}

func (h AvailabilityHandler) Maintenance(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := availabilityapp.SetMaintenanceCommand{
		ActorIDV: user,
		Role:     userRole(c),
		RoomID:   c.Param("id"),
		From:     req.From,
		To:       req.To,
		On:       *req.On,
	}
	result, err := commands.Dispatch[availabilityapp.SetMaintenanceCommand, *dto.Calendar](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
