package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	searchapp "staybook/internal/app/handlers/search"
	"staybook/internal/app/queries"
)

type SearchHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

type searchParams struct {
	Location string `form:"location"`
	CheckIn  string `form:"check_in"`
	CheckOut string `form:"check_out"`
	Male     int    `form:"male"`
	Female   int    `form:"female"`
}

func (h SearchHandler) Search(c *gin.Context) {
	var p searchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	q := searchapp.SearchRoomsQuery{
		Location: p.Location,
		CheckIn:  p.CheckIn,
		CheckOut: p.CheckOut,
		Male:     p.Male,
		Female:   p.Female,
	}
	result, err := queries.Ask[searchapp.SearchRoomsQuery, dto.SearchResult](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ SearchHTTP = SearchHandler{}
