package search

import (
	"context"
	"strings"

	"staybook/internal/app/allocator"
	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

const searchRoomsKey = "search.rooms"

// maxSearchNights caps the stay a search may price.
const maxSearchNights = 30

type SearchRoomsQuery struct {
	Location string `validate:"required"`
	CheckIn  string `validate:"required,datetime=2006-01-02"`
	CheckOut string `validate:"required,datetime=2006-01-02"`
	Male     int    `validate:"gte=0,lte=20"`
	Female   int    `validate:"gte=0,lte=20"`
}

func (q SearchRoomsQuery) Key() string { return searchRoomsKey }

type SearchRoomsHandler struct {
	Allocator *allocator.Allocator
}

func (h *SearchRoomsHandler) Handle(ctx context.Context, q SearchRoomsQuery) (dto.SearchResult, error) {
	dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.SearchResult{}, apperr.Validation("", "invalid stay dates: %v", err)
	}
	if dr.Nights() > maxSearchNights {
		return dto.SearchResult{}, apperr.Validation("", "stay exceeds %d nights", maxSearchNights)
	}
	if q.Male+q.Female < 1 {
		return dto.SearchResult{}, apperr.Validation("", "party must include at least one guest")
	}
	req := allocator.Request{
		Location: strings.TrimSpace(q.Location),
		Range:    dr,
		Male:     q.Male,
		Female:   q.Female,
	}
	combos, err := h.Allocator.FindCombinations(ctx, req)
	if err != nil {
		return dto.SearchResult{}, err
	}
	return dto.MapSearch(req, combos), nil
}

var _ queries.Handler[SearchRoomsQuery, dto.SearchResult] = (*SearchRoomsHandler)(nil)
