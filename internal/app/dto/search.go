package dto

import (
	"time"

	"staybook/internal/app/allocator"
)

type SearchResult struct {
	Location     string                  `json:"location"`
	CheckIn      string                  `json:"check_in"`
	CheckOut     string                  `json:"check_out"`
	Party        int                     `json:"party"`
	Combinations []allocator.Combination `json:"combinations"`
}

type RoomValidation struct {
	RoomID string `json:"room_id"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type SelectionValidation struct {
	Valid bool             `json:"valid"`
	Rooms []RoomValidation `json:"rooms"`
}

func MapSearch(req allocator.Request, combos []allocator.Combination) SearchResult {
	if combos == nil {
		combos = []allocator.Combination{}
	}
	return SearchResult{
		Location:     req.Location,
		CheckIn:      req.Range.CheckIn.Format(time.DateOnly),
		CheckOut:     req.Range.CheckOut.Format(time.DateOnly),
		Party:        req.PartySize(),
		Combinations: combos,
	}
}
