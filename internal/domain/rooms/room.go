package rooms

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/domain/shared/money"
)

var (
	ErrRoomNotFound     = errors.New("rooms: room not found")
	ErrCapacity         = errors.New("rooms: capacity must be at least 1")
	ErrUnknownType      = errors.New("rooms: unknown room type")
	ErrUnknownGender    = errors.New("rooms: unknown gender")
	ErrLocationRequired = errors.New("rooms: location is required")
	ErrNightlyPrice     = errors.New("rooms: nightly price must be non-negative")
)

type RoomID string

type RoomType string

const (
	TypeSingle    RoomType = "single"
	TypeTwin      RoomType = "twin"
	TypeDeluxe    RoomType = "deluxe"
	TypeDormitory RoomType = "dormitory"
	TypeVIP       RoomType = "vip"
)

func (t RoomType) Valid() bool {
	switch t {
	case TypeSingle, TypeTwin, TypeDeluxe, TypeDormitory, TypeVIP:
		return true
	}
	return false
}

// Gender of a guest. Restriction reuses the same values plus RestrictionNone.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func ParseGender(raw string) (Gender, error) {
	switch Gender(strings.ToLower(strings.TrimSpace(raw))) {
	case GenderMale:
		return GenderMale, nil
	case GenderFemale:
		return GenderFemale, nil
	}
	return "", ErrUnknownGender
}

type Restriction string

const (
	RestrictionMale   Restriction = "male"
	RestrictionFemale Restriction = "female"
	RestrictionNone   Restriction = "none"
)

func (r Restriction) Valid() bool {
	switch r {
	case RestrictionMale, RestrictionFemale, RestrictionNone:
		return true
	}
	return false
}

// Allows reports whether a party of male/female guests may share this restriction.
func (r Restriction) Allows(male, female int) bool {
	switch r {
	case RestrictionMale:
		return female == 0
	case RestrictionFemale:
		return male == 0
	default:
		return true
	}
}

// Room is reference data owned by the catalog; the engine never mutates it.
type Room struct {
	ID           RoomID      `json:"id" bson:"_id"`
	Name         string      `json:"name" bson:"name"`
	Location     string      `json:"location" bson:"location"`
	Type         RoomType    `json:"type" bson:"type"`
	Capacity     int         `json:"capacity" bson:"capacity"`
	Restriction  Restriction `json:"gender_restriction" bson:"gender_restriction"`
	NightlyPrice money.Money `json:"nightly_price" bson:"nightly_price"`
}

func (r Room) Validate() error {
	if r.Capacity < 1 {
		return ErrCapacity
	}
	if !r.Type.Valid() {
		return ErrUnknownType
	}
	if !r.Restriction.Valid() {
		return ErrUnknownGender
	}
	if strings.TrimSpace(r.Location) == "" {
		return ErrLocationRequired
	}
	if r.NightlyPrice.Amount < 0 {
		return ErrNightlyPrice
	}
	return nil
}

// IsDormitory reports whether occupants of different bookings may share the room.
func (r Room) IsDormitory() bool {
	return r.Type == TypeDormitory
}

// Snapshot copies the attributes a booking must keep even if the catalog changes later.
type Snapshot struct {
	Type         RoomType    `json:"type" bson:"type"`
	Capacity     int         `json:"capacity" bson:"capacity"`
	Restriction  Restriction `json:"gender_restriction" bson:"gender_restriction"`
	NightlyPrice money.Money `json:"nightly_price" bson:"nightly_price"`
	Location     string      `json:"location" bson:"location"`
}

func (r Room) Snapshot() Snapshot {
	return Snapshot{
		Type:         r.Type,
		Capacity:     r.Capacity,
		Restriction:  r.Restriction,
		NightlyPrice: r.NightlyPrice,
		Location:     r.Location,
	}
}

func (s Snapshot) IsDormitory() bool {
	return s.Type == TypeDormitory
}

// NightlyCharge is the per-night amount for guests: dormitories charge per bed.
func (s Snapshot) NightlyCharge(guests int) money.Money {
	if s.IsDormitory() {
		return s.NightlyPrice.Multiply(int64(guests))
	}
	return s.NightlyPrice
}

// Catalog is the read-only room collaborator.
type Catalog interface {
	Room(ctx context.Context, id RoomID) (Room, error)
	ListByLocation(ctx context.Context, location string) ([]Room, error)
}
