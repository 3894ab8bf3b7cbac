// Package ids generates short human-friendly identifiers for users, bookings
// and rooms. The alphabet drops 0, O, 1 and I so ids can be read aloud or
// copied from paper without ambiguity.
package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// Alphabet holds 32 symbols, so one random byte maps onto it without bias.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

type Kind string

const (
	KindUser    Kind = "U"
	KindBooking Kind = "B"
	KindRoom    Kind = "R"
)

var ErrInvalidLength = errors.New("ids: length must be positive")

// DefaultLength returns the canonical body length for kind.
func DefaultLength(kind Kind) int {
	switch kind {
	case KindUser:
		return 8
	case KindBooking:
		return 12
	case KindRoom:
		return 6
	default:
		return 12
	}
}

// Generate returns kind + "_" + length random alphabet symbols.
// Uniqueness is not checked here; callers inserting the id must handle a collision.
func Generate(kind Kind, length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ids: read random: %w", err)
	}
	var sb strings.Builder
	sb.Grow(len(kind) + 1 + length)
	sb.WriteString(string(kind))
	sb.WriteByte('_')
	for _, b := range buf {
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

func NewUserID() (string, error)    { return Generate(KindUser, DefaultLength(KindUser)) }
func NewBookingID() (string, error) { return Generate(KindBooking, DefaultLength(KindBooking)) }
func NewRoomID() (string, error)    { return Generate(KindRoom, DefaultLength(KindRoom)) }

// Valid reports whether id has the prefix, length and alphabet of kind.
func Valid(kind Kind, id string) bool {
	prefix := string(kind) + "_"
	if !strings.HasPrefix(id, prefix) {
		return false
	}
	body := id[len(prefix):]
	if len(body) != DefaultLength(kind) {
		return false
	}
	for i := 0; i < len(body); i++ {
		if strings.IndexByte(Alphabet, body[i]) < 0 {
			return false
		}
	}
	return true
}
