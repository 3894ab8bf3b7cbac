package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrTooLong      = errors.New("daterange: range spans more than a year")
)

// MaxNights bounds every range, so per-night work stays proportional to a year.
const MaxNights = 366

const day = 24 * time.Hour

// DateRange represents a half-open interval of nights [checkIn, checkOut).
// Both ends are calendar dates at UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Date(checkIn), CheckOut: Date(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(time.DateOnly, checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := time.Parse(time.DateOnly, checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// Date truncates t to its calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	if dr.CheckOut.After(dr.CheckIn.AddDate(0, 0, MaxNights)) {
		return ErrTooLong
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn) / day)
}

// Dates lists every occupied night, checkOut excluded.
func (dr DateRange) Dates() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.Add(day) {
		out = append(out, d)
	}
	return out
}

// LastNight is the final occupied date, one day before checkout.
func (dr DateRange) LastNight() time.Time {
	return dr.CheckOut.Add(-day)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Date(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(time.DateOnly) + ".." + dr.CheckOut.Format(time.DateOnly)
}
