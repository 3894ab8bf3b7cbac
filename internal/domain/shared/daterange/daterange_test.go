package daterange

import (
	"errors"
	"testing"
	"time"
)

func TestNewNormalizesToDates(t *testing.T) {
	in := time.Date(2025, 7, 1, 15, 30, 0, 0, time.FixedZone("X", 3*3600))
	out := time.Date(2025, 7, 3, 11, 0, 0, 0, time.UTC)
	dr, err := New(in, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !dr.CheckIn.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected check-in %v", dr.CheckIn)
	}
	if dr.Nights() != 2 {
		t.Fatalf("expected 2 nights, got %d", dr.Nights())
	}
}

func TestNewRejectsEmptyRanges(t *testing.T) {
	d := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   time.Time
		out  time.Time
	}{
		{"same day", d, d.Add(5 * time.Hour)},
		{"reversed", d, d.Add(-24 * time.Hour)},
		{"zero", time.Time{}, d},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.in, tc.out); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestDatesIsHalfOpen(t *testing.T) {
	dr, err := Parse("2025-07-01", "2025-07-02")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dates := dr.Dates()
	if len(dates) != 1 {
		t.Fatalf("one night stay must occupy one date, got %d", len(dates))
	}
	if dates[0].Format(time.DateOnly) != "2025-07-01" {
		t.Fatalf("unexpected date %v", dates[0])
	}
	if !dr.LastNight().Equal(dates[0]) {
		t.Fatalf("last night mismatch")
	}
}

func TestOverlapsRespectsExclusiveCheckout(t *testing.T) {
	a, _ := Parse("2025-07-01", "2025-07-03")
	b, _ := Parse("2025-07-03", "2025-07-05")
	c, _ := Parse("2025-07-02", "2025-07-04")
	if a.Overlaps(b) {
		t.Fatalf("adjacent ranges must not overlap")
	}
	if !a.Overlaps(c) || !c.Overlaps(b) {
		t.Fatalf("expected overlap")
	}
	if a.ContainsDate(a.CheckOut) {
		t.Fatalf("checkout date is not occupied")
	}
}

func TestNewRejectsRangesOverAYear(t *testing.T) {
	in := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := New(in, in.AddDate(0, 0, MaxNights)); err != nil {
		t.Fatalf("%d nights must be accepted: %v", MaxNights, err)
	}
	if _, err := New(in, in.AddDate(0, 0, MaxNights+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	if _, err := Parse("0001-01-01", "9999-12-31"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong for a multi-millennium range, got %v", err)
	}
}
