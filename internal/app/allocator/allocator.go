package allocator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"staybook/internal/app/ledger"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const (
	DefaultLimit    = 5
	DefaultMaxRooms = 3
	DefaultBudget   = 200_000

	// MaxParty bounds one search; larger groups book in several requests.
	MaxParty = 20

	readConcurrency = 8
	epsilon         = 1e-9
)

// Availability is the read side of the ledger the allocator needs.
type Availability interface {
	RangeOf(ctx context.Context, unit availability.Unit, dr daterange.DateRange) ([]availability.Day, error)
}

type Request struct {
	Location string
	Range    daterange.DateRange
	Male     int
	Female   int
}

func (r Request) PartySize() int { return r.Male + r.Female }

// Allocation is the share of the party placed in one room.
type Allocation struct {
	RoomID       rooms.RoomID   `json:"room_id"`
	RoomName     string         `json:"room_name"`
	Type         rooms.RoomType `json:"type"`
	Capacity     int            `json:"capacity"`
	Male         int            `json:"male"`
	Female       int            `json:"female"`
	Guests       int            `json:"guests"`
	NightlyPrice money.Money    `json:"nightly_price"`
	Amount       money.Money    `json:"amount"`
}

// Combination is one feasible placement of the whole party.
type Combination struct {
	Rooms      []Allocation `json:"rooms"`
	Nights     int          `json:"nights"`
	TotalPrice money.Money  `json:"total_price"`
	Efficiency float64      `json:"efficiency"`
}

func (c Combination) key() string {
	ids := make([]string, len(c.Rooms))
	for i, a := range c.Rooms {
		ids[i] = string(a.RoomID)
	}
	return strings.Join(ids, ",")
}

// Allocator proposes room combinations for a party. It never mutates the ledger.
type Allocator struct {
	Catalog  rooms.Catalog
	Ledger   Availability
	Limit    int
	MaxRooms int
	// Budget caps the rooms tried while enumerating; zero means DefaultBudget.
	Budget int
	Logger *slog.Logger
}

type candidate struct {
	room      rooms.Room
	remaining int
}

// FindCombinations returns up to Limit combinations ranked cheapest first,
// then by efficiency, then by fewer rooms. No eligible room yields an empty list.
func (a *Allocator) FindCombinations(ctx context.Context, req Request) ([]Combination, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	listed, err := a.Catalog.ListByLocation(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	eligible, err := a.eligible(ctx, listed, req.Range)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return []Combination{}, nil
	}

	e := enumerator{
		req:        req,
		nights:     req.Range.Nights(),
		maxRooms:   a.maxRooms(),
		budget:     a.budget(),
		candidates: eligible,
		best:       ranking{limit: a.limit(), items: []Combination{}},
	}
	e.singles()
	e.walk(0, req.PartySize(), 0, 0, nil)
	if e.exhausted {
		a.logger().Warn("allocator search budget exhausted", "location", req.Location, "range", req.Range.String(), "eligible", len(eligible), "budget", e.budget)
	}
	a.logger().Debug("allocator search", "location", req.Location, "range", req.Range.String(), "eligible", len(eligible), "feasible", e.feasible, "returned", len(e.best.items))
	return e.best.items, nil
}

func validate(req Request) error {
	if err := req.Range.Validate(); err != nil {
		return apperr.Validation("", "invalid date range: %v", err)
	}
	if req.Male < 0 || req.Female < 0 {
		return apperr.Validation("", "guest counts must not be negative")
	}
	if req.PartySize() == 0 {
		return apperr.Validation("", "party must contain at least one guest")
	}
	if req.PartySize() > MaxParty {
		return apperr.Validation("", "party of %d exceeds the maximum of %d guests", req.PartySize(), MaxParty)
	}
	return nil
}

// eligible keeps rooms with capacity left on every night of dr.
func (a *Allocator) eligible(ctx context.Context, listed []rooms.Room, dr daterange.DateRange) ([]candidate, error) {
	remaining := make([]int, len(listed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, room := range listed {
		g.Go(func() error {
			days, err := a.Ledger.RangeOf(gctx, availability.UnitOf(room), dr)
			if err != nil {
				return err
			}
			remaining[i] = ledger.MinRemaining(days)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(listed))
	for i, room := range listed {
		if remaining[i] > 0 {
			out = append(out, candidate{room: room, remaining: remaining[i]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].room.ID < out[j].room.ID })
	return out, nil
}

// pick places guests in candidates[idx]; genders are settled once the set is complete.
type pick struct {
	idx    int
	guests int
}

type enumerator struct {
	req        Request
	nights     int
	maxRooms   int
	budget     int
	candidates []candidate

	// cheapest and efficiency describe the single-room combinations; a
	// multi-room one must beat one of them to be kept.
	hasSingle  bool
	cheapest   money.Money
	efficiency float64

	visited   int
	feasible  int
	exhausted bool
	best      ranking
}

// singles ranks every room that takes the whole party on its own.
func (e *enumerator) singles() {
	party := e.req.PartySize()
	e.efficiency = math.Inf(-1)
	for i, c := range e.candidates {
		if c.remaining < party || !c.room.Restriction.Allows(e.req.Male, e.req.Female) {
			continue
		}
		combo, err := e.combination([]pick{{idx: i, guests: party}})
		if err != nil {
			continue
		}
		if !e.hasSingle || combo.TotalPrice.Less(e.cheapest) {
			e.cheapest = combo.TotalPrice
		}
		e.hasSingle = true
		e.efficiency = math.Max(e.efficiency, combo.Efficiency)
		e.feasible++
		e.best.add(combo)
	}
}

// walk spreads left guests over rooms at index >= from, two rooms or more.
// Only per-room headcounts are enumerated: gender-restricted rooms are bounded
// by the matching gender, and unrestricted rooms absorb whoever is left, so
// every distinct headcount vector is visited once.
func (e *enumerator) walk(from, left, males, females int, chosen []pick) {
	if left == 0 {
		if len(chosen) < 2 {
			return
		}
		combo, err := e.combination(chosen)
		if err != nil {
			return
		}
		e.feasible++
		if e.hasSingle && !combo.TotalPrice.Less(e.cheapest) && combo.Efficiency <= e.efficiency+epsilon {
			return
		}
		e.best.add(combo)
		return
	}
	if len(chosen) == e.maxRooms {
		return
	}
	last := len(chosen) == e.maxRooms-1
	for i := from; i < len(e.candidates); i++ {
		if e.visited >= e.budget {
			e.exhausted = true
			return
		}
		e.visited++
		c := e.candidates[i]
		top := min(left, c.remaining)
		switch c.room.Restriction {
		case rooms.RestrictionMale:
			top = min(top, e.req.Male-males)
		case rooms.RestrictionFemale:
			top = min(top, e.req.Female-females)
		}
		if len(chosen) == 0 && top == e.req.PartySize() {
			top-- // the whole party in one room is a single
		}
		for g := top; g >= 1; g-- {
			if last && g != left {
				continue
			}
			m, f := males, females
			switch c.room.Restriction {
			case rooms.RestrictionMale:
				m += g
			case rooms.RestrictionFemale:
				f += g
			}
			e.walk(i+1, left-g, m, f, append(chosen, pick{idx: i, guests: g}))
		}
	}
}

// split settles genders: restricted rooms take their own gender, open rooms
// take the remaining men first and then the remaining women.
func (e *enumerator) split(chosen []pick) []Allocation {
	male, female := e.req.Male, e.req.Female
	for _, p := range chosen {
		switch e.candidates[p.idx].room.Restriction {
		case rooms.RestrictionMale:
			male -= p.guests
		case rooms.RestrictionFemale:
			female -= p.guests
		}
	}
	out := make([]Allocation, len(chosen))
	for i, p := range chosen {
		room := e.candidates[p.idx].room
		var m, f int
		switch room.Restriction {
		case rooms.RestrictionMale:
			m = p.guests
		case rooms.RestrictionFemale:
			f = p.guests
		default:
			m = min(male, p.guests)
			f = p.guests - m
			male -= m
			female -= f
		}
		out[i] = e.allocation(room, m, f)
	}
	return out
}

func (e *enumerator) allocation(room rooms.Room, male, female int) Allocation {
	guests := male + female
	nightly := room.Snapshot().NightlyCharge(guests)
	return Allocation{
		RoomID:       room.ID,
		RoomName:     room.Name,
		Type:         room.Type,
		Capacity:     room.Capacity,
		Male:         male,
		Female:       female,
		Guests:       guests,
		NightlyPrice: nightly,
		Amount:       nightly.Multiply(int64(e.nights)),
	}
}

func (e *enumerator) combination(chosen []pick) (Combination, error) {
	allocs := e.split(chosen)
	amounts := make([]money.Money, len(allocs))
	used := 0
	for i, a := range allocs {
		amounts[i] = a.Amount
		if a.Type == rooms.TypeDormitory {
			used += a.Guests
		} else {
			used += a.Capacity
		}
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		return Combination{}, err
	}
	if used == 0 {
		return Combination{}, errors.New("allocator: empty combination")
	}
	return Combination{
		Rooms:      allocs,
		Nights:     e.nights,
		TotalPrice: total,
		Efficiency: float64(e.req.PartySize()) / float64(used),
	}, nil
}

// ranking keeps the best limit combinations seen so far, in rank order.
type ranking struct {
	limit int
	items []Combination
}

func (r *ranking) add(c Combination) {
	pos := sort.Search(len(r.items), func(i int) bool { return better(c, r.items[i]) })
	if pos >= r.limit {
		return
	}
	r.items = append(r.items, Combination{})
	copy(r.items[pos+1:], r.items[pos:])
	r.items[pos] = c
	if len(r.items) > r.limit {
		r.items = r.items[:r.limit]
	}
}

func better(a, b Combination) bool {
	if a.TotalPrice.Amount != b.TotalPrice.Amount {
		return a.TotalPrice.Amount < b.TotalPrice.Amount
	}
	if math.Abs(a.Efficiency-b.Efficiency) > epsilon {
		return a.Efficiency > b.Efficiency
	}
	if len(a.Rooms) != len(b.Rooms) {
		return len(a.Rooms) < len(b.Rooms)
	}
	return a.key() < b.key()
}

func (a *Allocator) limit() int {
	if a.Limit <= 0 {
		return DefaultLimit
	}
	return a.Limit
}

func (a *Allocator) maxRooms() int {
	if a.MaxRooms <= 0 {
		return DefaultMaxRooms
	}
	return a.MaxRooms
}

func (a *Allocator) budget() int {
	if a.Budget <= 0 {
		return DefaultBudget
	}
	return a.Budget
}

func (a *Allocator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}
