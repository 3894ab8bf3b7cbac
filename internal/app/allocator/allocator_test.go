package allocator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"staybook/internal/app/allocator"
	"staybook/internal/app/ledger"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

func room(id rooms.RoomID, typ rooms.RoomType, capacity int, restriction rooms.Restriction, price int64) rooms.Room {
	return rooms.Room{ID: id, Name: string(id), Location: "bkk", Type: typ, Capacity: capacity, Restriction: restriction, NightlyPrice: money.Must(price, "THB")}
}

type fixture struct {
	ledger    *ledger.Ledger
	allocator *allocator.Allocator
}

func newFixture(t *testing.T, items ...rooms.Room) fixture {
	t.Helper()
	catalog, err := memory.NewCatalog(items...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	l := &ledger.Ledger{Store: memory.NewDayStore(), Catalog: catalog, Locker: memory.NewLocker()}
	return fixture{ledger: l, allocator: &allocator.Allocator{Catalog: catalog, Ledger: l, Limit: 50}}
}

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return dr
}

func TestSingleRoomExactFit(t *testing.T) {
	f := newFixture(t, room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 1000))
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-03"),
		Male:     1,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 1 {
		t.Fatalf("expected one combination, got %d", len(combos))
	}
	c := combos[0]
	if c.TotalPrice.Amount != 2000 || c.Nights != 2 || len(c.Rooms) != 1 || c.Rooms[0].RoomID != "R_AAAAAA" {
		t.Fatalf("unexpected combination %+v", c)
	}
	if c.Efficiency != 1 {
		t.Fatalf("expected efficiency 1, got %v", c.Efficiency)
	}
}

func TestCombinationSoundness(t *testing.T) {
	f := newFixture(t,
		room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 900),
		room("R_BBBBBB", rooms.TypeDormitory, 6, rooms.RestrictionNone, 300),
		room("R_CCCCCC", rooms.TypeTwin, 2, rooms.RestrictionMale, 1200),
		room("R_DDDDDD", rooms.TypeTwin, 2, rooms.RestrictionFemale, 1100),
		room("R_EEEEEE", rooms.TypeDeluxe, 3, rooms.RestrictionNone, 2500),
		room("R_FFFFFF", rooms.TypeVIP, 4, rooms.RestrictionNone, 5000),
	)
	dr := mustRange(t, "2025-07-01", "2025-07-03")
	caps := map[rooms.RoomID]rooms.Room{}
	for _, id := range []rooms.RoomID{"R_AAAAAA", "R_BBBBBB", "R_CCCCCC", "R_DDDDDD", "R_EEEEEE", "R_FFFFFF"} {
		r, _ := f.ledger.Catalog.Room(context.Background(), id)
		caps[id] = r
	}
	parties := [][2]int{{1, 0}, {0, 1}, {2, 2}, {3, 1}, {0, 5}, {4, 4}}
	for _, p := range parties {
		combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{Location: "bkk", Range: dr, Male: p[0], Female: p[1]})
		if err != nil {
			t.Fatalf("party %v: %v", p, err)
		}
		if len(combos) == 0 {
			t.Fatalf("party %v: expected at least one combination", p)
		}
		for i, c := range combos {
			male, female := 0, 0
			seen := map[rooms.RoomID]bool{}
			for _, a := range c.Rooms {
				r := caps[a.RoomID]
				if seen[a.RoomID] {
					t.Fatalf("party %v: room %s used twice", p, a.RoomID)
				}
				seen[a.RoomID] = true
				if a.Guests != a.Male+a.Female || a.Guests < 1 || a.Guests > r.Capacity {
					t.Fatalf("party %v: bad allocation %+v", p, a)
				}
				if !r.Restriction.Allows(a.Male, a.Female) {
					t.Fatalf("party %v: restriction %s violated by %+v", p, r.Restriction, a)
				}
				male += a.Male
				female += a.Female
			}
			if male != p[0] || female != p[1] {
				t.Fatalf("party %v: allocations sum to %d/%d", p, male, female)
			}
			if i > 0 && combos[i-1].TotalPrice.Amount > c.TotalPrice.Amount {
				t.Fatalf("party %v: not ranked cheapest first", p)
			}
		}
	}
}

func TestDormitoryPricedPerBed(t *testing.T) {
	f := newFixture(t, room("R_BBBBBB", rooms.TypeDormitory, 6, rooms.RestrictionNone, 300))
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     2,
		Female:   1,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 1 || combos[0].TotalPrice.Amount != 900 || combos[0].Efficiency != 1 {
		t.Fatalf("unexpected %+v", combos)
	}
}

func TestMultiRoomOnlyWhenNoSingleFits(t *testing.T) {
	f := newFixture(t,
		room("R_CCCCCC", rooms.TypeTwin, 2, rooms.RestrictionMale, 1000),
		room("R_DDDDDD", rooms.TypeTwin, 2, rooms.RestrictionFemale, 1000),
	)
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     2,
		Female:   2,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 1 || len(combos[0].Rooms) != 2 || combos[0].TotalPrice.Amount != 2000 {
		t.Fatalf("expected the male/female split, got %+v", combos)
	}
}

func TestMultiRoomDroppedWhenSingleIsBetter(t *testing.T) {
	f := newFixture(t,
		room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 800),
		room("R_CCCCCC", rooms.TypeTwin, 2, rooms.RestrictionNone, 1000),
		room("R_GGGGGG", rooms.TypeSingle, 1, rooms.RestrictionNone, 800),
	)
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     2,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	// the twin costs 1000 at efficiency 1; two singles cost 1600 at the same efficiency
	if len(combos) != 1 || combos[0].Rooms[0].RoomID != "R_CCCCCC" {
		t.Fatalf("expected only the twin, got %+v", combos)
	}
}

func TestCheaperSplitIsKept(t *testing.T) {
	f := newFixture(t,
		room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 300),
		room("R_GGGGGG", rooms.TypeSingle, 1, rooms.RestrictionNone, 300),
		room("R_EEEEEE", rooms.TypeDeluxe, 2, rooms.RestrictionNone, 2000),
	)
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Female:   2,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 2 || len(combos[0].Rooms) != 2 || combos[0].TotalPrice.Amount != 600 || combos[1].Rooms[0].RoomID != "R_EEEEEE" {
		t.Fatalf("expected split first then deluxe, got %+v", combos)
	}
}

func TestUnavailableRoomsAreIneligible(t *testing.T) {
	ctx := context.Background()
	single := room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 1000)
	dorm := room("R_BBBBBB", rooms.TypeDormitory, 6, rooms.RestrictionNone, 300)
	blocked := room("R_HHHHHH", rooms.TypeTwin, 2, rooms.RestrictionNone, 500)
	f := newFixture(t, single, dorm, blocked)
	dr := mustRange(t, "2025-07-01", "2025-07-04")

	if err := f.ledger.Occupy(ctx, availability.UnitOf(single), mustRange(t, "2025-07-03", "2025-07-04"), "B_X", 1); err != nil {
		t.Fatalf("seed single: %v", err)
	}
	// dorm has 6 free on the first nights but only 1 on the last
	if err := f.ledger.Occupy(ctx, availability.UnitOf(dorm), mustRange(t, "2025-07-03", "2025-07-04"), "B_Y", 5); err != nil {
		t.Fatalf("seed dorm: %v", err)
	}
	if err := f.ledger.SetMaintenance(ctx, blocked.ID, mustRange(t, "2025-07-02", "2025-07-03"), true); err != nil {
		t.Fatalf("maintenance: %v", err)
	}

	combos, err := f.allocator.FindCombinations(ctx, allocator.Request{Location: "bkk", Range: dr, Male: 2})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 0 {
		t.Fatalf("expected no combination, got %+v", combos)
	}
	combos, err = f.allocator.FindCombinations(ctx, allocator.Request{Location: "bkk", Range: dr, Male: 1})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 1 || combos[0].Rooms[0].RoomID != dorm.ID {
		t.Fatalf("expected the dorm bed only, got %+v", combos)
	}
}

func TestEmptyLocationAndBadParty(t *testing.T) {
	f := newFixture(t, room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 1000))
	dr := mustRange(t, "2025-07-01", "2025-07-02")
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{Location: "cnx", Range: dr, Male: 1})
	if err != nil || combos == nil || len(combos) != 0 {
		t.Fatalf("expected empty list, got %v %v", combos, err)
	}
	if _, err := f.allocator.FindCombinations(context.Background(), allocator.Request{Location: "bkk", Range: dr}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty party must be a validation error, got %v", err)
	}
}

func TestLimitTruncates(t *testing.T) {
	f := newFixture(t,
		room("R_AAAAAA", rooms.TypeSingle, 1, rooms.RestrictionNone, 100),
		room("R_CCCCCC", rooms.TypeSingle, 1, rooms.RestrictionNone, 200),
		room("R_DDDDDD", rooms.TypeSingle, 1, rooms.RestrictionNone, 300),
	)
	f.allocator.Limit = 2
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{Location: "bkk", Range: mustRange(t, "2025-07-01", "2025-07-02"), Male: 1})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 2 || combos[0].TotalPrice.Amount != 100 || combos[1].TotalPrice.Amount != 200 {
		t.Fatalf("unexpected %+v", combos)
	}
}

func dormBlock(n int) []rooms.Room {
	out := make([]rooms.Room, n)
	for i := range out {
		out[i] = room(rooms.RoomID(fmt.Sprintf("R_D%05d", i)), rooms.TypeDormitory, 10, rooms.RestrictionNone, 300)
	}
	return out
}

func TestLargeDormitorySearchStaysBounded(t *testing.T) {
	f := newFixture(t, dormBlock(60)...)
	f.allocator.Limit = 5
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     allocator.MaxParty / 2,
		Female:   allocator.MaxParty / 2,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) != 5 {
		t.Fatalf("expected 5 combinations, got %d", len(combos))
	}
	seen := map[string]bool{}
	for _, c := range combos {
		if len(c.Rooms) != 2 || c.TotalPrice.Amount != 6000 {
			t.Fatalf("expected two full dorms at 6000, got %+v", c)
		}
		key := ""
		for _, a := range c.Rooms {
			key += fmt.Sprintf("%s:%d,", a.RoomID, a.Guests)
		}
		if seen[key] {
			t.Fatalf("duplicate combination %s", key)
		}
		seen[key] = true
	}
	if combos[0].Rooms[0].RoomID != "R_D00000" || combos[0].Rooms[1].RoomID != "R_D00001" {
		t.Fatalf("ties must break on room ids, got %+v", combos[0].Rooms)
	}
}

func TestSearchBudgetTruncatesWithoutError(t *testing.T) {
	f := newFixture(t, dormBlock(30)...)
	f.allocator.Budget = 50
	combos, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     15,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(combos) > f.allocator.Limit {
		t.Fatalf("returned %d combinations over the limit", len(combos))
	}
}

func TestOversizedPartyRejected(t *testing.T) {
	f := newFixture(t, dormBlock(3)...)
	_, err := f.allocator.FindCombinations(context.Background(), allocator.Request{
		Location: "bkk",
		Range:    mustRange(t, "2025-07-01", "2025-07-02"),
		Male:     allocator.MaxParty,
		Female:   1,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}
