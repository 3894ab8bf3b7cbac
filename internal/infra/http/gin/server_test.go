package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app"
	"staybook/internal/app/allocator"
	"staybook/internal/app/dto"
	"staybook/internal/app/ledger"
	"staybook/internal/app/reservation"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/storage/memory"
)

const (
	guestA = "U_23456789"
	guestB = "U_ABCDEFGH"
)

var (
	single = rooms.Room{ID: "R_SINGLE", Name: "Single", Location: "bkk", Type: rooms.TypeSingle, Capacity: 1, Restriction: rooms.RestrictionNone, NightlyPrice: money.Must(1000, "THB")}
	dorm   = rooms.Room{ID: "R_DORMIT", Name: "Dorm", Location: "bkk", Type: rooms.TypeDormitory, Capacity: 6, Restriction: rooms.RestrictionNone, NightlyPrice: money.Must(300, "THB")}
)

// brokenRelease fails every release of one room.
type brokenRelease struct {
	*ledger.Ledger
	room rooms.RoomID
}

func (b *brokenRelease) Release(ctx context.Context, unit availability.Unit, dr daterange.DateRange, id string) error {
	if unit.RoomID == b.room {
		return errors.New("ledger store unavailable")
	}
	return b.Ledger.Release(ctx, unit, dr, id)
}

type fixture struct {
	router *gin.Engine
	broken *brokenRelease
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog, err := memory.NewCatalog(single, dorm)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	l := &ledger.Ledger{Store: memory.NewDayStore(), Catalog: catalog, Locker: memory.NewLocker()}
	broken := &brokenRelease{Ledger: l}
	box := memory.NewOutbox(nil)
	coord := &reservation.Coordinator{
		Catalog:         catalog,
		Ledger:          broken,
		Bookings:        memory.NewBookingRepository(),
		Outbox:          box,
		ConflictRetries: 1,
		Now:             func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	}
	buses := app.Build(app.Deps{
		Coordinator:   coord,
		Allocator:     &allocator.Allocator{Catalog: catalog, Ledger: l},
		Ledger:        l,
		Outbox:        box,
		Idempotency:   memory.NewIdempotencyStore(),
		RequirePrefix: true,
	})
	router := NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:      BookingHandler{Commands: buses.Commands, Queries: buses.Queries},
		Search:       SearchHandler{Queries: buses.Queries},
		Availability: AvailabilityHandler{Commands: buses.Commands, Queries: buses.Queries},
	})
	return &fixture{router: router, broken: broken}
}

func (f *fixture) do(t *testing.T, method, path, user string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func bookingBody(roomID string, genders ...string) map[string]any {
	guests := make([]map[string]any, 0, len(genders))
	for i, g := range genders {
		guests = append(guests, map[string]any{"name": "guest", "gender": g, "primary": i == 0})
	}
	return map[string]any{
		"check_in":  "2025-07-01",
		"check_out": "2025-07-03",
		"contact":   map[string]any{"name": "Lead", "email": "lead@example.com"},
		"rooms":     []map[string]any{{"room_id": roomID, "guests": guests}},
	}
}

func TestSearchReturnsCombinations(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/search?location=bkk&check_in=2025-07-01&check_out=2025-07-03&male=1", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	res := decode[dto.SearchResult](t, w)
	if res.Party != 1 || len(res.Combinations) == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Combinations[0].TotalPrice.Amount != 600 {
		t.Fatalf("one dorm bed for two nights should rank first, got %+v", res.Combinations[0])
	}
}

func TestSearchRejectsEmptyParty(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/search?location=bkk&check_in=2025-07-01&check_out=2025-07-03", "", nil, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body)
	}
}

func TestSearchRejectsUnboundedRequests(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/api/v1/search?location=bkk&check_in=2025-07-01&check_out=2025-07-03&male=1000000",
		"/api/v1/search?location=bkk&check_in=2025-07-01&check_out=2025-07-03&male=15&female=15",
		"/api/v1/search?location=bkk&check_in=2025-07-01&check_out=2025-09-01&male=1",
		"/api/v1/search?location=bkk&check_in=0001-01-01&check_out=9999-12-31&male=1",
	} {
		w := f.do(t, http.MethodGet, path, "", nil, nil)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d: %s", path, w.Code, w.Body)
		}
	}
}

func TestCreateBookingLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/bookings", guestA, bookingBody("R_SINGLE", "male"), map[string]string{"Idempotency-Key": "k1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	created := decode[dto.Booking](t, w)
	if created.State != "CONFIRMED" || created.Total.Amount != 2000 || created.Nights != 2 {
		t.Fatalf("unexpected booking %+v", created)
	}

	replay := f.do(t, http.MethodPost, "/api/v1/bookings", guestA, bookingBody("R_SINGLE", "male"), map[string]string{"Idempotency-Key": "k1"})
	if replay.Code != http.StatusCreated || decode[dto.Booking](t, replay).ID != created.ID {
		t.Fatalf("replay should return the original booking, got %d: %s", replay.Code, replay.Body)
	}

	taken := f.do(t, http.MethodPost, "/api/v1/bookings", guestB, bookingBody("R_SINGLE", "female"), nil)
	if taken.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an occupied room, got %d: %s", taken.Code, taken.Body)
	}
	if body := decode[errorBody](t, taken); body.RoomID != "R_SINGLE" || body.Date != "2025-07-01" {
		t.Fatalf("conflict should name room and date, got %+v", body)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, guestB, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other users must not see the booking, got %d", w.Code)
	}
	mine := decode[dto.BookingCollection](t, f.do(t, http.MethodGet, "/api/v1/me/bookings", guestA, nil, nil))
	if len(mine.Items) != 1 || mine.Items[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", mine)
	}

	w = f.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/cancel", guestA, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	again := decode[dto.CancelResult](t, f.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/cancel", guestA, nil, nil))
	if !again.AlreadyCancelled || again.Booking.State != "CANCELLED" {
		t.Fatalf("second cancel should be a no-op, got %+v", again)
	}
}

func TestCreateBookingRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodPost, "/api/v1/bookings", "", bookingBody("R_SINGLE", "male"), nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/v1/bookings", "someone", bookingBody("R_SINGLE", "male"), nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a malformed user id, got %d", w.Code)
	}
}

func TestCreateBookingValidatesGuests(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/bookings", guestA, bookingBody("R_SINGLE", "robot"), nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body)
	}
}

func TestValidateSelectionReportsPerRoom(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"rooms": []map[string]any{
		{"room_id": "R_SINGLE", "guests": []map[string]any{{"name": "a", "gender": "male"}, {"name": "b", "gender": "male"}}},
		{"room_id": "R_DORMIT", "guests": []map[string]any{{"name": "c", "gender": "female"}}},
	}}
	w := f.do(t, http.MethodPost, "/api/v1/bookings/validate", guestA, body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	res := decode[dto.SelectionValidation](t, w)
	if res.Valid || len(res.Rooms) != 2 || res.Rooms[0].Valid || !res.Rooms[1].Valid {
		t.Fatalf("unexpected verdicts %+v", res)
	}
}

func TestPartialReleaseAnswersAccepted(t *testing.T) {
	f := newFixture(t)
	created := decode[dto.Booking](t, f.do(t, http.MethodPost, "/api/v1/bookings", guestA, bookingBody("R_DORMIT", "male", "female"), nil))
	f.broken.room = "R_DORMIT"

	w := f.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/cancel", guestA, nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body)
	}
	body := decode[errorBody](t, w)
	if len(body.Failures) != 1 || body.Failures[0].RoomID != "R_DORMIT" {
		t.Fatalf("unexpected failures %+v", body)
	}
	got := decode[dto.Booking](t, f.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, guestA, nil, nil))
	if got.State != "CANCELLED" {
		t.Fatalf("booking must be cancelled despite the failed release, got %s", got.State)
	}
}

func TestMaintenanceRequiresStaff(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"from": "2025-08-01", "to": "2025-08-03", "on": true}

	if w := f.do(t, http.MethodPost, "/api/v1/rooms/R_SINGLE/maintenance", guestA, body, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body)
	}
	w := f.do(t, http.MethodPost, "/api/v1/rooms/R_SINGLE/maintenance", guestA, body, map[string]string{headerUserRole: "staff"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	cal := decode[dto.Calendar](t, f.do(t, http.MethodGet, "/api/v1/rooms/R_SINGLE/availability?from=2025-08-01&to=2025-08-04", "", nil, nil))
	if len(cal.Days) != 3 || cal.Days[0].Status != "MAINTENANCE" || cal.Days[2].Status != "AVAILABLE" {
		t.Fatalf("unexpected calendar %+v", cal)
	}

	search := decode[dto.SearchResult](t, f.do(t, http.MethodGet, "/api/v1/search?location=bkk&check_in=2025-08-01&check_out=2025-08-02&male=1", "", nil, nil))
	for _, c := range search.Combinations {
		for _, r := range c.Rooms {
			if r.RoomID == "R_SINGLE" {
				t.Fatalf("room under maintenance offered: %+v", c)
			}
		}
	}
}

func TestUnknownRoomCalendarIsNotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/rooms/R_NOPE/availability?from=2025-08-01&to=2025-08-02", "", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body)
	}
}
