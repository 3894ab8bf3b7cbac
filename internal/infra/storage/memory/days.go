package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/daterange"
)

type dayKey struct {
	room rooms.RoomID
	date string
}

func keyOf(room rooms.RoomID, date time.Time) dayKey {
	return dayKey{room: room, date: daterange.Date(date).Format(time.DateOnly)}
}

// DayStore keeps availability rows in memory with per-row versions.
type DayStore struct {
	mu   sync.RWMutex
	rows map[dayKey]availability.Day
}

func NewDayStore() *DayStore {
	return &DayStore{rows: make(map[dayKey]availability.Day)}
}

func (s *DayStore) Day(ctx context.Context, roomID rooms.RoomID, date time.Time) (availability.Day, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[keyOf(roomID, date)]
	if !ok {
		return availability.Day{}, false, nil
	}
	return row.Clone(), true, nil
}

func (s *DayStore) Range(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) ([]availability.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []availability.Day
	for _, date := range dr.Dates() {
		if row, ok := s.rows[keyOf(roomID, date)]; ok {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Save stores day when its version matches the stored one.
func (s *DayStore) Save(ctx context.Context, day *availability.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(day.RoomID, day.Date)
	current, exists := s.rows[key]
	switch {
	case !exists && day.Version != 0:
		return availability.ErrVersionConflict
	case exists && current.Version != day.Version:
		return availability.ErrVersionConflict
	}
	day.Version++
	s.rows[key] = day.Clone()
	return nil
}

var _ availability.Store = (*DayStore)(nil)
