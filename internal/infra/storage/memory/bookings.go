package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "staybook/internal/domain/booking"
)

// BookingRepository stores booking copies so callers never share state with the store.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[b.ID]; exists {
		return domainbooking.ErrDuplicateID
	}
	b.Version = 1
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id domainbooking.BookingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *BookingRepository) ListCheckoutBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.State == domainbooking.StateConfirmed && !b.Range.CheckOut.After(cutoff) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckOut.Before(out[j].Range.CheckOut) })
	return out, nil
}

func sortNewestFirst(items []*domainbooking.Booking) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
