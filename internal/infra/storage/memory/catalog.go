package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"staybook/internal/domain/rooms"
)

// Catalog is a read-only room catalog held in memory, usually seeded from a fixtures file.
type Catalog struct {
	mu    sync.RWMutex
	items map[rooms.RoomID]rooms.Room
}

func NewCatalog(items ...rooms.Room) (*Catalog, error) {
	c := &Catalog{items: make(map[rooms.RoomID]rooms.Room, len(items))}
	for _, r := range items {
		if err := c.Put(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalog builds a catalog from the rooms listed in a fixtures file.
func LoadCatalog(path string) (*Catalog, error) {
	items, err := ReadRooms(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(items...)
}

// ReadRooms decodes a JSON array of rooms from path.
func ReadRooms(path string) ([]rooms.Room, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room fixtures: %w", err)
	}
	var items []rooms.Room
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode room fixtures: %w", err)
	}
	return items, nil
}

// Put adds or replaces a room after validating it.
func (c *Catalog) Put(r rooms.Room) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("room %s: %w", r.ID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[r.ID] = r
	return nil
}

func (c *Catalog) Room(ctx context.Context, id rooms.RoomID) (rooms.Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.items[id]
	if !ok {
		return rooms.Room{}, rooms.ErrRoomNotFound
	}
	return r, nil
}

func (c *Catalog) ListByLocation(ctx context.Context, location string) ([]rooms.Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []rooms.Room
	for _, r := range c.items {
		if strings.EqualFold(r.Location, location) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ rooms.Catalog = (*Catalog)(nil)
