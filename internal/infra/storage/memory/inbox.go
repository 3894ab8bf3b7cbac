package memory

import (
	"context"
	"sync"
)

// Inbox remembers processed message ids for a single process.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

func (i *Inbox) Claim(_ context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[eventID]; ok {
		return true, nil
	}
	i.seen[eventID] = struct{}{}
	return false, nil
}

func (i *Inbox) Forget(_ context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, eventID)
	return nil
}
