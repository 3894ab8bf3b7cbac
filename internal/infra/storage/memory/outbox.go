package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "staybook/internal/app/outbox"
)

// Outbox buffers records and relays them to Publisher on Flush. Records that
// fail to publish stay buffered for the next flush.
type Outbox struct {
	Publisher   appoutbox.Publisher
	TopicPrefix string
	Source      string

	mu      sync.Mutex
	pending []appoutbox.EventRecord
	sent    []appoutbox.EventRecord
}

func NewOutbox(publisher appoutbox.Publisher) *Outbox {
	return &Outbox{Publisher: publisher}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var (
		kept []appoutbox.EventRecord
		errs []error
	)
	for _, rec := range o.pending {
		if err := o.publish(ctx, rec); err != nil {
			kept = append(kept, rec)
			errs = append(errs, err)
			continue
		}
		o.sent = append(o.sent, rec)
	}
	o.pending = kept
	return errors.Join(errs...)
}

// Sent returns the records relayed so far.
func (o *Outbox) Sent() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.sent...)
}

// Pending returns records not yet relayed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.pending...)
}

func (o *Outbox) publish(ctx context.Context, rec appoutbox.EventRecord) error {
	if o.Publisher == nil {
		return nil
	}
	payload, headers, err := appoutbox.CloudEvent(rec, o.Source)
	if err != nil {
		return err
	}
	return o.Publisher.Publish(ctx, appoutbox.Topic(rec.Name, o.TopicPrefix), rec.Aggregate, payload, headers)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
