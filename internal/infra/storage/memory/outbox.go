package memory

import (
	"context"
	"sync"

	appoutbox "recipehub/internal/app/outbox"
)

// Outbox buffers event records until Flush. With a Deliver hook set, Flush
// hands each buffered record to it in order; a failed delivery keeps the
// remaining records buffered.
type Outbox struct {
	Deliver func(ctx context.Context, rec appoutbox.EventRecord) error

	mu        sync.Mutex
	records   []appoutbox.EventRecord
	delivered int
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.records) > 0 {
		if o.Deliver != nil {
			if err := o.Deliver(ctx, o.records[0]); err != nil {
				return err
			}
		}
		o.records = o.records[1:]
		o.delivered++
	}
	return nil
}

// Pending returns a copy of the records not yet flushed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

func (o *Outbox) Delivered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivered
}

var _ appoutbox.Outbox = (*Outbox)(nil)
