package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"recipehub/internal/domain/shared/events"
)

// EventRecord is the serialized form of a domain event waiting to be relayed.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// EventSource is implemented by aggregates embedding events.EventRecorder.
type EventSource interface {
	PullEvents() []events.DomainEvent
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"content-type": "application/json"},
	}, nil
}

func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Drain pulls the pending events of every source into the outbox. Sources
// are drained in argument order.
func Drain(ctx context.Context, box Outbox, encoder EventEncoder, sources ...EventSource) error {
	var pending []events.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		pending = append(pending, src.PullEvents()...)
	}
	return RecordDomainEvents(ctx, box, encoder, pending)
}
