package events

import "time"

// DomainEvent is a fact recorded by an aggregate and relayed through the outbox.
// AggregateID becomes the broker partition key, so events of one conversation or
// connection stay ordered.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates that emit events. The zero value is
// ready to use.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

// PendingEvents returns a copy of what has been recorded and not yet pulled.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	return append([]DomainEvent(nil), r.pending...)
}

// PullEvents hands over the recorded events and resets the recorder, so a
// unit of work that is retried never relays the same event twice.
func (r *EventRecorder) PullEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
