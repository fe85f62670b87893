package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/shared/events"
)

type pingEvent struct {
	ID string
	At time.Time
}

func (e pingEvent) EventName() string     { return "test.ping" }
func (e pingEvent) AggregateID() string   { return e.ID }
func (e pingEvent) OccurredAt() time.Time { return e.At }

type recordingBox struct {
	records []EventRecord
}

func (b *recordingBox) Add(_ context.Context, rec EventRecord) error {
	b.records = append(b.records, rec)
	return nil
}

func (b *recordingBox) Flush(context.Context) error { return nil }

type source struct {
	events.EventRecorder
}

func TestDrainEncodesAndClears(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first, second := &source{}, &source{}
	first.Record(pingEvent{ID: "a", At: at})
	second.Record(pingEvent{ID: "b", At: at})

	box := &recordingBox{}
	enc := JSONEventEncoder{IDGenerator: func() string { return "evt" }}
	require.NoError(t, Drain(context.Background(), box, enc, first, nil, second))

	require.Len(t, box.records, 2)
	assert.Equal(t, "a", box.records[0].Aggregate)
	assert.Equal(t, "b", box.records[1].Aggregate)
	assert.Equal(t, "test.ping", box.records[0].Name)
	assert.Equal(t, "evt", box.records[0].ID)
	assert.JSONEq(t, `{"ID":"a","At":"2024-05-01T10:00:00Z"}`, string(box.records[0].Payload))
	assert.Empty(t, first.PendingEvents())
	assert.Empty(t, second.PendingEvents())
}

func TestRecordDomainEventsWithoutOutbox(t *testing.T) {
	require.NoError(t, RecordDomainEvents(context.Background(), nil, nil, []events.DomainEvent{pingEvent{ID: "x"}}))
}
