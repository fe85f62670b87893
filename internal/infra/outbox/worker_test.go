package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appoutbox "recipehub/internal/app/outbox"
)

type fakeStore struct {
	mu      sync.Mutex
	queue   []*EventDocument
	sent    []string
	failed  map[string]time.Time
	lastErr string
}

func (s *fakeStore) Claim(context.Context, string) (*EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	doc := s.queue[0]
	s.queue = s.queue[1:]
	return doc, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, next time.Time, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[string]time.Time{}
	}
	s.failed[id] = next
	s.lastErr = msg
	return nil
}

type mockProducer struct {
	mock.Mock
}

func (p *mockProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	args := p.Called(topic, key, payload, headers)
	return args.Error(0)
}

func eventDoc(id, name string) *EventDocument {
	rec := appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"MessageID":"m-1"}`),
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Aggregate:  "conv-1",
	}
	doc := newEventDocument(rec, rec.OccurredAt)
	return &doc
}

func TestProcessOncePublishesCloudEvent(t *testing.T) {
	store := &fakeStore{queue: []*EventDocument{eventDoc("ev-1", "message.sent")}}
	producer := &mockProducer{}
	producer.On("Publish", "chat.message.events.v1", "conv-1", mock.Anything, mock.Anything).Return(nil).Once()

	var relayed []bool
	w := &Worker{Store: store, Producer: producer, TopicPrefix: "chat.", ID: "w-1", OnRelay: func(ok bool) { relayed = append(relayed, ok) }}
	processed, err := w.processOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []string{"ev-1"}, store.sent)
	require.Equal(t, []bool{true}, relayed)

	payload := producer.Calls[0].Arguments.Get(2).([]byte)
	headers := producer.Calls[0].Arguments.Get(3).(map[string]string)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(payload, &evt))
	require.Equal(t, "message.sent.v1", evt["type"])
	require.Equal(t, "app://recipehub", evt["source"])
	require.Equal(t, "ev-1", evt["id"])
	require.Equal(t, "application/cloudevents+json", headers["content-type"])
	producer.AssertExpectations(t)
}

func TestProcessOnceSchedulesRetryOnPublishFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := eventDoc("ev-1", "connection.created")
	doc.Attempts = 1
	store := &fakeStore{queue: []*EventDocument{doc}}
	producer := &mockProducer{}
	producer.On("Publish", "connection.events.v1", "conv-1", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	w := &Worker{Store: store, Producer: producer, Backoff: []time.Duration{time.Second, 5 * time.Second}, Now: func() time.Time { return now }}
	processed, err := w.processOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Empty(t, store.sent)
	require.Equal(t, now.Add(5*time.Second), store.failed["ev-1"])
	require.Equal(t, "broker down", store.lastErr)
}

func TestProcessOnceRejectsMalformedPayload(t *testing.T) {
	doc := eventDoc("ev-1", "message.sent")
	doc.Payload = []byte("not json")
	store := &fakeStore{queue: []*EventDocument{doc}}
	producer := &mockProducer{}

	w := &Worker{Store: store, Producer: producer}
	_, err := w.processOnce(context.Background())
	require.NoError(t, err)
	require.Contains(t, store.failed, "ev-1")
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDrainEmptiesQueue(t *testing.T) {
	store := &fakeStore{queue: []*EventDocument{eventDoc("a", "message.sent"), eventDoc("b", "message.updated")}}
	producer := &mockProducer{}
	producer.On("Publish", "message.events.v1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := &Worker{Store: store, Producer: producer}
	require.NoError(t, w.drain(context.Background()))
	require.Equal(t, []string{"a", "b"}, store.sent)
}

func TestRunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	require.ErrorIs(t, err, ErrWorkerNotConfigured)
}

func TestTopicForWithoutDot(t *testing.T) {
	w := &Worker{}
	require.Equal(t, "audit.events.v1", w.topicFor("audit"))
}
