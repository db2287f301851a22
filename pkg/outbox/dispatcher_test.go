package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"habitforge/pkg/trace"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []*Event
	sent    []int64
	failed  []int64
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

type fakePublisher struct {
	failKey string
	keys    []string
	traces  []string
}

func (p *fakePublisher) PublishRaw(ctx context.Context, routingKey string, _ []byte) error {
	if routingKey == p.failKey {
		return errors.New("broker down")
	}
	p.keys = append(p.keys, routingKey)
	p.traces = append(p.traces, trace.FromContext(ctx))
	return nil
}

func TestDispatcherProcessPendingEvents(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "habit.created", Payload: json.RawMessage(`{"habit_id":"h1","trace_id":"t-1"}`)},
		{ID: 2, RoutingKey: "broken", Payload: json.RawMessage(`{}`)},
		{ID: 3, RoutingKey: "completion.toggled", Payload: json.RawMessage(`not json`)},
		{ID: 4, RoutingKey: "habit.deleted", Payload: json.RawMessage(`{"habit_id":"h2"}`)},
	}}
	pub := &fakePublisher{failKey: "broken"}

	d := NewDispatcher(store, pub, zap.NewNop()).WithBatchSize(10)
	sent := d.ProcessPendingEvents(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 4}, store.sent)
	assert.Equal(t, []int64{2, 3}, store.failed)
	assert.Equal(t, []string{"habit.created", "habit.deleted"}, pub.keys)
	assert.Equal(t, []string{"t-1", ""}, pub.traces)
}

func TestDispatcherRespectsBatchSize(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "a", Payload: json.RawMessage(`{}`)},
		{ID: 2, RoutingKey: "b", Payload: json.RawMessage(`{}`)},
	}}
	d := NewDispatcher(store, &fakePublisher{}, zap.NewNop()).WithBatchSize(1)
	assert.Equal(t, 1, d.ProcessPendingEvents(context.Background()))
	assert.Equal(t, []int64{1}, store.sent)
}

func TestDispatcherStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		NewDispatcher(&fakeStore{}, &fakePublisher{}, zap.NewNop()).Start(ctx)
		close(done)
	}()
	<-done
}
