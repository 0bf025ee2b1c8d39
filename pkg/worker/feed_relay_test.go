package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/messaging"
	"github.com/zenithmed/registry-api/pkg/messaging/memory"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{failed: make(map[uuid.UUID]string)}
}

func (f *fakeOutbox) add(collection model.Collection, kind model.EventKind, payload []byte) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	evt := &model.OutboxEvent{
		ID:         uuid.New(),
		Collection: collection,
		Kind:       kind,
		Payload:    payload,
		Status:     model.OutboxStatusPending,
		CreatedAt:  time.Now(),
	}
	f.pending = append(f.pending, evt)
	return evt.ID
}

func (f *fakeOutbox) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) > limit {
		return append([]*model.OutboxEvent(nil), f.pending[:limit]...), nil
	}
	return append([]*model.OutboxEvent(nil), f.pending...), nil
}

func (f *fakeOutbox) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	for i, evt := range f.pending {
		if evt.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	for i, evt := range f.pending {
		if evt.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func TestRelayPublishesInStagedOrder(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	broker := memory.NewMemoryBroker()
	outbox := newFakeOutbox()

	events, err := broker.Subscribe(context.Background(), messaging.ChannelChanges)
	require.NoError(t, err)

	var staged []uuid.UUID
	for i := 0; i < 3; i++ {
		payload, _ := json.Marshal(model.ChangeEvent{
			Collection: model.CollectionAppointments,
			Kind:       model.EventInsert,
			New:        json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)),
		})
		staged = append(staged, outbox.add(model.CollectionAppointments, model.EventInsert, payload))
	}

	relay := NewFeedRelay(outbox, broker, FeedRelayConfig{
		PollInterval: 10 * time.Millisecond,
		RetryDelay:   time.Millisecond,
	}, log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Start(ctx)

	var received []json.RawMessage
	for i := 0; i < 3; i++ {
		select {
		case payload := <-events:
			var evt model.ChangeEvent
			require.NoError(t, json.Unmarshal(payload, &evt))
			received = append(received, evt.New)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	for i, raw := range received {
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(raw))
	}

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.processed) == 3
	}, 2*time.Second, 10*time.Millisecond)
	outbox.mu.Lock()
	assert.Equal(t, staged, outbox.processed)
	outbox.mu.Unlock()
}

func TestRelayMarksFailedWhenBrokerIsDown(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	broker := memory.NewMemoryBroker()
	require.NoError(t, broker.Close())

	outbox := newFakeOutbox()
	id := outbox.add(model.CollectionServices, model.EventInsert, []byte(`{}`))

	relay := NewFeedRelay(outbox, broker, FeedRelayConfig{
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Start(ctx)

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		_, ok := outbox.failed[id]
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
