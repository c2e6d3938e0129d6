package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"
	"docchat-be/pkg/rag/cache"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingForwarder struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *recordingForwarder) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *recordingForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestConsumerService_ForwardsCompletedEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	forwarder := &recordingForwarder{}
	consumer := NewConsumerService(pubSub, events.TypeChatCompleted, forwarder, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()

	bus := events.NewBus(pubSub)
	// gochannel drops messages published before a subscriber exists
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), events.ChatCompleted{SessionID: "s1", OccurredAt: time.Now()})
		return forwarder.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	forwarder.mu.Lock()
	defer forwarder.mu.Unlock()
	assert.Equal(t, events.TypeChatCompleted, forwarder.events[0].EventType())
	assert.Equal(t, "s1", forwarder.events[0].Payload()["session_id"])
}

func TestDocumentEventService_InvalidatesCache(t *testing.T) {
	c, err := cache.New(cache.Config{Capacity: 10, TTL: time.Hour})
	require.NoError(t, err)
	c.Put(cache.Entry{Fingerprint: "a", Answer: "x", Documents: []string{"doc-1"}})
	c.Put(cache.Entry{Fingerprint: "b", Answer: "y", Documents: []string{"doc-2"}})

	svc := NewDocumentEventService(c, logger.NewNopLogger())
	err = svc.HandleDocumentUpdated(context.Background(), events.BaseEvent{
		Type: events.TypeDocumentUpdated,
		Data: map[string]interface{}{"document_id": "doc-1"},
	})
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	// malformed events are acked, not retried
	assert.NoError(t, svc.HandleDocumentUpdated(context.Background(), events.BaseEvent{Data: map[string]interface{}{}}))
}
