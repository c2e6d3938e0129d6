package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishesOnEventTypeTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, TypeChatCompleted)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := NewBus(pubSub)
	require.NoError(t, bus.Publish(ctx, ChatCompleted{SessionID: "s1", MessageID: "m1", CostUSD: 0.5, Cached: true, OccurredAt: at}))

	select {
	case msg := <-messages:
		msg.Ack()
		ev, err := Decode(TypeChatCompleted, msg)
		require.NoError(t, err)
		assert.Equal(t, "s1", ev.Payload()["session_id"])
		assert.Equal(t, true, ev.Payload()["cached"])
		assert.Equal(t, 0.5, ev.Payload()["cost_usd"])
		assert.True(t, at.Equal(ev.Timestamp()))
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestDocumentUpdatedFrom(t *testing.T) {
	ev, err := DocumentUpdatedFrom(BaseEvent{Type: "events.document.updated", Data: map[string]interface{}{"document_id": "doc-1"}})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ev.DocumentID)

	_, err = DocumentUpdatedFrom(BaseEvent{Data: map[string]interface{}{}})
	assert.Error(t, err)
}
