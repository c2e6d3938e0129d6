package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const metadataOccurredAt = "occurred_at"

// Bus publishes events onto an in-process watermill pub/sub. Topics are the
// event types.
type Bus struct {
	publisher message.Publisher
}

func NewBus(publisher message.Publisher) *Bus {
	return &Bus{publisher: publisher}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataOccurredAt, event.Timestamp().UTC().Format(time.RFC3339Nano))
	if err := b.publisher.Publish(event.EventType(), msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType(), err)
	}
	return nil
}

// Decode rebuilds a generic event from a watermill message on topic.
func Decode(topic string, msg *message.Message) (BaseEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to decode %s payload: %w", topic, err)
	}
	occurred, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(metadataOccurredAt))
	if err != nil {
		occurred = time.Now()
	}
	return BaseEvent{Type: topic, Data: payload, OccurredAt: occurred}, nil
}
