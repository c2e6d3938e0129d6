package service

import (
	"context"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Forwarder publishes events to an external bus.
type Forwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

// ConsumerService drains the in-process chat.completed topic. Each event is
// logged as a usage record and forwarded when a forwarder is configured.
// It runs as a supervised service.
type ConsumerService struct {
	subscriber message.Subscriber
	topic      string
	forwarder  Forwarder
	logger     logger.ILogger
}

func NewConsumerService(subscriber message.Subscriber, topic string, forwarder Forwarder, log logger.ILogger) *ConsumerService {
	return &ConsumerService{
		subscriber: subscriber,
		topic:      topic,
		forwarder:  forwarder,
		logger:     log,
	}
}

func (cs *ConsumerService) Serve(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topic)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			cs.processMessage(ctx, msg)
		}
	}
}

func (cs *ConsumerService) String() string {
	return "consumer:" + cs.topic
}

func (cs *ConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Decode(cs.topic, msg)
	if err != nil {
		cs.logger.Error("EVENTS", "Dropping undecodable event", map[string]interface{}{
			"topic": cs.topic,
			"error": err.Error(),
		})
		// acked so it is not redelivered forever
		msg.Ack()
		return
	}

	cs.logger.Info("EVENTS", "Usage recorded", event.Payload())

	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, event); err != nil {
			cs.logger.Warn("EVENTS", "Failed to forward event", map[string]interface{}{
				"topic": cs.topic,
				"error": err.Error(),
			})
		}
	}
	msg.Ack()
}
