package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"

	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error naks the message.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscription is a durable JetStream consumer that runs until its context
// is cancelled. It satisfies suture.Service.
type Subscription struct {
	js      jetstream.JetStream
	subject string
	durable string
	handler EventHandler
	log     logger.ILogger
}

func NewSubscription(js jetstream.JetStream, subject, durable string, handler EventHandler, log logger.ILogger) *Subscription {
	return &Subscription{js: js, subject: subject, durable: durable, handler: handler, log: log}
}

func (s *Subscription) Serve(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       s.durable,
		FilterSubject: s.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", s.durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		s.dispatch(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", s.subject, err)
	}

	s.log.Info("EVENTS", "Subscribed", map[string]interface{}{"subject": s.subject, "durable": s.durable})
	<-ctx.Done()
	cc.Stop()
	return ctx.Err()
}

func (s *Subscription) String() string {
	return "nats:" + s.durable
}

func (s *Subscription) dispatch(ctx context.Context, msg jetstream.Msg) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		s.log.Error("EVENTS", "Dropping undecodable event", map[string]interface{}{
			"subject": msg.Subject(),
			"error":   err.Error(),
		})
		_ = msg.Term()
		return
	}

	occurred := time.Now()
	if meta, err := msg.Metadata(); err == nil {
		occurred = meta.Timestamp
	}
	event := events.BaseEvent{
		Type:       strings.TrimPrefix(msg.Subject(), subjectPrefix),
		Data:       payload,
		OccurredAt: occurred,
	}

	if err := s.handler(ctx, event); err != nil {
		s.log.Warn("EVENTS", "Handler failed, event will be redelivered", map[string]interface{}{
			"subject": msg.Subject(),
			"error":   err.Error(),
		})
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}
