package broker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/events"
)

// Headers attached to every broker message.
const (
	HeaderEventID     = "event_id"
	HeaderEventType   = "event_type"
	HeaderContentType = "content_type"
)

// EventPublisher forwards domain events to the broker.
type EventPublisher struct {
	holder  *Holder
	codec   Codec
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewEventPublisher creates a publisher sending through holder's producer.
func NewEventPublisher(holder *Holder, codec Codec, topicPrefix string, timeout time.Duration, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		holder:  holder,
		codec:   codec,
		prefix:  topicPrefix,
		timeout: timeout,
		logger:  logger,
	}
}

// Topic returns the broker topic for an event type.
func Topic(prefix string, eventType events.EventType) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

// Attach subscribes the publisher to every event type on the dispatcher.
func (p *EventPublisher) Attach(dispatcher events.Dispatcher) {
	events.SubscribeAll(dispatcher, p.Publish)
}

// Publish encodes the event and sends it keyed by ticket id. It returns nil
// only after the broker acknowledged the message.
func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := p.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	producer, err := p.holder.Get(ctx)
	if err != nil {
		return fmt.Errorf("producer unavailable: %w", err)
	}

	msg := Message{
		Topic: Topic(p.prefix, event.Type),
		Key:   event.TicketID,
		Value: payload,
		Headers: map[string]string{
			HeaderEventID:     event.ID,
			HeaderEventType:   string(event.Type),
			HeaderContentType: p.codec.ContentType(),
		},
	}
	if err := producer.Send(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event sent to broker",
		zap.String("topic", msg.Topic),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID))
	return nil
}
