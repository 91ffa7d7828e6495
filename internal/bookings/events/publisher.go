// Package events fans committed booking mutations out to the configured broker.
package events

import (
	"context"
	"fmt"

	"cowork/pkg/kafka"
	"cowork/pkg/model"
)

const (
	eventSource   = "cowork-bookings"
	schemaVersion = "1"
)

// Publisher delivers booking events after the ledger write has committed.
type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher drops every event. Used when EVENTS_BACKEND=none.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, model.BookingEvent) error { return nil }
func (nopPublisher) Close() error { return nil }

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer messagePublisher
}

// NewKafkaPublisher keys messages by resource id so one resource's events stay ordered.
func NewKafkaPublisher(producer *kafka.Producer) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.ResourceID).
		WithValue(event).
		WithEventType(event.Type).
		WithCorrelationID(event.BookingID).
		WithSchemaVersion(schemaVersion).
		WithSource(eventSource).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s message: %w", event.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, eventType, correlationID string, event any) error
	Close() error
}

type rabbitPublisher struct {
	publisher jsonPublisher
}

func NewRabbitMQPublisher(publisher jsonPublisher) Publisher {
	return &rabbitPublisher{publisher: publisher}
}

func (p *rabbitPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	return p.publisher.PublishJSON(ctx, event.Type, event.BookingID, event)
}

func (p *rabbitPublisher) Close() error {
	return p.publisher.Close()
}
