// Package rabbitmq publishes JSON events to a durable RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cowork/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPublisherClosed = errors.New("rabbitmq publisher is closed")

const (
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
)

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, conn, nil
}

// Publisher keeps one connection and channel open and reopens them lazily
// after a failed publish.
type Publisher struct {
	url    string
	queue  string
	dial   dialFunc
	log    *logger.Logger
	mu     sync.Mutex
	ch     channel
	conn   io.Closer
	closed bool
}

func NewPublisher(url, queue string, log *logger.Logger) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url cannot be empty")
	}
	if queue == "" {
		return nil, fmt.Errorf("rabbitmq queue cannot be empty")
	}
	return newPublisher(url, queue, dialAMQP, log), nil
}

func newPublisher(url, queue string, dial dialFunc, log *logger.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, dial: dial, log: log}
}

func (p *Publisher) Queue() string {
	return p.queue
}

// Connect opens the connection eagerly so startup fails fast on a bad URL.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureChannel()
}

func (p *Publisher) ensureChannel() error {
	if p.closed {
		return ErrPublisherClosed
	}
	if p.ch != nil {
		return nil
	}

	ch, conn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.ch, p.conn = ch, conn
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// PublishJSON marshals event and publishes it as a persistent message.
func (p *Publisher) PublishJSON(ctx context.Context, eventType, correlationID string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{HeaderEventType: eventType}
	if correlationID != "" {
		headers[HeaderCorrelationID] = correlationID
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         eventType,
		Headers:      headers,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed, connection will be reopened", "queue", p.queue, "error", err)
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.reset()
	return nil
}
