package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// BrokerPinger reports ready when any configured broker accepts a connection.
type BrokerPinger struct {
	brokers []string
	dialer  *kafka.Dialer
}

func NewBrokerPinger(brokers []string) *BrokerPinger {
	return &BrokerPinger{brokers: brokers, dialer: &kafka.Dialer{}}
}

func (p *BrokerPinger) Name() string { return "kafka" }

func (p *BrokerPinger) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range p.brokers {
		conn, err := p.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", broker, err))
			continue
		}
		_ = conn.Close()
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return errors.Join(errs...)
}
