package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"cowork/pkg/kafka"
	"cowork/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestLoggingConsumerMiddleware_TagsContext(t *testing.T) {
	mw := LoggingConsumerMiddleware(logger.Discard())

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"correlation id wins", map[string]string{kafka.HeaderCorrelationID: "corr-1", kafka.HeaderEventID: "evt-1"}, "corr-1"},
		{"falls back to event id", map[string]string{kafka.HeaderEventID: "evt-1"}, "evt-1"},
		{"no ids", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			msg := kafka.Message{Topic: "payments.captured", Headers: tt.headers}
			err := mw(context.Background(), msg, func(ctx context.Context, _ kafka.Message) error {
				seen = logger.RequestID(ctx)
				return nil
			})
			assert.NoError(t, err)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestLoggingConsumerMiddleware_ReturnsHandlerError(t *testing.T) {
	mw := LoggingConsumerMiddleware(logger.Discard())
	boom := kafka.NewTransientError("lock busy", errors.New("timeout"))

	err := mw(context.Background(), kafka.Message{Headers: map[string]string{}}, func(context.Context, kafka.Message) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLoggingProducerMiddleware_PassesThrough(t *testing.T) {
	mw := LoggingProducerMiddleware(logger.Discard())
	calls := 0

	err := mw(context.Background(), kafka.Message{Topic: "bookings.events", Headers: map[string]string{}}, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
