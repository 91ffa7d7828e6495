package kafka_middleware

import (
	"context"
	"time"

	"cowork/pkg/kafka"
	"cowork/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Ctx(ctx).Error("failed to publish message", append(attrs, "error", err)...)
		} else {
			log.Ctx(ctx).Debug("published message", attrs...)
		}
		return err
	}
}

// LoggingConsumerMiddleware tags the handler context with the message
// correlation id, so downstream logs can be joined with the producer's.
func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		if id := msg.GetCorrelationID(); id != "" {
			ctx = logger.ContextWithRequestID(ctx, id)
		} else if id := msg.GetEventID(); id != "" {
			ctx = logger.ContextWithRequestID(ctx, id)
		}

		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"retry_count", msg.GetRetryCount(),
			"duration", time.Since(start),
		}
		if err == nil {
			log.Ctx(ctx).Info("processed message", attrs...)
			return nil
		}

		errorType := kafka.ClassifyError(err)
		attrs = append(attrs, "error_type", errorType.String(), "error", err)
		if errorType == kafka.ErrorTypeTransient {
			log.Ctx(ctx).Warn("message failed, will retry", attrs...)
		} else {
			log.Ctx(ctx).Warn("message rejected", attrs...)
		}
		return err
	}
}
