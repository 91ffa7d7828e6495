// Package consumer applies payment outcomes arriving from the payments
// collaborator to bookings.
package consumer

import (
	"context"
	"errors"
	"strings"

	"cowork/internal/bookings/service"
	"cowork/internal/bookings/validator"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/kafka"
	"cowork/pkg/logger"
	"cowork/pkg/model"
)

const paymentsActor = "payments"

// PaymentBookings is the part of the booking service the consumer drives.
type PaymentBookings interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, id, actorID string) (*model.Booking, error)
	RecordPayment(ctx context.Context, id string, amountCents int64, actorID, reference string) (*model.Booking, error)
}

var _ PaymentBookings = (service.BookingService)(nil)

type PaymentsHandler struct {
	bookings  PaymentBookings
	validator *validator.BookingValidator
	log       *logger.Logger
}

func NewPaymentsHandler(bookings PaymentBookings, validator *validator.BookingValidator, log *logger.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		bookings:  bookings,
		validator: validator,
		log:       log,
	}
}

// Handle is a kafka.MessageHandler. Malformed events and business rejections
// are permanent and end up on the dead letter topic; lock timeouts and store
// outages are retried by the consumer.
func (h *PaymentsHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.PaymentCaptured
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("invalid payment event payload", err)
	}
	if err := h.validator.ValidatePaymentCaptured(&event); err != nil {
		return kafka.NewPermanentError("payment event failed validation", err)
	}

	log := h.log.With(
		"payment_id", event.PaymentID,
		"booking_id", event.BookingID,
		"correlation_id", msg.GetCorrelationID(),
	)

	booking, err := h.bookings.GetBooking(ctx, event.BookingID)
	if err != nil {
		return h.classify(err)
	}
	if event.Currency != "" && !strings.EqualFold(event.Currency, booking.Currency) {
		return kafka.NewPermanentError("payment currency does not match booking", nil).
			WithDetail("payment_currency", event.Currency).
			WithDetail("booking_currency", booking.Currency)
	}

	if event.AmountCents == 0 {
		if booking.PaymentStatus == model.PaymentPaid {
			log.Info("Payment already settled, acknowledging")
			return nil
		}
		if _, err := h.bookings.ConfirmPayment(ctx, event.BookingID, paymentsActor); err != nil {
			return h.classify(err)
		}
		log.Info("Booking paid in full")
		return nil
	}

	updated, err := h.bookings.RecordPayment(ctx, event.BookingID, event.AmountCents, paymentsActor, event.PaymentID)
	if err != nil {
		return h.classify(err)
	}
	log.Info("Payment recorded",
		"amount_cents", event.AmountCents,
		"payment_status", updated.PaymentStatus,
	)
	return nil
}

func (h *PaymentsHandler) classify(err error) error {
	if apperrors.IsRetryable(err) {
		return kafka.NewTransientError("booking temporarily unavailable", err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeInternal {
		return kafka.NewTransientError("booking store failure", err)
	}
	return err
}
