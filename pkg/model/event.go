package model

import "time"

const (
	TopicBookingEvents    = "bookings.events"
	TopicPaymentsCaptured = "payments.captured"
)

// BookingEvent is published after a booking mutation commits.
type BookingEvent struct {
	Type          string        `json:"type"`
	BookingID     string        `json:"booking_id"`
	Number        string        `json:"number"`
	ResourceID    string        `json:"resource_id"`
	RequesterID   string        `json:"requester_id"`
	Date          string        `json:"date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalCents    int64         `json:"total_cents"`
	PaidCents     int64         `json:"paid_cents"`
	Currency      string        `json:"currency"`
	Actor         string        `json:"actor"`
	Reason        string        `json:"reason,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func EventType(event LedgerEvent) string {
	return "booking." + string(event)
}

func NewBookingEvent(b *Booking, entry LedgerEntry) BookingEvent {
	return BookingEvent{
		Type:          EventType(entry.Event),
		BookingID:     b.ID,
		Number:        b.Number,
		ResourceID:    b.ResourceID,
		RequesterID:   b.RequesterID,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalCents:    b.TotalCents,
		PaidCents:     b.PaidCents,
		Currency:      b.Currency,
		Actor:         entry.Actor,
		Reason:        entry.Reason,
		OccurredAt:    entry.Timestamp,
	}
}

// PaymentCaptured is emitted by the payment collaborator once money is captured.
// A zero AmountCents means the booking is paid in full.
type PaymentCaptured struct {
	PaymentID   string    `json:"payment_id" validate:"required"`
	BookingID   string    `json:"booking_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"gte=0"`
	Currency    string    `json:"currency"`
	CapturedAt  time.Time `json:"captured_at"`
}
