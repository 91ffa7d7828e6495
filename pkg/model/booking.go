package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
)

// SlotHoldingStatuses are the statuses whose time ranges must never overlap on a resource.
var SlotHoldingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCancelled || s == BookingCompleted || s == BookingNoShow
}

func (s BookingStatus) HoldsSlot() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCompleted
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPartial, PaymentPaid},
	PaymentPartial: {PaymentPartial, PaymentPaid, PaymentRefunded},
	PaymentPaid:    {PaymentRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID                 string        `json:"id" bson:"_id"`
	Number             string        `json:"number" bson:"number"`
	ResourceID         string        `json:"resource_id" bson:"resource_id"`
	ResourceVersion    int           `json:"resource_version" bson:"resource_version"`
	RequesterID        string        `json:"requester_id" bson:"requester_id"`
	Date               string        `json:"date" bson:"date"`
	StartTime          string        `json:"start_time" bson:"start_time"`
	EndTime            string        `json:"end_time" bson:"end_time"`
	StartsAt           time.Time     `json:"starts_at" bson:"starts_at"`
	EndsAt             time.Time     `json:"ends_at" bson:"ends_at"`
	PartySize          int           `json:"party_size" bson:"party_size"`
	SeatCount          int           `json:"seat_count" bson:"seat_count"`
	PriceTier          string        `json:"price_tier" bson:"price_tier"`
	TotalCents         int64         `json:"total_cents" bson:"total_cents"`
	PaidCents          int64         `json:"paid_cents" bson:"paid_cents"`
	Currency           string        `json:"currency" bson:"currency"`
	Status             BookingStatus `json:"status" bson:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status" bson:"payment_status"`
	IdempotencyKey     string        `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
}

// TimeRange rebuilds the booked range in the given site zone.
func (b *Booking) TimeRange(loc *time.Location) TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	day, _ := time.ParseInLocation(DateLayout, b.Date, loc)
	startMin, _ := ParseClock(b.StartTime)
	endMin, _ := ParseClock(b.EndTime)
	return TimeRange{date: b.Date, day: day, startMin: startMin, endMin: endMin}
}

// AssignNumber derives the human booking reference from a ledger sequence.
func (b *Booking) AssignNumber(sequence int64) {
	b.Number = FormatBookingNumber(b.CreatedAt, sequence)
}

func FormatBookingNumber(at time.Time, sequence int64) string {
	return fmt.Sprintf("BK-%s-%06d", at.UTC().Format("20060102"), sequence)
}

func (b *Booking) OutstandingCents() int64 {
	return max(0, b.TotalCents-b.PaidCents)
}

// BookingRequest is the command accepted by the reservation engine.
type BookingRequest struct {
	ResourceID     string `json:"resource_id" validate:"required,max=64"`
	RequesterID    string `json:"-" validate:"required,max=128"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Start          string `json:"start" validate:"required,clock"`
	End            string `json:"end" validate:"required,clock"`
	PartySize      int    `json:"party_size"`
	AutoConfirm    bool   `json:"auto_confirm,omitempty"`
	IdempotencyKey string `json:"-" validate:"omitempty,max=128"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type PaymentRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}
