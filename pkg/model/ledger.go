package model

import "time"

type LedgerEvent string

const (
	EventRequested        LedgerEvent = "requested"
	EventConfirmed        LedgerEvent = "confirmed"
	EventCancelled        LedgerEvent = "cancelled"
	EventCompleted        LedgerEvent = "completed"
	EventNoShow           LedgerEvent = "no_show"
	EventPaymentRecorded  LedgerEvent = "payment_recorded"
	EventPaymentConfirmed LedgerEvent = "payment_confirmed"
	EventPaymentRefunded  LedgerEvent = "payment_refunded"
)

// LedgerEntry is an insert-only audit record. Sequence is assigned by the store.
type LedgerEntry struct {
	Sequence    int64       `json:"sequence" bson:"_id"`
	BookingID   string      `json:"booking_id" bson:"booking_id"`
	ResourceID  string      `json:"resource_id" bson:"resource_id"`
	Event       LedgerEvent `json:"event" bson:"event"`
	Actor       string      `json:"actor" bson:"actor"`
	Reason      string      `json:"reason,omitempty" bson:"reason,omitempty"`
	AmountCents int64       `json:"amount_cents,omitempty" bson:"amount_cents,omitempty"`
	Reference   string      `json:"reference,omitempty" bson:"reference,omitempty"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
}

func NewLedgerEntry(b *Booking, event LedgerEvent, actor string, at time.Time) LedgerEntry {
	return LedgerEntry{
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		Event:      event,
		Actor:      actor,
		Timestamp:  at,
	}
}

// StatusEvent maps a booking status to the ledger event recording the move into it.
func StatusEvent(status BookingStatus) LedgerEvent {
	switch status {
	case BookingConfirmed:
		return EventConfirmed
	case BookingCancelled:
		return EventCancelled
	case BookingCompleted:
		return EventCompleted
	case BookingNoShow:
		return EventNoShow
	default:
		return EventRequested
	}
}
