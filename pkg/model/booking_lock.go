package model

import "time"

// BookingLock is an advisory lock document serializing writers on one resource day.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// LockKey scopes a critical section to one resource on one date.
func LockKey(resourceID, date string) string {
	return resourceID + "|" + date
}
