package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/config"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository provides operations for advisory locks
type BookingLockRepository interface {
	// Create inserts the lock, taking over an expired holder's document.
	// It returns ErrLockHeld while a live lock exists.
	Create(ctx context.Context, lock *model.BookingLock) error
	// Delete removes the lock only when owner still holds it.
	Delete(ctx context.Context, lockID, owner string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoBookingLockRepository) Create(ctx context.Context, lock *model.BookingLock) error {
	lock.CreatedAt = time.Now().UTC()

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert lock %s: %w", lock.ID, err)
	}

	// The TTL monitor runs about once a minute, so a crashed holder's lock can
	// outlive its expiry. Take it over when it has expired.
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": lock.CreatedAt}},
		bson.M{"$set": bson.M{
			"owner":      lock.Owner,
			"expires_at": lock.ExpiresAt,
			"created_at": lock.CreatedAt,
		}},
		options.Update().SetUpsert(false),
	)
	if err != nil {
		return fmt.Errorf("failed to reclaim lock %s: %w", lock.ID, err)
	}
	if result.ModifiedCount == 0 {
		return bookingserrors.ErrLockHeld
	}
	return nil
}

func (r *mongoBookingLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete lock %s: %w", lockID, err)
	}
	return nil
}
