package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/config"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName       = "Bookings"
	LedgerCollectionName = "Booking_ledger"
	CountersCollection   = "Counters"

	ledgerCounterID = "booking_ledger"
)

// Expectation is the status pair a booking must still have for an update to apply.
type Expectation struct {
	Status        model.BookingStatus
	PaymentStatus model.PaymentStatus
}

func ExpectationOf(b *model.Booking) Expectation {
	return Expectation{Status: b.Status, PaymentStatus: b.PaymentStatus}
}

// BookingRepository stores bookings and their insert-only ledger. Every write
// appends its ledger entries in the same transaction and assigns their sequences.
type BookingRepository interface {
	// Insert stores a new booking with its ledger entries and derives the
	// booking number from the first entry's sequence.
	Insert(ctx context.Context, booking *model.Booking, entries []*model.LedgerEntry) error
	// Update persists the mutable fields of booking when the stored statuses
	// still match expect. It returns ErrStaleBooking otherwise.
	Update(ctx context.Context, booking *model.Booking, expect Expectation, entries []*model.LedgerEntry) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByIdempotencyKey(ctx context.Context, requesterID, key string) (*model.Booking, error)
	FindActiveByResourceAndDate(ctx context.Context, resourceID, date string) ([]*model.Booking, error)
	FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, error)
	CountByRequester(ctx context.Context, requesterID string) (int64, error)
	// HasActiveBookings reports whether any non-cancelled booking references the resource.
	HasActiveBookings(ctx context.Context, resourceID string) (bool, error)
	History(ctx context.Context, bookingID string) ([]*model.LedgerEntry, error)
	HasReference(ctx context.Context, bookingID, reference string) (bool, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	ledger     *mongo.Collection
	counters   *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		ledger:     db.Collection(LedgerCollectionName),
		counters:   db.Collection(CountersCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking, entries []*model.LedgerEntry) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.assignSequences(sessCtx, entries); err != nil {
			return err
		}
		if len(entries) > 0 {
			booking.AssignNumber(entries[0].Sequence)
		}

		if _, err := r.collection.InsertOne(sessCtx, booking); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateIdempotencyKey, booking.IdempotencyKey)
			}
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return r.appendEntries(sessCtx, entries)
	})
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking, expect Expectation, entries []*model.LedgerEntry) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{
			"_id":            booking.ID,
			"status":         expect.Status,
			"payment_status": expect.PaymentStatus,
		}
		set := bson.M{
			"status":         booking.Status,
			"payment_status": booking.PaymentStatus,
			"paid_cents":     booking.PaidCents,
			"updated_at":     booking.UpdatedAt,
		}
		if booking.CancelledAt != nil {
			set["cancelled_at"] = booking.CancelledAt
			set["cancelled_by"] = booking.CancelledBy
			set["cancellation_reason"] = booking.CancellationReason
		}

		result, err := r.collection.UpdateOne(sessCtx, filter, bson.M{"$set": set})
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if result.MatchedCount == 0 {
			count, err := r.collection.CountDocuments(sessCtx, bson.M{"_id": booking.ID})
			if err != nil {
				return fmt.Errorf("failed to check booking existence: %w", err)
			}
			if count == 0 {
				return bookingserrors.ErrNotFound
			}
			return bookingserrors.ErrStaleBooking
		}

		if err := r.assignSequences(sessCtx, entries); err != nil {
			return err
		}
		return r.appendEntries(sessCtx, entries)
	})
}

// assignSequences reserves one counter value per entry.
func (r *mongoBookingRepository) assignSequences(ctx context.Context, entries []*model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": ledgerCounterID},
		bson.M{"$inc": bson.M{"seq": int64(len(entries))}},
		opts,
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("failed to reserve ledger sequence: %w", err)
	}

	first := counter.Seq - int64(len(entries)) + 1
	for i, e := range entries {
		e.Sequence = first + int64(i)
	}
	return nil
}

func (r *mongoBookingRepository) appendEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e)
	}
	if _, err := r.ledger.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to append ledger entries: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByIdempotencyKey(ctx context.Context, requesterID, key string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"requester_id": requesterID, "idempotency_key": key}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by idempotency key: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindActiveByResourceAndDate(ctx context.Context, resourceID, date string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id": resourceID,
		"date":        date,
		"status":      bson.M{"$in": model.SlotHoldingStatuses},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings for resource: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"requester_id": requesterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings by requester: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"requester_id": requesterID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings by requester: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) HasActiveBookings(ctx context.Context, resourceID string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id": resourceID,
		"status":      bson.M{"$ne": model.BookingCancelled},
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check bookings for resource: %w", err)
	}
	return count > 0, nil
}

func (r *mongoBookingRepository) History(ctx context.Context, bookingID string) ([]*model.LedgerEntry, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.ledger.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

func (r *mongoBookingRepository) HasReference(ctx context.Context, bookingID, reference string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.ledger.CountDocuments(ctx,
		bson.M{"booking_id": bookingID, "reference": reference},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to look up ledger reference: %w", err)
	}
	return count > 0, nil
}
