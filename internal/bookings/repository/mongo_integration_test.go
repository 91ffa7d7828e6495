//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/internal/bookings/locker"
	"cowork/internal/bookings/repository"
	mongoMigration "cowork/internal/migrations/mongo"
	"cowork/pkg/client"
	"cowork/pkg/config"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transactions need a replica set, e.g. mongod --replSet rs0.
const envTestMongoURI = "TEST_MONGO_URI"

func newMongoConfig(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv(envTestMongoURI)
	if uri == "" {
		t.Skipf("%s not set", envTestMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, mongoClient.Ping(ctx, nil))

	dbName := fmt.Sprintf("cowork_it_%d", time.Now().UnixNano())
	log := logger.Discard()
	require.NoError(t, mongoMigration.RunMigration(ctx, mongoClient, dbName, log))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Database(dbName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", dbName, err)
		}
		_ = mongoClient.Disconnect(ctx)
	})

	return &config.Config{
		MongoDatabaseName: dbName,
		WriteTimeout:      5 * time.Second,
		Log:               log,
		Client:            &client.Client{Mongo: mongoClient},
	}
}

func TestMongoBookingRepository_LedgerAndIdempotency(t *testing.T) {
	cfg := newMongoConfig(t)
	repo := repository.NewMongoBookingRepository(cfg)
	ctx := context.Background()
	createdAt := time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

	booking := &model.Booking{
		ID:             "0190f0b2-0000-7000-8000-000000000001",
		ResourceID:     "room-3",
		RequesterID:    "alice",
		Date:           "2030-03-04",
		StartTime:      "09:00",
		EndTime:        "11:00",
		StartsAt:       time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC),
		EndsAt:         time.Date(2030, 3, 4, 11, 0, 0, 0, time.UTC),
		PartySize:      2,
		TotalCents:     10000,
		Currency:       "EUR",
		Status:         model.BookingPending,
		PaymentStatus:  model.PaymentUnpaid,
		IdempotencyKey: "key-1",
		CreatedAt:      createdAt,
	}
	entries := []*model.LedgerEntry{{
		BookingID:  booking.ID,
		ResourceID: booking.ResourceID,
		Event:      model.EventRequested,
		Actor:      "alice",
		Timestamp:  createdAt,
	}}
	require.NoError(t, repo.Insert(ctx, booking, entries))
	assert.Equal(t, "BK-20300301-000001", booking.Number)

	replay, err := repo.FindByIdempotencyKey(ctx, "alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, replay.ID)

	active, err := repo.FindActiveByResourceAndDate(ctx, "room-3", "2030-03-04")
	require.NoError(t, err)
	require.Len(t, active, 1)

	expect := repository.ExpectationOf(booking)
	booking.Status = model.BookingCancelled
	cancelled := []*model.LedgerEntry{{
		BookingID:  booking.ID,
		ResourceID: booking.ResourceID,
		Event:      model.EventCancelled,
		Actor:      "alice",
		Timestamp:  createdAt.Add(time.Hour),
	}}
	require.NoError(t, repo.Update(ctx, booking, expect, cancelled))

	err = repo.Update(ctx, booking, expect, nil)
	assert.ErrorIs(t, err, bookingserrors.ErrStaleBooking)

	active, err = repo.FindActiveByResourceAndDate(ctx, "room-3", "2030-03-04")
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := repo.History(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.EventRequested, history[0].Event)
	assert.Equal(t, model.EventCancelled, history[1].Event)
}

func TestMongoLocker_SerializesHolders(t *testing.T) {
	cfg := newMongoConfig(t)
	l := locker.NewMongoLocker(repository.NewBookingLockRepository(cfg), 5*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "room-3|2030-03-04")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "room-3|2030-03-04")
	require.Error(t, err)

	require.NoError(t, release(ctx))

	release, err = l.Acquire(ctx, "room-3|2030-03-04")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
