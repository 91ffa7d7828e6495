package service

import (
	"context"
	"slices"
	"testing"

	"cowork/internal/bookings/repository"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clocks(ranges []model.TimeRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.StartClock()+"-"+r.EndClock())
	}
	return out
}

func TestFreeRanges(t *testing.T) {
	hours := model.OperatingHours{Open: 8 * 60, Close: 20 * 60}
	window, err := hours.Window(testDate)
	require.NoError(t, err)

	mk := func(start, end string) model.TimeRange {
		tr, err := model.NewTimeRange(testDate, start, end, hours)
		require.NoError(t, err)
		return tr
	}

	tests := []struct {
		name     string
		occupied []model.TimeRange
		want     []string
	}{
		{name: "empty day", want: []string{"08:00-20:00"}},
		{
			name:     "gaps between bookings",
			occupied: []model.TimeRange{mk("09:00", "10:00"), mk("11:00", "12:00")},
			want:     []string{"08:00-09:00", "10:00-11:00", "12:00-20:00"},
		},
		{
			name:     "adjacent bookings leave no sliver",
			occupied: []model.TimeRange{mk("08:00", "09:00"), mk("09:00", "10:00")},
			want:     []string{"10:00-20:00"},
		},
		{
			name:     "fully booked",
			occupied: []model.TimeRange{mk("08:00", "14:00"), mk("14:00", "20:00")},
			want:     []string{},
		},
		{
			name:     "booking running to close",
			occupied: []model.TimeRange{mk("18:30", "20:00")},
			want:     []string{"08:00-18:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clocks(slices.Collect(freeRanges(window, tt.occupied)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreeRanges_StopsWhenConsumerStops(t *testing.T) {
	hours := model.OperatingHours{Open: 8 * 60, Close: 20 * 60}
	window, err := hours.Window(testDate)
	require.NoError(t, err)
	occupied, err := model.NewTimeRange(testDate, "09:00", "10:00", hours)
	require.NoError(t, err)

	var seen int
	for range freeRanges(window, []model.TimeRange{occupied}) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestAvailabilityService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestBooking(ctx, request("seat-a1", "10:00", "12:00"))
	require.NoError(t, err)
	cancelled, err := f.svc.RequestBooking(ctx, request("seat-a1", "14:00", "15:00"))
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, cancelled.ID, "member-1", "")
	require.NoError(t, err)

	availability := NewAvailabilityService(f.repo, testResources(), f.cfg)

	free, err := availability.FreeSlots(ctx, "seat-a1", testDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00-10:00", "12:00-20:00"}, clocks(free))

	occupied, err := availability.OccupiedRanges(ctx, "seat-a1", testDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-12:00"}, clocks(occupied))

	check, err := availability.Check(ctx, "seat-a1", testDate, "11:00", "13:00")
	require.NoError(t, err)
	assert.False(t, check.Free)

	check, err = availability.Check(ctx, "seat-a1", testDate, "12:00", "13:00")
	require.NoError(t, err)
	assert.True(t, check.Free)
}

func TestAvailabilityService_Errors(t *testing.T) {
	cfg := testConfig()
	repo := repository.NewMemoryBookingRepository()
	availability := NewAvailabilityService(repo, testResources(), cfg)
	ctx := context.Background()

	_, err := availability.FreeSlots(ctx, "room-404", testDate)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = availability.FreeSlots(ctx, "seat-a1", "not-a-date")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)

	_, err = availability.Check(ctx, "seat-a1", testDate, "12:00", "11:00")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)
}

func TestAvailabilityService_NormalizesResourceID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestBooking(ctx, request(" Room-3 ", "10:00", "12:00"))
	require.NoError(t, err)

	availability := NewAvailabilityService(f.repo, testResources(), f.cfg)

	free, err := availability.FreeSlots(ctx, "Room-3", testDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00-10:00", "12:00-20:00"}, clocks(free))

	check, err := availability.Check(ctx, " ROOM-3", testDate, "11:00", "12:00")
	require.NoError(t, err)
	assert.Equal(t, "room-3", check.ResourceID)
	assert.False(t, check.Free)
}
