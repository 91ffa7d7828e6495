package pricing

import (
	"testing"

	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var room3 = model.RateCard{PerHourCents: 5000, PerDayCents: 40000}

func TestQuote_Room3(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	eight, err := calc.Quote(room3, 8*60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierDay, eight.Tier)
	assert.Equal(t, int64(40000), eight.TotalCents)

	three, err := calc.Quote(room3, 3*60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierHourly, three.Tier)
	assert.Equal(t, int64(15000), three.TotalCents)
}

func TestQuote_TieBreakHourly(t *testing.T) {
	calc := NewCalculator(PreferHourly)

	q, err := calc.Quote(room3, 8*60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierHourly, q.Tier)
	assert.Equal(t, int64(40000), q.TotalCents)
}

func TestQuote_DayRateBeatsHourlyPastBreakeven(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	q, err := calc.Quote(room3, 10*60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierDay, q.Tier)
	assert.Equal(t, int64(40000), q.TotalCents)
}

func TestQuote_MonthTierCheapest(t *testing.T) {
	calc := NewCalculator(PreferFlat)
	rates := model.RateCard{PerHourCents: 5000, PerDayCents: 40000, PerMonthCents: 30000}

	q, err := calc.Quote(rates, 9*60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierMonth, q.Tier)
	assert.Equal(t, int64(30000), q.TotalCents)
}

func TestQuote_FlatOnlyResource(t *testing.T) {
	calc := NewCalculator(PreferHourly)

	q, err := calc.Quote(model.RateCard{PerDayCents: 2500}, 60, 1)
	require.NoError(t, err)
	assert.Equal(t, TierDay, q.Tier)
	assert.Equal(t, int64(2500), q.TotalCents)
}

func TestQuote_FractionalHoursRoundToCent(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	q, err := calc.Quote(model.RateCard{PerHourCents: 1999}, 90, 1)
	require.NoError(t, err)
	// 1999 * 1.5 = 2998.5
	assert.Equal(t, int64(2999), q.TotalCents)
}

func TestQuote_MonotonicInDuration(t *testing.T) {
	calc := NewCalculator(PreferFlat)
	cards := []model.RateCard{
		room3,
		{PerHourCents: 1250},
		{PerHourCents: 999, PerDayCents: 6000, PerMonthCents: 90000},
		{PerHourCents: 7000, PerMonthCents: 20000},
	}

	for _, rates := range cards {
		var previous int64
		for minutes := 15; minutes <= 24*60; minutes += 15 {
			q, err := calc.Quote(rates, minutes, 1)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, q.TotalCents, previous, "rates %+v at %d minutes", rates, minutes)
			previous = q.TotalCents
		}
	}
}

func TestQuote_LinearInSeats(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	single, err := calc.Quote(room3, 150, 1)
	require.NoError(t, err)

	for seats := 2; seats <= 12; seats++ {
		q, err := calc.Quote(room3, 150, seats)
		require.NoError(t, err)
		assert.Equal(t, single.TotalCents*int64(seats), q.TotalCents)
		assert.Equal(t, seats, q.SeatCount)
	}
}

func TestQuote_InvalidQuantity(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	for _, seats := range []int{0, -1} {
		_, err := calc.Quote(room3, 60, seats)
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
	}
}

func TestQuote_InvalidDuration(t *testing.T) {
	calc := NewCalculator(PreferFlat)

	_, err := calc.Quote(room3, 0, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)
}

func TestParseTieBreak(t *testing.T) {
	tb, err := ParseTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, PreferFlat, tb)

	tb, err = ParseTieBreak("hourly")
	require.NoError(t, err)
	assert.Equal(t, PreferHourly, tb)

	_, err = ParseTieBreak("cheapest")
	assert.Error(t, err)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "400.00 USD", FormatCents(40000, "usd"))
	assert.Equal(t, "0.05", FormatCents(5, ""))
	assert.Equal(t, "-12.30 EUR", FormatCents(-1230, "EUR"))
}
