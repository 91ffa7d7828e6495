package pricing

import (
	"fmt"

	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
)

type Tier string

const (
	TierHourly Tier = "hourly"
	TierDay    Tier = "day"
	TierMonth  Tier = "month"
)

// TieBreak selects which tier is reported when a flat tier costs exactly
// the same as the hourly rate. The amount charged is identical either way.
type TieBreak string

const (
	PreferFlat   TieBreak = "flat"
	PreferHourly TieBreak = "hourly"
)

func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case PreferFlat, PreferHourly:
		return TieBreak(s), nil
	case "":
		return PreferFlat, nil
	default:
		return "", fmt.Errorf("unknown pricing tie-break %q (expected flat or hourly)", s)
	}
}

type Quote struct {
	Tier       Tier  `json:"tier"`
	UnitCents  int64 `json:"unit_cents"`
	SeatCount  int   `json:"seat_count"`
	Minutes    int   `json:"minutes"`
	TotalCents int64 `json:"total_cents"`
}

type Calculator struct {
	tieBreak TieBreak
}

func NewCalculator(tieBreak TieBreak) *Calculator {
	if tieBreak == "" {
		tieBreak = PreferFlat
	}
	return &Calculator{tieBreak: tieBreak}
}

type candidate struct {
	tier  Tier
	cents int64
}

// Quote prices a booking of the given length for seatCount seats. The unit
// price is the cheapest offered tier; a flat tier therefore takes over exactly
// at its breakeven point and the total never decreases as minutes grow.
func (c *Calculator) Quote(rates model.RateCard, minutes, seatCount int) (Quote, error) {
	if seatCount < 1 {
		return Quote{}, apperrors.InvalidQuantity("seat_count", seatCount)
	}
	if minutes <= 0 {
		return Quote{}, apperrors.InvalidRange("duration must be positive", map[string]any{"minutes": minutes})
	}

	best := candidate{tier: TierHourly, cents: HourlyCents(rates.PerHourCents, minutes)}
	offered := rates.PerHourCents > 0

	for _, flat := range []candidate{
		{tier: TierDay, cents: rates.PerDayCents},
		{tier: TierMonth, cents: rates.PerMonthCents},
	} {
		if flat.cents <= 0 {
			continue
		}
		if !offered || c.prefer(flat, best) {
			best = flat
			offered = true
		}
	}

	return Quote{
		Tier:       best.tier,
		UnitCents:  best.cents,
		SeatCount:  seatCount,
		Minutes:    minutes,
		TotalCents: best.cents * int64(seatCount),
	}, nil
}

func (c *Calculator) prefer(flat, current candidate) bool {
	if flat.cents != current.cents {
		return flat.cents < current.cents
	}
	if current.tier != TierHourly {
		return false
	}
	return c.tieBreak == PreferFlat
}

// HourlyCents charges perHour pro rata by the minute, rounding half up to a cent.
func HourlyCents(perHour int64, minutes int) int64 {
	return (perHour*int64(minutes) + 30) / 60
}
