package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "cowork/pkg/errors"
)

const (
	DateLayout    = "2006-01-02"
	minutesPerDay = 24 * 60
)

// OperatingHours is the bookable window of a site day in wall-clock minutes
// since local midnight. Close may be 1440 (24:00).
type OperatingHours struct {
	Open     int
	Close    int
	Location *time.Location
}

func DefaultOperatingHours() OperatingHours {
	return OperatingHours{Open: 0, Close: minutesPerDay, Location: time.UTC}
}

// ParseOperatingHours builds operating hours from "HH:MM" clocks and an IANA zone name.
func ParseOperatingHours(open, close, timezone string) (OperatingHours, error) {
	openMin, err := ParseClock(open)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("invalid opening time: %w", err)
	}
	closeMin, err := ParseClock(close)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("invalid closing time: %w", err)
	}
	if closeMin <= openMin {
		return OperatingHours{}, fmt.Errorf("closing time %s must be after opening time %s", close, open)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return OperatingHours{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}

	return OperatingHours{Open: openMin, Close: closeMin, Location: loc}, nil
}

func (h OperatingHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func (h OperatingHours) String() string {
	return FormatClock(h.Open) + "-" + FormatClock(h.Close)
}

// Window returns the whole bookable range of the given day.
func (h OperatingHours) Window(date string) (TimeRange, error) {
	day, err := parseDate(date, h.location())
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{date: date, day: day, startMin: h.Open, endMin: h.Close}, nil
}

// TimeRange is a half-open [start, end) interval inside a single site-local day.
// The zero value is not a valid range; build one with NewTimeRange.
type TimeRange struct {
	date     string
	day      time.Time
	startMin int
	endMin   int
}

func NewTimeRange(date, start, end string, hours OperatingHours) (TimeRange, error) {
	details := map[string]any{"date": date, "start": start, "end": end}

	day, err := parseDate(date, hours.location())
	if err != nil {
		return TimeRange{}, apperrors.InvalidRange(err.Error(), details)
	}
	startMin, err := ParseClock(start)
	if err != nil {
		return TimeRange{}, apperrors.InvalidRange("invalid start time: "+err.Error(), details)
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return TimeRange{}, apperrors.InvalidRange("invalid end time: "+err.Error(), details)
	}
	if endMin <= startMin {
		return TimeRange{}, apperrors.InvalidRange("end time must be after start time", details)
	}
	if startMin < hours.Open || endMin > hours.Close {
		details["operating_hours"] = hours.String()
		return TimeRange{}, apperrors.InvalidRange("time range is outside operating hours", details)
	}

	tr := TimeRange{date: date, day: day, startMin: startMin, endMin: endMin}
	for _, minute := range []int{startMin, endMin} {
		if !tr.exists(minute) {
			details["timezone"] = hours.location().String()
			return TimeRange{}, apperrors.InvalidRange("time "+FormatClock(minute)+" does not exist on this date", details)
		}
	}
	return tr, nil
}

func (tr TimeRange) Date() string { return tr.date }

// Start returns the UTC instant the range begins.
func (tr TimeRange) Start() time.Time { return tr.instant(tr.startMin) }

// End returns the UTC instant the range ends (exclusive).
func (tr TimeRange) End() time.Time { return tr.instant(tr.endMin) }

func (tr TimeRange) StartClock() string { return FormatClock(tr.startMin) }

func (tr TimeRange) EndClock() string { return FormatClock(tr.endMin) }

func (tr TimeRange) IsZero() bool { return tr.date == "" }

// Overlaps reports whether the two half-open ranges intersect. Ranges that
// only touch (one ends when the other starts) do not overlap. Ranges are
// compared in wall-clock minutes of the same site day.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.date == other.date && tr.startMin < other.endMin && other.startMin < tr.endMin
}

func (tr TimeRange) Minutes() int {
	return tr.endMin - tr.startMin
}

func (tr TimeRange) DurationHours() float64 {
	return float64(tr.Minutes()) / 60
}

// Sub returns the part of tr between the given wall-clock minutes, clamped to tr.
func (tr TimeRange) Sub(fromMin, toMin int) TimeRange {
	sub := tr
	sub.startMin = max(tr.startMin, fromMin)
	sub.endMin = min(tr.endMin, toMin)
	if sub.endMin < sub.startMin {
		sub.endMin = sub.startMin
	}
	return sub
}

// Bounds returns the range in wall-clock minutes since local midnight.
func (tr TimeRange) Bounds() (int, int) {
	return tr.startMin, tr.endMin
}

func (tr TimeRange) String() string {
	return fmt.Sprintf("%s %s-%s", tr.date, tr.StartClock(), tr.EndClock())
}

func (tr TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date     string    `json:"date"`
		Start    string    `json:"start"`
		End      string    `json:"end"`
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
		Minutes  int       `json:"minutes"`
	}{
		Date:     tr.date,
		Start:    tr.StartClock(),
		End:      tr.EndClock(),
		StartsAt: tr.Start(),
		EndsAt:   tr.End(),
		Minutes:  tr.Minutes(),
	})
}

func (tr TimeRange) instant(minute int) time.Time {
	return time.Date(tr.day.Year(), tr.day.Month(), tr.day.Day(), 0, minute, 0, 0, tr.day.Location()).UTC()
}

// exists reports whether the wall-clock minute occurs on the range's day. Times
// skipped by a daylight saving jump do not.
func (tr TimeRange) exists(minute int) bool {
	if minute == minutesPerDay {
		return true
	}
	local := tr.instant(minute).In(tr.day.Location())
	return local.Day() == tr.day.Day() && local.Hour()*60+local.Minute() == minute
}

func parseDate(date string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format, got %q", date)
	}
	return day, nil
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(clock string) (int, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("time must be in HH:MM format, got %q", clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("time must be in HH:MM format, got %q", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("time must be in HH:MM format, got %q", clock)
	}
	if h == 24 && m == 0 {
		return minutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time out of range: %q", clock)
	}
	return h*60 + m, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
