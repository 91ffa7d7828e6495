package model

import (
	"slices"
	"time"
)

type ResourceKind string

const (
	KindRoom ResourceKind = "room"
	KindSeat ResourceKind = "seat"
)

type ResourceStatus string

const (
	ResourceActive           ResourceStatus = "active"
	ResourceRetired          ResourceStatus = "retired"
	ResourceUnderMaintenance ResourceStatus = "under_maintenance"
)

// PricingUnit decides whether a room is charged once or once per occupied seat.
type PricingUnit string

const (
	PricePerResource PricingUnit = "resource"
	PricePerSeat     PricingUnit = "seat"
)

// RateCard holds tier prices in minor currency units. A zero tier is not offered.
type RateCard struct {
	PerHourCents  int64 `json:"per_hour_cents" bson:"per_hour_cents" toml:"per_hour_cents" validate:"gte=0"`
	PerDayCents   int64 `json:"per_day_cents" bson:"per_day_cents" toml:"per_day_cents" validate:"gte=0"`
	PerMonthCents int64 `json:"per_month_cents" bson:"per_month_cents" toml:"per_month_cents" validate:"gte=0"`
}

func (rc RateCard) IsEmpty() bool {
	return rc.PerHourCents == 0 && rc.PerDayCents == 0 && rc.PerMonthCents == 0
}

type Resource struct {
	ID          string         `json:"id" toml:"id" validate:"omitempty,slug,max=64"`
	Kind        ResourceKind   `json:"kind" toml:"kind" validate:"required,oneof=room seat"`
	Name        string         `json:"name" toml:"name" validate:"required,min=2,max=100"`
	Floor       int            `json:"floor" toml:"floor" validate:"gte=-5,lte=200"`
	Capacity    int            `json:"capacity" toml:"capacity" validate:"required,min=1,max=500"`
	Rates       RateCard       `json:"rates" toml:"rates"`
	PricingUnit PricingUnit    `json:"pricing_unit" toml:"pricing_unit" validate:"omitempty,oneof=resource seat"`
	Amenities   []string       `json:"amenities" toml:"amenities" validate:"omitempty,max=30,dive,tag"`
	Status      ResourceStatus `json:"status" toml:"status" validate:"omitempty,oneof=active retired under_maintenance"`
	Version     int            `json:"version" toml:"-"`
	CreatedAt   time.Time      `json:"created_at" toml:"-"`
	UpdatedAt   time.Time      `json:"updated_at" toml:"-"`
}

func (r *Resource) IsBookable() bool {
	return r.Status == ResourceActive
}

// SeatCountFor returns how many seats a party occupies for pricing purposes.
func (r *Resource) SeatCountFor(partySize int) int {
	if r.Kind == KindRoom && r.PricingUnit == PricePerSeat {
		return partySize
	}
	return 1
}

// HasAmenities reports whether every required tag is present.
func (r *Resource) HasAmenities(required []string) bool {
	for _, tag := range required {
		if !slices.Contains(r.Amenities, tag) {
			return false
		}
	}
	return true
}

type ResourceFilter struct {
	Kind        ResourceKind
	MinCapacity int
	Amenities   []string
	Status      ResourceStatus
	Floor       *int
	Limit       int
	Offset      int
}

// Matches applies every filter criterion except paging.
func (f ResourceFilter) Matches(r *Resource) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if r.Capacity < f.MinCapacity {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Floor != nil && r.Floor != *f.Floor {
		return false
	}
	return r.HasAmenities(f.Amenities)
}

// ResourceRevision records the rate card and status a resource had at a version.
type ResourceRevision struct {
	ResourceID string         `json:"resource_id"`
	Version    int            `json:"version"`
	Rates      RateCard       `json:"rates"`
	Status     ResourceStatus `json:"status"`
	ChangedBy  string         `json:"changed_by"`
	ChangedAt  time.Time      `json:"changed_at"`
}

type RateUpdate struct {
	Rates RateCard `json:"rates"`
}

type StatusUpdate struct {
	Status ResourceStatus `json:"status" validate:"required,oneof=active retired under_maintenance"`
}
