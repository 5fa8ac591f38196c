package models

import (
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/slug"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultRatingsAverage = 4.5
	tourNameMinLen        = 10
	tourNameMaxLen        = 40
)

// Tour is a catalog entry. RatingsAverage and RatingsQuantity are derived
// from reviews and never written from client input.
type Tour struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string           `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Slug            string           `gorm:"column:slug;not null;index" json:"slug"`
	Duration        int              `gorm:"column:duration;not null" json:"duration"`
	MaxGroupSize    int              `gorm:"column:max_group_size;not null" json:"maxGroupSize"`
	Difficulty      enums.Difficulty `gorm:"column:difficulty;type:text;not null" json:"difficulty"`
	RatingsAverage  float64          `gorm:"column:ratings_average;not null" json:"ratingsAverage"`
	RatingsQuantity int              `gorm:"column:ratings_quantity;not null" json:"ratingsQuantity"`
	Price           decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	PriceDiscount   *decimal.Decimal `gorm:"column:price_discount;type:numeric(10,2)" json:"priceDiscount,omitempty"`
	Summary         string           `gorm:"column:summary;not null" json:"summary"`
	Description     string           `gorm:"column:description" json:"description,omitempty"`
	ImageCover      string           `gorm:"column:image_cover;not null" json:"imageCover"`
	Images          types.StringList `gorm:"column:images;type:text" json:"images"`
	StartDates      types.TimeList   `gorm:"column:start_dates;type:text" json:"startDates"`
	SecretTour      bool             `gorm:"column:secret_tour;not null;index" json:"-"`
	StartLocation   types.GeoPoint   `gorm:"column:start_location;type:text" json:"startLocation"`
	StartLat        float64          `gorm:"column:start_lat;index" json:"-"`
	StartLng        float64          `gorm:"column:start_lng" json:"-"`
	Locations       types.Waypoints  `gorm:"column:locations;type:text" json:"locations"`
	Guides          []User           `gorm:"many2many:tour_guides;constraint:OnDelete:CASCADE" json:"guides,omitempty"`
	Reviews         []Review         `gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE" json:"reviews,omitempty"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (t *Tour) GetID() uuid.UUID   { return t.ID }
func (t *Tour) SetID(id uuid.UUID) { t.ID = id }

// Normalize derives the slug and the indexed start coordinates.
func (t *Tour) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = slug.Make(t.Name)
	if t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	t.StartLat = t.StartLocation.Lat()
	t.StartLng = t.StartLocation.Lng()
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
	if t.RatingsAverage == 0 && t.RatingsQuantity == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
}

func (t *Tour) Validate() error {
	var v violations
	v.check(t.Name != "", "A tour must have a name")
	if t.Name != "" {
		n := len([]rune(t.Name))
		v.check(n >= tourNameMinLen, "A tour name must have at least %d characters", tourNameMinLen)
		v.check(n <= tourNameMaxLen, "A tour name must have at most %d characters", tourNameMaxLen)
	}
	v.check(t.Duration > 0, "A tour must have a duration")
	v.check(t.MaxGroupSize > 0, "A tour must have a group size")
	v.check(t.Difficulty.IsValid(), "Difficulty is either: easy, medium, difficult")
	v.check(t.RatingsAverage >= 1 && t.RatingsAverage <= 5, "Rating must be between 1.0 and 5.0")
	v.check(t.RatingsQuantity >= 0, "Ratings quantity cannot be negative")
	v.check(t.Price.IsPositive(), "A tour must have a price")
	if t.PriceDiscount != nil {
		v.check(t.PriceDiscount.LessThan(t.Price), "Discount price (%s) should be below regular price", t.PriceDiscount.String())
		v.check(!t.PriceDiscount.IsNegative(), "Discount price cannot be negative")
	}
	v.check(strings.TrimSpace(t.Summary) != "", "A tour must have a summary")
	v.check(t.ImageCover != "", "A tour must have a cover image")
	if err := t.StartLocation.Validate(); err != nil {
		v.check(false, "Start location: %v", err)
	}
	for i, loc := range t.Locations {
		if err := loc.Validate(); err != nil {
			v.check(false, "Location %d: %v", i+1, err)
		}
	}
	return v.result()
}

// DurationWeeks is the virtual week count shown alongside duration.
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// StartCoordinate returns the start location as a lat/lng pair.
func (t *Tour) StartCoordinate() types.Coordinate {
	return types.Coordinate{Lat: t.StartLat, Lng: t.StartLng}
}
