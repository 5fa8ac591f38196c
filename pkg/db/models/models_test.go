package models

import (
	"testing"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTour() *Tour {
	return &Tour{
		Name:         "The Forest Hiker",
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   enums.DifficultyEasy,
		Price:        decimal.NewFromInt(397),
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
		StartLocation: types.GeoPoint{
			Coordinates: [2]float64{-115.570154, 51.178456},
			Address:     "224 Banff Ave, Banff, AB, Canada",
		},
	}
}

func TestTourNormalizeDerivesFields(t *testing.T) {
	tour := validTour()
	tour.Normalize()

	assert.Equal(t, "the-forest-hiker", tour.Slug)
	assert.Equal(t, "Point", tour.StartLocation.Type)
	assert.InDelta(t, 51.178456, tour.StartLat, 1e-9)
	assert.InDelta(t, -115.570154, tour.StartLng, 1e-9)
	assert.Equal(t, DefaultRatingsAverage, tour.RatingsAverage)
	require.NoError(t, tour.Validate())
	assert.InDelta(t, 5.0/7.0, tour.DurationWeeks(), 1e-9)
}

func TestTourValidateDiscountBelowPrice(t *testing.T) {
	tour := validTour()
	tour.Normalize()
	tour.Price = decimal.NewFromInt(100)
	discount := decimal.NewFromInt(150)
	tour.PriceDiscount = &discount

	err := tour.Validate()
	require.Error(t, err)
	msgs := Violations(err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "should be below regular price")
}

func TestTourValidateAggregatesEveryViolation(t *testing.T) {
	tour := &Tour{Name: "short", RatingsAverage: 7}
	msgs := Violations(tour.Validate())

	assert.Contains(t, msgs, "A tour name must have at least 10 characters")
	assert.Contains(t, msgs, "A tour must have a duration")
	assert.Contains(t, msgs, "A tour must have a group size")
	assert.Contains(t, msgs, "Difficulty is either: easy, medium, difficult")
	assert.Contains(t, msgs, "Rating must be between 1.0 and 5.0")
	assert.Contains(t, msgs, "A tour must have a price")
	assert.Contains(t, msgs, "A tour must have a summary")
	assert.Contains(t, msgs, "A tour must have a cover image")
}

func TestUserNormalizeAndValidate(t *testing.T) {
	u := &User{Name: " Jonas ", Email: " Jonas@Example.COM ", PasswordHash: "hash"}
	u.Normalize()

	assert.Equal(t, "Jonas", u.Name)
	assert.Equal(t, "jonas@example.com", u.Email)
	assert.Equal(t, enums.RoleUser, u.Role)
	assert.Equal(t, DefaultUserPhoto, u.Photo)
	require.NoError(t, u.Validate())

	bad := &User{Email: "nope", Role: "owner"}
	msgs := Violations(bad.Validate())
	assert.Contains(t, msgs, "Please tell us your name!")
	assert.Contains(t, msgs, "Please provide a valid email")
	assert.Contains(t, msgs, "Role is either: admin, lead-guide, guide, user")
	assert.Contains(t, msgs, "Please provide a password")
}

func TestUserChangedPasswordAfter(t *testing.T) {
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	u := &User{}
	assert.False(t, u.ChangedPasswordAfter(issued))

	changed := issued.Add(time.Microsecond)
	u.PasswordChangedAt = &changed
	assert.True(t, u.ChangedPasswordAfter(issued))
	assert.False(t, u.ChangedPasswordAfter(changed))
}

func TestReviewValidate(t *testing.T) {
	r := &Review{Review: "  ", Rating: 6}
	r.Normalize()
	msgs := Violations(r.Validate())
	assert.Len(t, msgs, 4)

	ok := &Review{Review: "Loved it", Rating: 5, TourID: uuid.New(), UserID: uuid.New()}
	assert.NoError(t, ok.Validate())
}

func TestBookingNormalizeDefaultsActive(t *testing.T) {
	b := &Booking{TourID: uuid.New(), UserID: uuid.New(), Price: decimal.NewFromInt(497)}
	b.Normalize()

	assert.True(t, b.IsActive())
	require.NoError(t, b.Validate())

	b.Active = "cancelled"
	assert.Error(t, b.Validate())
	b.Active = enums.BookingCancelledPrefix + uuid.NewString()
	assert.NoError(t, b.Validate())
	assert.False(t, b.IsActive())
}
