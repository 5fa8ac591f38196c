package models

import (
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking links a user to a purchased tour. Active is "yes" for a current
// booking and a unique cancellation token once cancelled, so (user, tour,
// active) only constrains current bookings.
type Booking struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TourID    uuid.UUID       `gorm:"column:tour_id;type:uuid;not null;uniqueIndex:idx_bookings_user_tour_active" json:"tourId"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_bookings_user_tour_active" json:"userId"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Paid      bool            `gorm:"column:paid;not null" json:"paid"`
	Active    string          `gorm:"column:active;not null;uniqueIndex:idx_bookings_user_tour_active" json:"-"`
	Tour      *Tour           `gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE" json:"tour,omitempty"`
	User      *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (b *Booking) GetID() uuid.UUID   { return b.ID }
func (b *Booking) SetID(id uuid.UUID) { b.ID = id }

func (b *Booking) Normalize() {
	if b.Active == "" {
		b.Active = enums.BookingActiveMarker
	}
}

func (b *Booking) Validate() error {
	var v violations
	v.check(b.TourID != uuid.Nil, "Booking must belong to a Tour!")
	v.check(b.UserID != uuid.Nil, "Booking must belong to a User!")
	v.check(b.Price.IsPositive(), "Booking must have a price.")
	v.check(b.Active == enums.BookingActiveMarker || strings.HasPrefix(b.Active, enums.BookingCancelledPrefix), "Booking has an unknown state")
	return v.result()
}

// IsActive reports whether the booking is current.
func (b *Booking) IsActive() bool {
	return b.Active == enums.BookingActiveMarker
}
