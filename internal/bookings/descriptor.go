// Package bookings implements tour bookings, their cancellation policy and
// fulfilment of paid checkout sessions.
package bookings

import (
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveScope matches bookings that have not been cancelled.
var ActiveScope = clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "active"}, Value: enums.BookingActiveMarker}

var Schema = query.NewSchema(
	query.ID("id", "id"),
	query.ID("tourId", "tour_id"),
	query.ID("userId", "user_id"),
	query.Number("price", "price"),
	query.Bool("paid", "paid"),
	query.Virtual("tour"),
	query.Virtual("user"),
	query.Time("createdAt", "created_at"),
	query.Time("updatedAt", "updated_at"),
).HideByDefault("updatedAt")

func tourSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "slug", "price", "image_cover", "summary", "duration")
}

func customerFields(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "photo")
}

var preloads = []resource.Preload{
	{Relation: "Tour", Scope: tourSummary},
	{Relation: "User", Scope: customerFields},
}

var Descriptor = resource.Descriptor{
	Name:   "booking",
	Schema: Schema,
	Visible: func(db *gorm.DB) *gorm.DB {
		return db.Where(ActiveScope)
	},
	ListPreloads:     preloads,
	GetPreloads:      preloads,
	CreateFields:     []string{"tourId", "userId", "price", "paid"},
	UpdateFields:     []string{"price", "paid"},
	DuplicateMessage: "This user already has an active booking for this tour",
}

// TourSummary is the tour embedded in a booking.
type TourSummary struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	Price      decimal.Decimal `json:"price"`
	ImageCover string          `json:"imageCover"`
	Summary    string          `json:"summary"`
	Duration   int             `json:"duration"`
}

// Customer is the user embedded in a booking.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Photo string    `json:"photo"`
}

// View is the serialized form of a booking.
type View struct {
	ID        uuid.UUID       `json:"id"`
	TourID    uuid.UUID       `json:"tourId"`
	UserID    uuid.UUID       `json:"userId"`
	Price     decimal.Decimal `json:"price"`
	Paid      bool            `json:"paid"`
	Tour      *TourSummary    `json:"tour,omitempty"`
	User      *Customer       `json:"user,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Present converts a stored booking into its public form.
func Present(b *models.Booking) any {
	v := View{
		ID:        b.ID,
		TourID:    b.TourID,
		UserID:    b.UserID,
		Price:     b.Price,
		Paid:      b.Paid,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if t := b.Tour; t != nil {
		v.Tour = &TourSummary{ID: t.ID, Name: t.Name, Slug: t.Slug, Price: t.Price, ImageCover: t.ImageCover, Summary: t.Summary, Duration: t.Duration}
	}
	if u := b.User; u != nil {
		v.User = &Customer{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo}
	}
	return v
}
