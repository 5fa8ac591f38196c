package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Review is one user's rating of one tour. (tour, user) is unique.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Review    string    `gorm:"column:review;type:text;not null" json:"review"`
	Rating    float64   `gorm:"column:rating;not null" json:"rating"`
	TourID    uuid.UUID `gorm:"column:tour_id;type:uuid;not null;uniqueIndex:idx_reviews_tour_user" json:"tourId"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_reviews_tour_user" json:"userId"`
	Tour      *Tour     `gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE" json:"tour,omitempty"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (r *Review) GetID() uuid.UUID   { return r.ID }
func (r *Review) SetID(id uuid.UUID) { r.ID = id }

func (r *Review) Normalize() {
	r.Review = strings.TrimSpace(r.Review)
}

func (r *Review) Validate() error {
	var v violations
	v.check(r.Review != "", "Review can not be empty!")
	v.check(r.Rating >= 1 && r.Rating <= 5, "Rating must be between 1 and 5")
	v.check(r.TourID != uuid.Nil, "Review must belong to a tour.")
	v.check(r.UserID != uuid.Nil, "Review must belong to a user")
	return v.result()
}
