// Package reviews implements tour reviews and keeps tour rating summaries
// current as reviews change.
package reviews

import (
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
)

var Schema = query.NewSchema(
	query.ID("id", "id"),
	query.String("review", "review"),
	query.Number("rating", "rating"),
	query.ID("tourId", "tour_id"),
	query.ID("userId", "user_id"),
	query.Virtual("user"),
	query.Time("createdAt", "created_at"),
	query.Time("updatedAt", "updated_at"),
).HideByDefault("updatedAt")

var Descriptor = resource.Descriptor{
	Name:   "review",
	Schema: Schema,
	ListPreloads: []resource.Preload{
		{Relation: "User", Scope: users.Public},
	},
	GetPreloads: []resource.Preload{
		{Relation: "User", Scope: users.Public},
	},
	CreateFields:     []string{"review", "rating"},
	UpdateFields:     []string{"review", "rating"},
	DuplicateMessage: "You have already reviewed this tour",
}

// Author is the public view of a review's writer.
type Author struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Photo string    `json:"photo"`
}

// View is the serialized form of a review.
type View struct {
	ID        uuid.UUID `json:"id"`
	Review    string    `json:"review"`
	Rating    float64   `json:"rating"`
	TourID    uuid.UUID `json:"tourId"`
	UserID    uuid.UUID `json:"userId"`
	User      *Author   `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Present converts a stored review into its public form.
func Present(r *models.Review) any {
	return NewView(r)
}

func NewView(r *models.Review) View {
	v := View{
		ID:        r.ID,
		Review:    r.Review,
		Rating:    r.Rating,
		TourID:    r.TourID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.User != nil {
		v.User = &Author{ID: r.User.ID, Name: r.User.Name, Photo: r.User.Photo}
	}
	return v
}
