// Package tours implements the tour catalog and its analytics.
package tours

import (
	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublicScope hides secret tours.
var PublicScope = clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "secret_tour"}, Value: false}

var Schema = query.NewSchema(
	query.ID("id", "id"),
	query.String("name", "name"),
	query.String("slug", "slug"),
	query.Number("duration", "duration"),
	query.Number("maxGroupSize", "max_group_size"),
	query.String("difficulty", "difficulty"),
	query.Number("ratingsAverage", "ratings_average"),
	query.Number("ratingsQuantity", "ratings_quantity"),
	query.Number("price", "price"),
	query.Number("priceDiscount", "price_discount"),
	query.String("summary", "summary"),
	query.String("description", "description"),
	query.String("imageCover", "image_cover"),
	query.Virtual("images"),
	query.Virtual("startDates"),
	query.Virtual("startLocation"),
	query.Virtual("locations"),
	query.Virtual("guides"),
	query.Virtual("reviews"),
	query.Virtual("durationWeeks"),
	query.Time("createdAt", "created_at"),
	query.Time("updatedAt", "updated_at"),
).HideByDefault("updatedAt")

var Descriptor = resource.Descriptor{
	Name:   "tour",
	Schema: Schema,
	Visible: func(db *gorm.DB) *gorm.DB {
		return db.Where(PublicScope)
	},
	ListPreloads: []resource.Preload{
		{Relation: "Guides", Scope: users.GuideFields},
	},
	GetPreloads: []resource.Preload{
		{Relation: "Guides", Scope: users.GuideFields},
		{Relation: "Reviews"},
		{Relation: "Reviews.User", Scope: users.Public},
	},
	CreateFields: []string{
		"name", "duration", "maxGroupSize", "difficulty", "price", "priceDiscount",
		"summary", "description", "imageCover", "images", "startDates",
		"startLocation", "locations",
	},
	UpdateFields: []string{
		"name", "duration", "maxGroupSize", "difficulty", "price", "priceDiscount",
		"summary", "description", "imageCover", "images", "startDates",
		"startLocation", "locations",
	},
	DuplicateMessage: "A tour with that name already exists. Please use another value!",
}

// Guide is the public view of a tour guide.
type Guide struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Photo string    `json:"photo"`
	Role  string    `json:"role"`
}

// View is the serialized form of a tour.
type View struct {
	*models.Tour
	DurationWeeks float64        `json:"durationWeeks"`
	Guides        []Guide        `json:"guides"`
	Reviews       []reviews.View `json:"reviews,omitempty"`
}

// Present converts a stored tour into its public form.
func Present(t *models.Tour) any {
	v := View{Tour: t, DurationWeeks: t.DurationWeeks(), Guides: make([]Guide, 0, len(t.Guides))}
	for _, g := range t.Guides {
		v.Guides = append(v.Guides, Guide{ID: g.ID, Name: g.Name, Email: g.Email, Photo: g.Photo, Role: string(g.Role)})
	}
	for i := range t.Reviews {
		v.Reviews = append(v.Reviews, reviews.NewView(&t.Reviews[i]))
	}
	return v
}
