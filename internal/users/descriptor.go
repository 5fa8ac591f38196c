// Package users implements account self-service and administration.
package users

import (
	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveScope matches accounts that have not been deactivated.
var ActiveScope = clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "active"}, Value: true}

var Schema = query.NewSchema(
	query.ID("id", "id"),
	query.String("name", "name"),
	query.String("email", "email"),
	query.String("role", "role"),
	query.String("photo", "photo"),
	query.Time("createdAt", "created_at"),
	query.Time("updatedAt", "updated_at"),
).HideByDefault("updatedAt")

// Descriptor configures the generic CRUD service for users. Accounts are
// only created through signup.
var Descriptor = resource.Descriptor{
	Name:   "user",
	Schema: Schema,
	Visible: func(db *gorm.DB) *gorm.DB {
		return db.Where(ActiveScope)
	},
	UpdateFields:     []string{"name", "email", "role", "photo"},
	DuplicateMessage: "Duplicate field value: email already in use. Please use another value!",
}

// Public is the projection of a user embedded in other resources.
func Public(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "photo")
}

// GuideFields is the projection of a tour guide.
func GuideFields(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "photo", "role")
}
