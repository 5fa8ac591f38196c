// Package resource implements create/read/update/delete once for every
// persisted entity. Each entity type supplies a Descriptor naming its query
// schema, visibility scope, expansions and writable fields.
package resource

import (
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"gorm.io/gorm"
)

// Scope narrows a query, e.g. to the rows visible by default or to the
// children of one ancestor.
type Scope func(db *gorm.DB) *gorm.DB

// Preload expands a relation when reading.
type Preload struct {
	Relation string
	Scope    Scope
}

// Descriptor configures a Service for one entity type.
type Descriptor struct {
	// Name is the singular display name used in error messages.
	Name   string
	Schema query.Schema
	// Visible hides rows that no read or write should see (secret tours,
	// cancelled bookings). Nil means every row is visible.
	Visible Scope
	// ListPreloads and GetPreloads expand relations for list and single
	// reads respectively.
	ListPreloads []Preload
	GetPreloads  []Preload
	// CreateFields and UpdateFields are the JSON keys clients may set.
	CreateFields []string
	UpdateFields []string
	// DuplicateMessage is returned when a unique index rejects a write.
	DuplicateMessage string
}

func (d Descriptor) visible(db *gorm.DB) *gorm.DB {
	if d.Visible == nil {
		return db
	}
	return d.Visible(db)
}

func applyPreloads(db *gorm.DB, preloads []Preload) *gorm.DB {
	for _, p := range preloads {
		if p.Scope != nil {
			db = db.Preload(p.Relation, func(tx *gorm.DB) *gorm.DB { return p.Scope(tx) })
			continue
		}
		db = db.Preload(p.Relation)
	}
	return db
}
