// Package repo holds the handle plumbing shared by the GORM repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Scope narrows a query. Descriptors and repositories use scopes for their
// default visibility rules.
type Scope = func(*gorm.DB) *gorm.DB

// Base carries the handle a repository runs on: the shared pool, or a
// transaction after Bind.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle bound to ctx. A nil ctx returns it untouched.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Scoped is DB with scopes applied in order. Nil scopes are skipped.
func (b Base) Scoped(ctx context.Context, scopes ...Scope) *gorm.DB {
	q := b.DB(ctx)
	for _, scope := range scopes {
		if scope != nil {
			q = scope(q)
		}
	}
	return q
}

// Bind runs the repository on tx so it joins the caller's transaction.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
