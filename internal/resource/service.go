package resource

import (
	"context"

	"github.com/angelmondragon/tourbook-backend/internal/repo"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record constrains PT to a pointer to T that satisfies models.Entity.
type Record[T any] interface {
	*T
	models.Entity
}

// Service runs the generic CRUD operations for one entity type.
type Service[T any, PT Record[T]] struct {
	base repo.Base
	desc Descriptor
}

// NewService binds a descriptor to a connection.
func NewService[T any, PT Record[T]](db *gorm.DB, desc Descriptor) *Service[T, PT] {
	return &Service[T, PT]{base: repo.NewBase(db), desc: desc}
}

// Using returns a copy of the service that runs on tx.
func (s *Service[T, PT]) Using(tx *gorm.DB) *Service[T, PT] {
	return &Service[T, PT]{base: s.base.Bind(tx), desc: s.desc}
}

// Descriptor exposes the configuration the service was built with.
func (s *Service[T, PT]) Descriptor() Descriptor {
	return s.desc
}

// DB returns the underlying handle bound to ctx.
func (s *Service[T, PT]) DB(ctx context.Context) *gorm.DB {
	return s.base.DB(ctx)
}

// Prepare normalizes rec and runs its validation rules.
func Prepare[PT models.Entity](rec PT) error {
	if n, ok := any(rec).(models.Normalizer); ok {
		n.Normalize()
	}
	if err := rec.Validate(); err != nil {
		return Invalid(err)
	}
	return nil
}

// Create builds a record from client fields and inserts it.
func (s *Service[T, PT]) Create(ctx context.Context, patch Patch) (PT, error) {
	return s.CreateFrom(ctx, PT(new(T)), patch)
}

// CreateFrom overlays client fields on rec, which may carry server
// defaults, and inserts it.
func (s *Service[T, PT]) CreateFrom(ctx context.Context, rec PT, patch Patch) (PT, error) {
	if err := patch.restrict(s.desc.CreateFields); err != nil {
		return nil, err
	}
	if err := patch.applyTo(rec); err != nil {
		return nil, err
	}
	if err := s.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert validates and stores a record built by the server.
func (s *Service[T, PT]) Insert(ctx context.Context, rec PT) error {
	if err := Prepare[PT](rec); err != nil {
		return err
	}
	if rec.GetID() == uuid.Nil {
		rec.SetID(uuid.New())
	}
	err := s.base.DB(ctx).Omit(clause.Associations).Create(rec).Error
	return s.desc.translate(err, "create")
}

// Get returns one visible record with the single-read expansions applied.
func (s *Service[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	q := applyPreloads(s.base.Scoped(ctx, s.desc.visible), s.desc.GetPreloads)
	return s.take(q, id)
}

// Load returns one visible record without expansions.
func (s *Service[T, PT]) Load(ctx context.Context, id uuid.UUID) (PT, error) {
	return s.take(s.base.Scoped(ctx, s.desc.visible), id)
}

func (s *Service[T, PT]) take(q *gorm.DB, id uuid.UUID) (PT, error) {
	if id == uuid.Nil {
		return nil, NotFound(s.desc.Name)
	}
	rec := PT(new(T))
	if err := q.Where(idEq(id)).Take(rec).Error; err != nil {
		return nil, s.desc.translate(err, "load")
	}
	return rec, nil
}

// List returns the visible records matching scope and the shaped query.
func (s *Service[T, PT]) List(ctx context.Context, scope Scope, params query.Params) ([]T, error) {
	q := s.base.Scoped(ctx, s.desc.visible).Model(new(T))
	if scope != nil {
		q = scope(q)
	}
	q = query.Apply(applyPreloads(q, s.desc.ListPreloads), params)

	var out []T
	if err := q.Find(&out).Error; err != nil {
		return nil, s.desc.translate(err, "list")
	}
	return out, nil
}

// Find returns every visible record matching scope, with list expansions
// and without query shaping.
func (s *Service[T, PT]) Find(ctx context.Context, scope Scope) ([]T, error) {
	q := applyPreloads(s.base.Scoped(ctx, s.desc.visible).Model(new(T)), s.desc.ListPreloads)
	if scope != nil {
		q = scope(q)
	}
	var out []T
	if err := q.Find(&out).Error; err != nil {
		return nil, s.desc.translate(err, "list")
	}
	return out, nil
}

// Update applies client fields to a visible record and returns the stored
// result with single-read expansions.
func (s *Service[T, PT]) Update(ctx context.Context, id uuid.UUID, patch Patch) (PT, error) {
	if err := patch.restrict(s.desc.UpdateFields); err != nil {
		return nil, err
	}
	rec, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.applyTo(rec); err != nil {
		return nil, err
	}
	rec.SetID(id)
	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Save validates and writes every column of an existing record.
func (s *Service[T, PT]) Save(ctx context.Context, rec PT) error {
	if err := Prepare[PT](rec); err != nil {
		return err
	}
	err := s.base.DB(ctx).Omit(clause.Associations).Save(rec).Error
	return s.desc.translate(err, "update")
}

// Delete removes a visible record.
func (s *Service[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.base.Scoped(ctx, s.desc.visible).Where(idEq(id)).Delete(new(T))
	if res.Error != nil {
		return s.desc.translate(res.Error, "delete")
	}
	if res.RowsAffected == 0 {
		return NotFound(s.desc.Name)
	}
	return nil
}

func idEq(id uuid.UUID) clause.Eq {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}
}
