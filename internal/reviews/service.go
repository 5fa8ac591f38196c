package reviews

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	tourFieldKey = "tourId"
	userFieldKey = "userId"
)

// Actor is the authenticated caller of a review operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}

// Service runs review writes together with the rating recalculation they
// trigger.
type Service struct {
	db      *gorm.DB
	crud    *resource.Service[models.Review, *models.Review]
	ratings RatingAggregator
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, crud: resource.NewService[models.Review](db, Descriptor)}
}

// Ratings exposes the aggregator for callers that delete reviews in bulk.
func (s *Service) Ratings() RatingAggregator {
	return s.ratings
}

// List returns reviews, limited to tourID when set.
func (s *Service) List(ctx context.Context, tourID *uuid.UUID, params query.Params) ([]models.Review, error) {
	var scope resource.Scope
	if tourID != nil {
		id := *tourID
		scope = func(db *gorm.DB) *gorm.DB { return db.Where("reviews.tour_id = ?", id) }
	}
	return s.crud.List(ctx, scope, params)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return s.crud.Get(ctx, id)
}

// Create stores the caller's review of a tour. The tour comes from the
// nested route when present, otherwise from the body; the author is always
// the caller.
func (s *Service) Create(ctx context.Context, actor Actor, routeTourID *uuid.UUID, patch resource.Patch) (*models.Review, error) {
	tourID, err := resolveTour(routeTourID, patch)
	if err != nil {
		return nil, err
	}
	patch.Take(userFieldKey)

	rec := &models.Review{TourID: tourID, UserID: actor.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tourID != uuid.Nil {
			if err := requireTour(ctx, tx, tourID); err != nil {
				return err
			}
		}
		if _, err := s.crud.Using(tx).CreateFrom(ctx, rec, patch); err != nil {
			return err
		}
		return s.ratings.Recalculate(ctx, tx, tourID)
	})
	if err != nil {
		return nil, err
	}
	return s.crud.Get(ctx, rec.ID)
}

// Update edits a review's text or rating. Only its author or an admin may
// do so.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, patch resource.Patch) (*models.Review, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crud := s.crud.Using(tx)
		existing, err := crud.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, existing); err != nil {
			return err
		}
		if _, err := crud.Update(ctx, id, patch); err != nil {
			return err
		}
		return s.ratings.Recalculate(ctx, tx, existing.TourID)
	})
	if err != nil {
		return nil, err
	}
	return s.crud.Get(ctx, id)
}

// Delete removes a review. Only its author or an admin may do so.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crud := s.crud.Using(tx)
		existing, err := crud.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, existing); err != nil {
			return err
		}
		if err := crud.Delete(ctx, id); err != nil {
			return err
		}
		return s.ratings.Recalculate(ctx, tx, existing.TourID)
	})
}

func resolveTour(routeTourID *uuid.UUID, patch resource.Patch) (uuid.UUID, error) {
	raw, ok := patch.Take(tourFieldKey)
	if routeTourID != nil {
		return *routeTourID, nil
	}
	if !ok {
		return uuid.Nil, nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(raw, &id); err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid tour id").WithDetails([]string{"tourId must be a valid id"})
	}
	return id, nil
}

func requireTour(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Tour{}).
		Where("id = ? AND secret_tour = ?", tourID, false).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup tour")
	}
	if count == 0 {
		return resource.NotFound("tour")
	}
	return nil
}

func authorize(actor Actor, review *models.Review) error {
	if actor.Role == enums.RoleAdmin || review.UserID == actor.ID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "You can only change your own reviews")
}
