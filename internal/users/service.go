package users

import (
	"context"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const passwordRouteMessage = "This route is not for password updates. Please use /updateMyPassword."

var passwordFields = []string{"password", "passwordConfirm", "passwordCurrent"}

// selfServiceFields are the only keys /updateMe honours; others are dropped.
var selfServiceFields = []string{"name", "email"}

// RatingRefresher recomputes a tour's rating summary inside tx.
type RatingRefresher interface {
	Recalculate(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) error
}

// Service handles account self-service and admin management.
type Service struct {
	db      *gorm.DB
	crud    *resource.Service[models.User, *models.User]
	users   *Repository
	ratings RatingRefresher
}

// NewService builds the users service. ratings may be nil, in which case
// deleting a user leaves tour rating summaries untouched.
func NewService(db *gorm.DB, ratings RatingRefresher) *Service {
	return &Service{
		db:      db,
		crud:    resource.NewService[models.User](db, Descriptor),
		users:   NewRepository(db),
		ratings: ratings,
	}
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.crud.Get(ctx, userID)
}

// UpdateMe changes the caller's name or email.
func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, patch resource.Patch) (*models.User, error) {
	if err := rejectPasswords(patch); err != nil {
		return nil, err
	}
	filtered := resource.Patch{}
	for _, key := range selfServiceFields {
		if raw, ok := patch[key]; ok {
			filtered[key] = raw
		}
	}
	return s.crud.Update(ctx, userID, filtered)
}

// DeleteMe deactivates the caller's account.
func (s *Service) DeleteMe(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate user")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.crud.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, params query.Params) ([]models.User, error) {
	return s.crud.List(ctx, nil, params)
}

// Update lets an admin edit a profile. Credentials are never changed here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch resource.Patch) (*models.User, error) {
	if err := rejectPasswords(patch); err != nil {
		return nil, err
	}
	return s.crud.Update(ctx, id, patch)
}

// Delete removes an account. Its reviews and bookings go with it, so the
// ratings of every tour it reviewed are recomputed in the same transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tourIDs []uuid.UUID
		if err := tx.Model(&models.Review{}).Where("user_id = ?", id).Distinct().Pluck("tour_id", &tourIDs).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviewed tours")
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user reviews")
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Booking{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user bookings")
		}
		if err := tx.Exec("DELETE FROM tour_guides WHERE user_id = ?", id).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unlink guide")
		}
		if err := s.crud.Using(tx).Delete(ctx, id); err != nil {
			return err
		}
		if s.ratings == nil {
			return nil
		}
		for _, tourID := range tourIDs {
			if err := s.ratings.Recalculate(ctx, tx, tourID); err != nil {
				return err
			}
		}
		return nil
	})
}

func rejectPasswords(patch resource.Patch) error {
	for _, key := range passwordFields {
		if patch.Has(key) {
			return pkgerrors.New(pkgerrors.CodeValidation, passwordRouteMessage).WithDetails([]string{passwordRouteMessage})
		}
	}
	return nil
}
