package tours

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	guidesKey = "guides"
	secretKey = "secretTour"
)

// Service manages the tour catalog.
type Service struct {
	db   *gorm.DB
	crud *resource.Service[models.Tour, *models.Tour]
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, crud: resource.NewService[models.Tour](db, Descriptor)}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	return s.crud.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, params query.Params) ([]models.Tour, error) {
	return s.crud.List(ctx, nil, params)
}

// Create adds a tour. The optional guides key holds user ids; secretTour
// hides the tour from every read.
func (s *Service) Create(ctx context.Context, patch resource.Patch) (*models.Tour, error) {
	guides, err := takeGuides(patch)
	if err != nil {
		return nil, err
	}
	rec := &models.Tour{}
	if err := takeSecret(patch, rec); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.crud.Using(tx).CreateFrom(ctx, rec, patch); err != nil {
			return err
		}
		if guides == nil {
			return nil
		}
		return replaceGuides(ctx, tx, rec, guides)
	})
	if err != nil {
		return nil, err
	}
	if rec.SecretTour {
		return rec, nil
	}
	return s.crud.Get(ctx, rec.ID)
}

// Update edits a visible tour. Ratings are never writable here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch resource.Patch) (*models.Tour, error) {
	guides, err := takeGuides(patch)
	if err != nil {
		return nil, err
	}

	var updated *models.Tour
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crud := s.crud.Using(tx)
		rec, err := crud.Update(ctx, id, patch)
		if err != nil {
			return err
		}
		if guides != nil {
			if err := replaceGuides(ctx, tx, rec, guides); err != nil {
				return err
			}
			rec, err = crud.Get(ctx, id)
			if err != nil {
				return err
			}
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a tour with its reviews and guide links.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crud := s.crud.Using(tx)
		rec, err := crud.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("tour_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete tour reviews")
		}
		if err := tx.Model(rec).Association("Guides").Clear(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unlink guides")
		}
		return crud.Delete(ctx, id)
	})
}

func takeGuides(patch resource.Patch) ([]uuid.UUID, error) {
	raw, ok := patch.Take(guidesKey)
	if !ok {
		return nil, nil
	}
	ids := []uuid.UUID{}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data").
			WithDetails([]string{"guides must be a list of user ids"})
	}
	return ids, nil
}

func takeSecret(patch resource.Patch, rec *models.Tour) error {
	raw, ok := patch.Take(secretKey)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, &rec.SecretTour); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data").
			WithDetails([]string{"secretTour must be a boolean"})
	}
	return nil
}

// replaceGuides links the tour to exactly the given users, each of whom must
// be an active guide or lead guide.
func replaceGuides(ctx context.Context, tx *gorm.DB, tour *models.Tour, ids []uuid.UUID) error {
	var guides []models.User
	if len(ids) > 0 {
		err := tx.WithContext(ctx).
			Where(users.ActiveScope).
			Where("id IN ?", ids).
			Find(&guides).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guides")
		}
	}

	found := make(map[uuid.UUID]models.User, len(guides))
	for _, g := range guides {
		found[g.ID] = g
	}
	var problems []string
	for _, id := range ids {
		g, ok := found[id]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("No user found with id %s", id))
		case g.Role != enums.RoleGuide && g.Role != enums.RoleLeadGuide:
			problems = append(problems, fmt.Sprintf("User %s is not a guide", id))
		}
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data").WithDetails(problems)
	}

	if err := tx.WithContext(ctx).Model(tour).Association("Guides").Replace(guides); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link guides")
	}
	return nil
}
