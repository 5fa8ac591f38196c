// Package seed loads and clears development data sets.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

const (
	ToursFile   = "tours.json"
	UsersFile   = "users.json"
	ReviewsFile = "reviews.json"
)

var startDateLayouts = []string{time.RFC3339Nano, "2006-01-02,15:04", "2006-01-02 15:04", "2006-01-02"}

type passwordHasher interface {
	Hash(password string) (string, error)
}

// Counts reports how many rows an import wrote.
type Counts struct {
	Users   int
	Tours   int
	Reviews int
}

// Loader imports data files into the database and wipes them again.
type Loader struct {
	db      *gorm.DB
	hasher  passwordHasher
	ratings reviews.RatingAggregator
	logg    *logger.Logger
}

func NewLoader(db *gorm.DB, hasher passwordHasher, logg *logger.Logger) (*Loader, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Loader{db: db, hasher: hasher, logg: logg}, nil
}

// ref accepts either a uuid "id" or a foreign "_id". Foreign ids are mapped
// to stable name-based uuids so cross references between files still line up.
type ref struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
}

func (r ref) key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.MongoID
}

func resolveID(raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.New()
	}
	if id, err := uuid.Parse(raw); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(raw))
}

type userRecord struct {
	ref
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Photo    string `json:"photo"`
	Password string `json:"password"`
	Active   *bool  `json:"active"`
}

type tourRecord struct {
	ref
	Name          string           `json:"name"`
	Duration      int              `json:"duration"`
	MaxGroupSize  int              `json:"maxGroupSize"`
	Difficulty    string           `json:"difficulty"`
	Price         decimal.Decimal  `json:"price"`
	PriceDiscount *decimal.Decimal `json:"priceDiscount"`
	Summary       string           `json:"summary"`
	Description   string           `json:"description"`
	ImageCover    string           `json:"imageCover"`
	Images        []string         `json:"images"`
	StartDates    []string         `json:"startDates"`
	SecretTour    bool             `json:"secretTour"`
	StartLocation types.GeoPoint   `json:"startLocation"`
	Locations     types.Waypoints  `json:"locations"`
	Guides        []string         `json:"guides"`
}

type reviewRecord struct {
	ref
	Review string `json:"review"`
	Rating float64 `json:"rating"`
	Tour   string `json:"tour"`
	User   string `json:"user"`
}

// Import reads the data files in dir and stores them in one transaction.
// Tour ratings are recomputed from the imported reviews.
func (l *Loader) Import(ctx context.Context, dir string) (Counts, error) {
	var (
		userRows   []userRecord
		tourRows   []tourRecord
		reviewRows []reviewRecord
		counts     Counts
	)
	if err := readJSON(filepath.Join(dir, UsersFile), &userRows); err != nil {
		return counts, err
	}
	if err := readJSON(filepath.Join(dir, ToursFile), &tourRows); err != nil {
		return counts, err
	}
	if err := readJSON(filepath.Join(dir, ReviewsFile), &reviewRows); err != nil {
		return counts, err
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := resource.NewService[models.User](tx, users.Descriptor)
		for i, row := range userRows {
			user, err := l.buildUser(row)
			if err != nil {
				return fmt.Errorf("user %d: %w", i+1, err)
			}
			if err := accounts.Insert(ctx, user); err != nil {
				return fmt.Errorf("user %q: %w", row.Email, err)
			}
			counts.Users++
		}

		catalog := resource.NewService[models.Tour](tx, tours.Descriptor)
		for i, row := range tourRows {
			tour, err := buildTour(row)
			if err != nil {
				return fmt.Errorf("tour %d: %w", i+1, err)
			}
			if err := catalog.Insert(ctx, tour); err != nil {
				return fmt.Errorf("tour %q: %w", row.Name, err)
			}
			for _, guide := range row.Guides {
				if err := tx.Exec("INSERT INTO tour_guides (tour_id, user_id) VALUES (?, ?)", tour.ID, resolveID(guide)).Error; err != nil {
					return fmt.Errorf("tour %q guide %s: %w", row.Name, guide, err)
				}
			}
			counts.Tours++
		}

		written := resource.NewService[models.Review](tx, reviews.Descriptor)
		touched := map[uuid.UUID]struct{}{}
		for i, row := range reviewRows {
			review := &models.Review{
				ID:     resolveID(row.key()),
				Review: row.Review,
				Rating: row.Rating,
				TourID: resolveID(row.Tour),
				UserID: resolveID(row.User),
			}
			if err := written.Insert(ctx, review); err != nil {
				return fmt.Errorf("review %d: %w", i+1, err)
			}
			touched[review.TourID] = struct{}{}
			counts.Reviews++
		}
		for tourID := range touched {
			if err := l.ratings.Recalculate(ctx, tx, tourID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}

	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"users":   counts.Users,
		"tours":   counts.Tours,
		"reviews": counts.Reviews,
	}), "data loaded")
	return counts, nil
}

// Delete removes every booking, review, tour and user.
func (l *Loader) Delete(ctx context.Context) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM tour_guides").Error; err != nil {
			return fmt.Errorf("clear tour guides: %w", err)
		}
		for _, model := range []any{&models.Booking{}, &models.Review{}, &models.Tour{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logg.Info(ctx, "data deleted")
	return nil
}

func (l *Loader) buildUser(row userRecord) (*models.User, error) {
	if row.Password == "" {
		return nil, errors.New("password is required")
	}
	hash, err := l.hasher.Hash(row.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	role := enums.Role(row.Role)
	if role == "" {
		role = enums.RoleUser
	}
	active := true
	if row.Active != nil {
		active = *row.Active
	}
	return &models.User{
		ID:           resolveID(row.key()),
		Name:         row.Name,
		Email:        row.Email,
		Role:         role,
		Photo:        row.Photo,
		PasswordHash: hash,
		Active:       active,
	}, nil
}

func buildTour(row tourRecord) (*models.Tour, error) {
	starts := make(types.TimeList, 0, len(row.StartDates))
	for _, raw := range row.StartDates {
		ts, err := parseStartDate(raw)
		if err != nil {
			return nil, err
		}
		starts = append(starts, ts)
	}
	return &models.Tour{
		ID:            resolveID(row.key()),
		Name:          row.Name,
		Duration:      row.Duration,
		MaxGroupSize:  row.MaxGroupSize,
		Difficulty:    enums.Difficulty(row.Difficulty),
		Price:         row.Price,
		PriceDiscount: row.PriceDiscount,
		Summary:       row.Summary,
		Description:   row.Description,
		ImageCover:    row.ImageCover,
		Images:        types.StringList(row.Images),
		StartDates:    starts,
		SecretTour:    row.SecretTour,
		StartLocation: row.StartLocation,
		Locations:     row.Locations,
	}, nil
}

func parseStartDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range startDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start date %q", raw)
}

func readJSON(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
