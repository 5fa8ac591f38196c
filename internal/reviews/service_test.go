package reviews

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	svc  *Service
	tour *models.Tour
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	tour := &models.Tour{
		ID:             uuid.New(),
		Name:           "The Forest Hiker",
		Slug:           "the-forest-hiker",
		Duration:       5,
		MaxGroupSize:   25,
		Difficulty:     enums.DifficultyEasy,
		RatingsAverage: models.DefaultRatingsAverage,
		Price:          decimal.NewFromInt(397),
		Summary:        "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:     "tour-1-cover.jpg",
		StartLocation:  types.GeoPoint{Type: "Point", Coordinates: [2]float64{-115.570154, 51.178456}},
	}
	require.NoError(t, db.Create(tour).Error)
	return fixture{db: db, svc: NewService(db), tour: tour}
}

func (f fixture) user(t *testing.T, role enums.Role) Actor {
	t.Helper()
	u := &models.User{
		ID:           uuid.New(),
		Name:         "Reviewer",
		Email:        uuid.NewString() + "@example.com",
		Role:         role,
		Photo:        models.DefaultUserPhoto,
		PasswordHash: "hash",
		Active:       true,
	}
	require.NoError(t, f.db.Create(u).Error)
	return Actor{ID: u.ID, Role: role}
}

func (f fixture) ratings(t *testing.T) (int, float64) {
	t.Helper()
	var tour models.Tour
	require.NoError(t, f.db.Take(&tour, "id = ?", f.tour.ID).Error)
	return tour.RatingsQuantity, tour.RatingsAverage
}

func reviewPatch(t *testing.T, text string, rating float64) resource.Patch {
	t.Helper()
	p := resource.Patch{}
	require.NoError(t, p.Set("review", text))
	require.NoError(t, p.Set("rating", rating))
	return p
}

func TestCreateRecomputesRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, rating := range []float64{5, 4, 4} {
		_, err := f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", rating))
		require.NoError(t, err)
	}

	qty, avg := f.ratings(t)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 4.3, avg)
}

func TestCreateTakesTourFromBodyAndIgnoresClientUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, enums.RoleUser)
	other := f.user(t, enums.RoleUser)

	p := reviewPatch(t, "Lovely", 5)
	require.NoError(t, p.Set("tourId", f.tour.ID))
	require.NoError(t, p.Set("userId", other.ID))

	review, err := f.svc.Create(ctx, author, nil, p)
	require.NoError(t, err)
	assert.Equal(t, f.tour.ID, review.TourID)
	assert.Equal(t, author.ID, review.UserID)
	require.NotNil(t, review.User)
	assert.Equal(t, "Reviewer", review.User.Name)
	assert.Empty(t, review.User.Email)
}

func TestCreateRejectsMissingOrUnknownTour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, enums.RoleUser)

	_, err := f.svc.Create(ctx, author, nil, reviewPatch(t, "Lovely", 5))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Details(), "Review must belong to a tour.")

	missing := uuid.New()
	_, err = f.svc.Create(ctx, author, &missing, reviewPatch(t, "Lovely", 5))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(ctx, author, &f.tour.ID, reviewPatch(t, "Lovely", 6))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConcurrentDuplicateReviewsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, enums.RoleUser)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	patches := []resource.Patch{reviewPatch(t, "Lovely", 5), reviewPatch(t, "Lovely", 5)}
	for _, p := range patches {
		wg.Add(1)
		go func(p resource.Patch) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, author, &f.tour.ID, p)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)

	qty, _ := f.ratings(t)
	assert.Equal(t, 1, qty)
}

func TestUpdateAndDeleteRequireOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, enums.RoleUser)
	stranger := f.user(t, enums.RoleUser)
	admin := f.user(t, enums.RoleAdmin)

	review, err := f.svc.Create(ctx, author, &f.tour.ID, reviewPatch(t, "Lovely", 5))
	require.NoError(t, err)

	p := resource.Patch{}
	require.NoError(t, p.Set("rating", 1))
	_, err = f.svc.Update(ctx, stranger, review.ID, p)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	updated, err := f.svc.Update(ctx, author, review.ID, p)
	require.NoError(t, err)
	assert.Equal(t, 1.0, updated.Rating)
	_, avg := f.ratings(t)
	assert.Equal(t, 1.0, avg)

	move := resource.Patch{}
	require.NoError(t, move.Set("tourId", uuid.New()))
	_, err = f.svc.Update(ctx, author, review.ID, move)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, stranger, review.ID), pkgerrors.CodeForbidden))
	require.NoError(t, f.svc.Delete(ctx, admin, review.ID))

	qty, avg := f.ratings(t)
	assert.Equal(t, 0, qty)
	assert.Equal(t, models.DefaultRatingsAverage, avg)

	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, admin, review.ID), pkgerrors.CodeNotFound))
}

func TestListScopesToTour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", 5))
	require.NoError(t, err)

	params, err := query.Parse(nil, Schema)
	require.NoError(t, err)

	scoped, err := f.svc.List(ctx, &f.tour.ID, params)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	other := uuid.New()
	none, err := f.svc.List(ctx, &other, params)
	require.NoError(t, err)
	assert.Empty(t, none)

	docs, err := resource.Documents(scoped, params, Schema, Present)
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", docs[0]["user"].(map[string]any)["name"])
}

func TestCreateAcceptsFractionalRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	half, err := f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", 4.5))
	require.NoError(t, err)
	assert.Equal(t, 4.5, half.Rating)
	_, err = f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", 5))
	require.NoError(t, err)

	qty, avg := f.ratings(t)
	assert.Equal(t, 2, qty)
	assert.Equal(t, 4.8, avg)

	_, err = f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", 5.5))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSummarizeRoundsToOneDecimal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, rating := range []float64{5, 5, 4} {
		_, err := f.svc.Create(ctx, f.user(t, enums.RoleUser), &f.tour.ID, reviewPatch(t, "Lovely", rating))
		require.NoError(t, err)
	}

	summary, err := RatingAggregator{}.Summarize(ctx, f.db, f.tour.ID)
	require.NoError(t, err)
	assert.Equal(t, Summary{Quantity: 3, Average: 4.7}, summary)
}
