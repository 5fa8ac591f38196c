package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSchema = query.NewSchema(
	query.ID("id", "id"),
	query.String("name", "name"),
	query.Number("price", "price"),
	query.Number("duration", "duration"),
	query.String("difficulty", "difficulty"),
	query.Time("createdAt", "created_at"),
	query.Time("updatedAt", "updated_at"),
).HideByDefault("updatedAt")

func testDescriptor() Descriptor {
	return Descriptor{
		Name:   "tour",
		Schema: testSchema,
		Visible: func(db *gorm.DB) *gorm.DB {
			return db.Where("secret_tour = ?", false)
		},
		CreateFields:     []string{"name", "duration", "maxGroupSize", "difficulty", "price", "summary", "imageCover"},
		UpdateFields:     []string{"name", "duration", "price", "summary"},
		DuplicateMessage: "Duplicate field value. Please use another value!",
	}
}

func tourPatch(t *testing.T, name string, price float64) Patch {
	t.Helper()
	p := Patch{}
	for k, v := range map[string]any{
		"name": name, "duration": 5, "maxGroupSize": 10, "difficulty": "easy",
		"price": price, "summary": "A short trip", "imageCover": "cover.jpg",
	} {
		require.NoError(t, p.Set(k, v))
	}
	return p
}

func newTours(t *testing.T) *Service[models.Tour, *models.Tour] {
	return NewService[models.Tour](dbtest.Open(t), testDescriptor())
}

func TestCreateNormalizesAndStores(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	tour, err := svc.Create(ctx, tourPatch(t, "The Forest Hiker", 397))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tour.ID)
	assert.Equal(t, "the-forest-hiker", tour.Slug)
	assert.Equal(t, models.DefaultRatingsAverage, tour.RatingsAverage)

	got, err := svc.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Forest Hiker", got.Name)
}

func TestCreateRejectsUnknownAndInvalidFields(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	p := tourPatch(t, "The Forest Hiker", 397)
	require.NoError(t, p.Set("ratingsAverage", 5))
	_, err := svc.Create(ctx, p)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, []string{"ratingsAverage cannot be set"}, pkgerrors.As(err).Details())

	_, err = svc.Create(ctx, tourPatch(t, "Short", 397))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Details(), "A tour name must have at least 10 characters")

	bad := tourPatch(t, "The Forest Hiker", 397)
	bad["duration"] = json.RawMessage(`"five"`)
	_, err = svc.Create(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateDuplicateName(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, tourPatch(t, "The Sea Explorer", 497))
	require.NoError(t, err)
	_, err = svc.Create(ctx, tourPatch(t, "The Sea Explorer", 597))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey))
	assert.Equal(t, "Duplicate field value. Please use another value!", pkgerrors.As(err).Message())
}

func TestGetMissingAndHidden(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "No tour found with that ID", pkgerrors.As(err).Message())

	tour, err := svc.Create(ctx, tourPatch(t, "The Secret Garden", 100))
	require.NoError(t, err)
	require.NoError(t, svc.DB(ctx).Model(tour).Update("secret_tour", true).Error)

	_, err = svc.Get(ctx, tour.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, tour.ID), pkgerrors.CodeNotFound))
}

func TestListFiltersSortsAndPages(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	for i, name := range []string{"The Forest Hiker", "The Sea Explorer", "The Snow Adventurer", "The City Wanderer"} {
		_, err := svc.Create(ctx, tourPatch(t, name, float64(300+i*200)))
		require.NoError(t, err)
	}

	values, err := url.ParseQuery("price[gte]=500&sort=-price&limit=2")
	require.NoError(t, err)
	params, err := query.Parse(values, testSchema)
	require.NoError(t, err)

	tours, err := svc.List(ctx, nil, params)
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assert.Equal(t, "The City Wanderer", tours[0].Name)
	assert.Equal(t, "The Snow Adventurer", tours[1].Name)

	docs, err := Documents(tours, params, testSchema, nil)
	require.NoError(t, err)
	assert.NotContains(t, docs[0], "updatedAt")
	assert.Equal(t, 900.0, docs[0]["price"])
}

func TestUpdateAppliesAllowedFields(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	tour, err := svc.Create(ctx, tourPatch(t, "The Forest Hiker", 397))
	require.NoError(t, err)

	p := Patch{}
	require.NoError(t, p.Set("name", "The Forest Wanderer"))
	updated, err := svc.Update(ctx, tour.ID, p)
	require.NoError(t, err)
	assert.Equal(t, "the-forest-wanderer", updated.Slug)
	assert.Equal(t, 5, updated.Duration)

	p = Patch{}
	require.NoError(t, p.Set("difficulty", "difficult"))
	_, err = svc.Update(ctx, tour.ID, p)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	p = Patch{}
	require.NoError(t, p.Set("price", -1))
	_, err = svc.Update(ctx, tour.ID, p)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), Patch{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteThenMissing(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	tour, err := svc.Create(ctx, tourPatch(t, "The Forest Hiker", 397))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, tour.ID))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, tour.ID), pkgerrors.CodeNotFound))
}

func TestUsingRollsBackWithTransaction(t *testing.T) {
	svc := newTours(t)
	ctx := context.Background()

	var id uuid.UUID
	err := svc.DB(ctx).Transaction(func(tx *gorm.DB) error {
		tour, err := svc.Using(tx).Create(ctx, tourPatch(t, "The Forest Hiker", 397))
		if err != nil {
			return err
		}
		id = tour.ID
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)

	_, err = svc.Get(ctx, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
