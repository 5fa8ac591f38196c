package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

type prefixHasher struct{}

func (prefixHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

const (
	usersJSON = `[
  {"_id":"5c8a1d5b0190b214360dc057","name":"Jonas Schmedtmann","email":"ADMIN@natours.io","role":"admin","password":"test1234"},
  {"_id":"5c8a21d02f8fb814b56fa189","name":"Steve T. Scaife","email":"steve@example.com","role":"lead-guide","password":"test1234"},
  {"_id":"5c8a1dfa2f8fb814b56fa181","name":"Lourdes Browning","email":"loulou@example.com","password":"test1234"},
  {"_id":"5c8a1e1a2f8fb814b56fa182","name":"Sophie Louise Hart","email":"sophie@example.com","password":"test1234","active":false}
]`
	toursJSON = `[
  {
    "_id":"5c88fa8cf4afda39709c2955",
    "name":"The Sea Explorer",
    "duration":7,
    "maxGroupSize":15,
    "difficulty":"medium",
    "price":497,
    "summary":"Exploring the jaw-dropping US east coast by foot and by boat",
    "imageCover":"tour-2-cover.jpg",
    "images":["tour-2-1.jpg"],
    "startDates":["2021-06-19T09:00:00.000Z","2021-07-20,10:00","2021-08-18"],
    "startLocation":{"type":"Point","coordinates":[-80.185942,25.774772],"address":"301 Biscayne Blvd, Miami, FL 33132, USA","description":"Miami, USA"},
    "locations":[{"type":"Point","coordinates":[-80.128473,25.781842],"description":"Lummus Park Beach","day":1}],
    "guides":["5c8a21d02f8fb814b56fa189"]
  }
]`
	reviewsJSON = `[
  {"_id":"5c8a355b14eb5c17645c9109","review":"Cras mollis nisi parturient mi nec aliquet.","rating":5,"tour":"5c88fa8cf4afda39709c2955","user":"5c8a1dfa2f8fb814b56fa181"},
  {"_id":"5c8a379a14eb5c17645c9110","review":"Tempus curabitur faucibus auctor.","rating":4,"tour":"5c88fa8cf4afda39709c2955","user":"5c8a1e1a2f8fb814b56fa182"}
]`
)

func writeDataSet(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func fullDataSet(t *testing.T) string {
	return writeDataSet(t, map[string]string{
		UsersFile:   usersJSON,
		ToursFile:   toursJSON,
		ReviewsFile: reviewsJSON,
	})
}

func TestImportLoadsAllFilesAndRecomputesRatings(t *testing.T) {
	db := dbtest.Open(t)
	loader, err := NewLoader(db, prefixHasher{}, nil)
	require.NoError(t, err)

	counts, err := loader.Import(context.Background(), fullDataSet(t))
	require.NoError(t, err)
	assert.Equal(t, Counts{Users: 4, Tours: 1, Reviews: 2}, counts)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@natours.io").Take(&admin).Error)
	assert.Equal(t, enums.RoleAdmin, admin.Role)
	assert.Equal(t, "hashed:test1234", admin.PasswordHash)
	assert.True(t, admin.Active)
	assert.Equal(t, resolveID("5c8a1d5b0190b214360dc057"), admin.ID)

	var inactive models.User
	require.NoError(t, db.Where("email = ?", "sophie@example.com").Take(&inactive).Error)
	assert.False(t, inactive.Active)

	var tour models.Tour
	require.NoError(t, db.Preload("Guides").Take(&tour, "id = ?", resolveID("5c88fa8cf4afda39709c2955")).Error)
	assert.Equal(t, "the-sea-explorer", tour.Slug)
	assert.Equal(t, 2, tour.RatingsQuantity)
	assert.InDelta(t, 4.5, tour.RatingsAverage, 0.001)
	assert.Len(t, tour.StartDates, 3)
	assert.InDelta(t, 25.774772, tour.StartLat, 1e-6)
	require.Len(t, tour.Guides, 1)
	assert.Equal(t, "steve@example.com", tour.Guides[0].Email)
}

func TestImportRollsBackOnBadRecord(t *testing.T) {
	db := dbtest.Open(t)
	loader, err := NewLoader(db, prefixHasher{}, nil)
	require.NoError(t, err)

	dir := writeDataSet(t, map[string]string{
		UsersFile:   usersJSON,
		ToursFile:   `[{"name":"short","duration":1}]`,
		ReviewsFile: `[]`,
	})
	_, err = loader.Import(context.Background(), dir)
	require.Error(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestImportReportsMissingFile(t *testing.T) {
	db := dbtest.Open(t)
	loader, err := NewLoader(db, prefixHasher{}, nil)
	require.NoError(t, err)

	dir := writeDataSet(t, map[string]string{UsersFile: usersJSON})
	_, err = loader.Import(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ToursFile)
}

func TestDeleteClearsEverything(t *testing.T) {
	db := dbtest.Open(t)
	loader, err := NewLoader(db, prefixHasher{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = loader.Import(ctx, fullDataSet(t))
	require.NoError(t, err)
	require.NoError(t, loader.Delete(ctx))

	for _, model := range []any{&models.User{}, &models.Tour{}, &models.Review{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
	var guides int64
	require.NoError(t, db.Table("tour_guides").Count(&guides).Error)
	assert.Zero(t, guides)
}

func TestResolveIDKeepsUUIDsAndMapsForeignIDs(t *testing.T) {
	raw := "0b8e3a0e-7c1b-4a4e-9a53-8d2b2a1f6b11"
	assert.Equal(t, raw, resolveID(raw).String())
	assert.Equal(t, resolveID("abc"), resolveID("abc"))
	assert.NotEqual(t, resolveID("abc"), resolveID("abd"))
}

func TestParseStartDateLayouts(t *testing.T) {
	for _, raw := range []string{"2021-06-19T09:00:00.000Z", "2021-07-20,10:00", "2021-08-18"} {
		_, err := parseStartDate(raw)
		assert.NoError(t, err, raw)
	}
	_, err := parseStartDate("next tuesday")
	assert.Error(t, err)
}
