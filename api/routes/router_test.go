package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/auth"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tourbook-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/mailer"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourbook-backend/pkg/security"
	"github.com/angelmondragon/tourbook-backend/pkg/stripe"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]bool{}
	}
	m.revoked[id] = true
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.seen, k)
	}
	return nil
}

type noopFulfiller struct{}

func (noopFulfiller) FulfillCheckout(context.Context, *stripego.CheckoutSession) error { return nil }

type app struct {
	handler http.Handler
	db      *gorm.DB
}

func newApp(t *testing.T, dbPing error) *app {
	t.Helper()
	return newAppWith(t, dbPing, nil)
}

func newAppWith(t *testing.T, dbPing error, tweak func(*Deps)) *app {
	t.Helper()
	db := dbtest.Open(t)
	logg := logger.Nop()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", PublicURL: "http://localhost:3000", BodyLimitKB: 10, CORSOrigins: "*"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "tourbook-test", ExpirationMinutes: 60, CookieExpiresDays: 1},
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		DB: db,
		Hasher: security.NewPasswordHasher(config.PasswordConfig{
			ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32,
		}),
		Revocations: &memoryRevocations{},
		Mailer:      mailer.New(config.MailConfig{}, logg),
		Logger:      logg,
		JWTConfig:   cfg.JWT,
		PublicURL:   cfg.App.PublicURL,
	})
	require.NoError(t, err)

	reviewSvc := reviews.NewService(db)
	bookingSvc, err := bookings.NewService(bookings.ServiceParams{DB: db})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	deps := Deps{
		Config:         cfg,
		Logger:         logg,
		Metrics:        metrics.New(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DB:             stubPinger{err: dbPing},
		Auth:           authSvc,
		Users:          users.NewService(db, reviewSvc.Ratings()),
		Tours:          tours.NewService(db),
		Reviews:        reviewSvc,
		Bookings:       bookingSvc,
	}
	if tweak != nil {
		tweak(&deps)
	}
	return &app{handler: NewRouter(deps), db: db}
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	Results *int            `json:"results"`
	Data    json.RawMessage `json:"data"`
}

func (a *app) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *app) signup(t *testing.T, email string) string {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/v1/users/signup", "", map[string]string{
		"name": "Leo Gillespie", "email": email, "password": "pass1234", "passwordConfirm": "pass1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, env.Token)
	return env.Token
}

func (a *app) promote(t *testing.T, email string, role enums.Role) {
	t.Helper()
	require.NoError(t, a.db.Model(&models.User{}).Where("email = ?", email).Update("role", role).Error)
}

func tourBody(name string, price float64) map[string]any {
	return map[string]any{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 25,
		"difficulty":   "easy",
		"price":        price,
		"summary":      "Breathtaking hike through the Canadian Banff National Park",
		"imageCover":   "tour-1-cover.jpg",
		"startDates":   []string{"2027-04-25T09:00:00Z", "2027-07-20T09:00:00Z"},
		"startLocation": map[string]any{
			"type":        "Point",
			"coordinates": []float64{-115.570154, 51.178456},
			"address":     "224 Banff Ave, Banff, AB, Canada",
		},
	}
}

func dataDoc(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var wrapper struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &wrapper))
	return wrapper.Data
}

func TestHealthRoutes(t *testing.T) {
	a := newApp(t, nil)

	rec, env := a.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)

	rec, _ = a.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newApp(t, context.DeadlineExceeded)
	rec, env = down.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", env.Status)
}

func TestUnknownRouteUsesFailureEnvelope(t *testing.T) {
	a := newApp(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, "Can't find /api/v1/nowhere on this server!", env.Message)
}

func TestSignupThenMe(t *testing.T) {
	a := newApp(t, nil)

	rec, env := a.do(t, http.MethodPost, "/api/v1/users/signup", "", map[string]string{
		"name": "Leo Gillespie", "email": "leo@example.io", "password": "pass1234", "passwordConfirm": "pass1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var jwtCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			jwtCookie = c
		}
	}
	require.NotNil(t, jwtCookie)
	assert.True(t, jwtCookie.HttpOnly)
	assert.Equal(t, env.Token, jwtCookie.Value)

	rec, env = a.do(t, http.MethodGet, "/api/v1/users/me", env.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := dataDoc(t, env)
	assert.Equal(t, "leo@example.io", me["email"])
	assert.Equal(t, "user", me["role"])
	assert.NotContains(t, me, "passwordHash")
}

func TestProtectedRoutesRejectAnonymousCallers(t *testing.T) {
	a := newApp(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in! Please log in to get access.", env.Message)

	rec, _ = a.do(t, http.MethodGet, "/api/v1/bookings/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newApp(t, nil)
	token := a.signup(t, "ana@example.io")

	rec, _ := a.do(t, http.MethodGet, "/api/v1/users/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" && c.Value == "loggedOut" {
			cleared = true
		}
	}
	assert.True(t, cleared)

	rec, _ = a.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTourWritesRequireStaff(t *testing.T) {
	a := newApp(t, nil)
	token := a.signup(t, "staff@example.io")

	rec, env := a.do(t, http.MethodPost, "/api/v1/tours", token, tourBody("The Forest Hiker", 397))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to perform this action", env.Message)

	a.promote(t, "staff@example.io", enums.RoleLeadGuide)
	rec, env = a.do(t, http.MethodPost, "/api/v1/tours", token, tourBody("The Forest Hiker", 397))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := dataDoc(t, env)
	assert.Equal(t, "the-forest-hiker", created["slug"])
	assert.InDelta(t, 5.0/7.0, created["durationWeeks"], 0.0001)

	rec, env = a.do(t, http.MethodGet, "/api/v1/tours/"+created["id"].(string), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The Forest Hiker", dataDoc(t, env)["name"])
}

func TestTopCheapAliasShapesTheList(t *testing.T) {
	a := newApp(t, nil)
	token := a.signup(t, "admin@example.io")
	a.promote(t, "admin@example.io", enums.RoleAdmin)

	for _, tour := range []struct {
		name  string
		price float64
	}{{"The Sea Explorer", 497}, {"The Snow Adventurer", 997}, {"The City Wanderer", 1197}} {
		rec, _ := a.do(t, http.MethodPost, "/api/v1/tours", token, tourBody(tour.name, tour.price))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, env := a.do(t, http.MethodGet, "/api/v1/tours/top-5-cheap", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, env.Results)
	assert.Equal(t, 3, *env.Results)

	var list struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Data, 3)
	assert.Equal(t, "The Sea Explorer", list.Data[0]["name"])
	assert.NotContains(t, list.Data[0], "imageCover")
	assert.Contains(t, list.Data[0], "id")
}

func TestNestedReviewRoutes(t *testing.T) {
	a := newApp(t, nil)
	adminToken := a.signup(t, "boss@example.io")
	a.promote(t, "boss@example.io", enums.RoleAdmin)
	rec, env := a.do(t, http.MethodPost, "/api/v1/tours", adminToken, tourBody("The Park Camper", 1497))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tourID := dataDoc(t, env)["id"].(string)

	userToken := a.signup(t, "reviewer@example.io")
	rec, env = a.do(t, http.MethodPost, "/api/v1/tours/"+tourID+"/reviews", userToken, map[string]any{
		"review": "Unforgettable trip", "rating": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, tourID, dataDoc(t, env)["tourId"])

	rec, _ = a.do(t, http.MethodPost, "/api/v1/tours/"+tourID+"/reviews", userToken, map[string]any{
		"review": "Again", "rating": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = a.do(t, http.MethodGet, "/api/v1/tours/"+tourID+"/reviews", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Results)
	assert.Equal(t, 1, *env.Results)

	rec, env = a.do(t, http.MethodGet, "/api/v1/tours/"+tourID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tour := dataDoc(t, env)
	assert.EqualValues(t, 1, tour["ratingsQuantity"])
	assert.EqualValues(t, 4, tour["ratingsAverage"])
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	a := newApp(t, nil)
	a.do(t, http.MethodGet, "/health/live", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tourbook_http_requests_total")
}

func TestStripeWebhookBypassesAPIRateLimit(t *testing.T) {
	a := newAppWith(t, nil, func(d *Deps) {
		d.Config.RateLimit.APILimit = 1
		d.Config.RateLimit.APIWindow = time.Hour
		d.Limiter = &countingLimiter{}

		client, err := stripe.NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_router", Secret: "whsec_router"}, nil)
		require.NoError(t, err)
		guard, err := idempotency.NewManager(&memoryIdempotency{}, time.Minute)
		require.NoError(t, err)
		svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Bookings: noopFulfiller{}})
		require.NoError(t, err)
		d.StripeClient, d.StripeGuard, d.StripeWebhook = client, guard, svc
	})

	// unsigned deliveries are rejected by the handler, never by the limiter
	for i := 0; i < 3; i++ {
		rec, _ := a.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", map[string]string{"id": "evt_1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "delivery %d", i)
	}

	rec, _ := a.do(t, http.MethodGet, "/api/v1/tours", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env := a.do(t, http.MethodGet, "/api/v1/tours", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "fail", env.Status)
}
