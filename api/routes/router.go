package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/tourbook-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/tourbook-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/internal/auth"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tourbook-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
	"github.com/angelmondragon/tourbook-backend/pkg/stripe"
)

// Deps is everything the router hands to middleware and controllers.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics; the route is skipped when nil.
	MetricsHandler http.Handler

	DB      controllers.Pinger
	Redis   controllers.Pinger
	Limiter redis.RateLimiter

	Auth     auth.Service
	Users    *users.Service
	Tours    *tours.Service
	Reviews  *reviews.Service
	Bookings *bookings.Service

	// The Stripe webhook is mounted only when all three are set.
	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	StripeGuard   *idempotency.Manager
}

var (
	staff      = []string{string(enums.RoleAdmin), string(enums.RoleLeadGuide)}
	tourCrew   = []string{string(enums.RoleAdmin), string(enums.RoleLeadGuide), string(enums.RoleGuide)}
	reviewers  = []string{string(enums.RoleAdmin), string(enums.RoleUser)}
	adminsOnly = []string{string(enums.RoleAdmin)}
)

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Can't find %s on this server!", req.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Can't find %s %s on this server!", req.Method, req.URL.Path)))
	})

	if cfg.App.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.Debug(!cfg.App.IsProd()),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["database"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	protect := middleware.Protect(deps.Auth, logg)
	restrict := func(roles []string) func(http.Handler) http.Handler {
		return middleware.RestrictTo(logg, roles...)
	}

	r.Route("/api", func(r chi.Router) {
		// Outside the per-IP limiter: Stripe delivers from a few shared addresses.
		if deps.StripeClient != nil && deps.StripeWebhook != nil && deps.StripeGuard != nil {
			r.Post("/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeGuard, logg))
		}

		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(middleware.RateLimit(deps.Limiter, cfg.RateLimit.APILimit, cfg.RateLimit.APIWindow, logg))
			}
			r.Use(middleware.BodyLimit(cfg.App.BodyLimit()))

			r.Route("/v1/users", func(r chi.Router) {
				userRoutes(r, deps, protect, restrict)
			})
			r.Route("/v1/tours", func(r chi.Router) {
				tourRoutes(r, deps, protect, restrict)
			})
			r.Route("/v1/reviews", func(r chi.Router) {
				reviewRoutes(r, deps, protect, restrict)
			})
			r.Route("/v1/bookings", func(r chi.Router) {
				bookingRoutes(r, deps, protect, restrict)
			})
		})
	})

	return r
}

type gate = func(http.Handler) http.Handler

func userRoutes(r chi.Router, deps Deps, protect gate, restrict func([]string) gate) {
	cfg, logg := deps.Config, deps.Logger
	cookie := controllers.SessionCookie{TTL: cfg.JWT.CookieTTL(), Secure: cfg.App.IsProd()}
	loginPolicy := middleware.CredentialPolicy{
		Name:       "login",
		Window:     cfg.RateLimit.LoginWindow,
		IPLimit:    cfg.RateLimit.LoginIPLimit,
		EmailLimit: cfg.RateLimit.LoginEmailLimit,
	}
	signupPolicy := middleware.CredentialPolicy{
		Name:       "signup",
		Window:     cfg.RateLimit.SignupWindow,
		IPLimit:    cfg.RateLimit.SignupIPLimit,
		EmailLimit: cfg.RateLimit.SignupEmailLimit,
	}
	resetPolicy := loginPolicy
	resetPolicy.Name = "forgot-password"

	credentialLimit := func(policy middleware.CredentialPolicy) gate {
		if deps.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.CredentialRateLimit(policy, deps.Limiter, logg)
	}

	r.With(credentialLimit(signupPolicy)).Post("/signup", controllers.AuthSignup(deps.Auth, cookie, logg))
	r.With(credentialLimit(loginPolicy)).Post("/login", controllers.AuthLogin(deps.Auth, cookie, logg))
	r.With(middleware.IsLoggedIn(deps.Auth, logg)).Get("/logout", controllers.AuthLogout(deps.Auth, cookie, logg))
	r.With(credentialLimit(resetPolicy)).Post("/forgotPassword", controllers.AuthForgotPassword(deps.Auth, logg))
	r.Patch("/resetPassword/{token}", controllers.AuthResetPassword(deps.Auth, cookie, logg))

	h := controllers.NewUsers(deps.Users, logg)
	r.Group(func(r chi.Router) {
		r.Use(protect)
		r.Patch("/updateMyPassword", controllers.AuthUpdatePassword(deps.Auth, cookie, logg))
		r.Get("/me", h.Me)
		r.Patch("/updateMe", h.UpdateMe)
		r.Delete("/deleteMe", h.DeleteMe)
		r.Patch("/deleteMe", h.DeleteMe)

		r.Group(func(r chi.Router) {
			r.Use(restrict(adminsOnly))
			r.Get("/", h.List())
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get())
			r.Patch("/{id}", h.Update())
			r.Delete("/{id}", h.Delete())
		})
	})
}

func tourRoutes(r chi.Router, deps Deps, protect gate, restrict func([]string) gate) {
	h := controllers.NewTours(deps.Tours, deps.Logger)

	r.Route("/{tourId}/reviews", func(r chi.Router) {
		reviewRoutes(r, deps, protect, restrict)
	})

	list := h.List()
	r.Get("/top-5-cheap", controllers.TopCheap(list).ServeHTTP)
	r.Get("/top-5-cheap-tours", controllers.TopCheap(list).ServeHTTP)
	r.Get("/tour-stats", h.Stats)
	r.With(protect, restrict(tourCrew)).Get("/monthly-plan/{year}", h.MonthlyPlan)
	r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", h.Within)
	r.Get("/distances-from/{latlng}/unit/{unit}", h.Distances)
	r.Get("/distances/{latlng}/unit/{unit}", h.Distances)

	r.Get("/", list)
	r.With(protect, restrict(staff)).Post("/", h.Create())
	r.Get("/{id}", h.Get())
	r.With(protect, restrict(staff)).Patch("/{id}", h.Update())
	r.With(protect, restrict(staff)).Delete("/{id}", h.Delete())
}

func reviewRoutes(r chi.Router, deps Deps, protect gate, restrict func([]string) gate) {
	h := controllers.NewReviews(deps.Reviews, deps.Logger)

	r.With(protect).Get("/", h.List)
	r.With(protect, restrict([]string{string(enums.RoleUser)})).Post("/", h.Create)
	r.Get("/{id}", h.Get())
	r.With(protect, restrict(reviewers)).Patch("/{id}", h.Update)
	r.With(protect, restrict(reviewers)).Delete("/{id}", h.Delete)
}

func bookingRoutes(r chi.Router, deps Deps, protect gate, restrict func([]string) gate) {
	h := controllers.NewBookings(deps.Bookings, deps.Logger)

	r.Use(protect)
	r.Get("/checkout-session/{tourId}", h.CheckoutSession)
	r.Get("/me", h.Mine)
	r.Delete("/me/{bookingId}", h.CancelMine)

	r.Group(func(r chi.Router) {
		r.Use(restrict(staff))
		r.Get("/", h.List())
		r.Post("/", h.Create())
		r.Get("/{id}", h.Get())
		r.Patch("/{id}", h.Update())
		r.Delete("/{id}", h.Delete)
	})
}
