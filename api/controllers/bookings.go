package controllers

import (
	"net/http"

	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Bookings groups the customer and staff booking handlers.
type Bookings struct {
	svc *bookings.Service
	res Resource[models.Booking]
}

func NewBookings(svc *bookings.Service, logg *logger.Logger) *Bookings {
	return &Bookings{svc: svc, res: Resource[models.Booking]{Schema: bookings.Schema, Present: bookings.Present, Logger: logg}}
}

func (h *Bookings) List() http.HandlerFunc   { return h.res.GetAll(h.svc.List) }
func (h *Bookings) Get() http.HandlerFunc    { return h.res.GetOne(h.svc.Get) }
func (h *Bookings) Create() http.HandlerFunc { return h.res.CreateOne(h.svc.Create) }
func (h *Bookings) Update() http.HandlerFunc { return h.res.UpdateOne(h.svc.Update) }

// Delete cancels any booking under the configured policy.
func (h *Bookings) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	if err := h.svc.Cancel(r.Context(), id, nil); err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteNoContent(w)
}

// CheckoutSession opens a Stripe Checkout page for the tour in the path.
func (h *Bookings) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	user := h.caller(w, r)
	if user == nil {
		return
	}
	tourID, err := pathID(r, "tourId")
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	sess, err := h.svc.CheckoutSession(r.Context(), bookings.Buyer{ID: user.ID, Email: user.Email}, tourID)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"session": sess})
}

// Mine lists the caller's active bookings.
func (h *Bookings) Mine(w http.ResponseWriter, r *http.Request) {
	user := h.caller(w, r)
	if user == nil {
		return
	}
	found, err := h.svc.Mine(r.Context(), user.ID)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeList(w, r, found, query.Params{})
}

// CancelMine cancels one of the caller's own bookings.
func (h *Bookings) CancelMine(w http.ResponseWriter, r *http.Request) {
	user := h.caller(w, r)
	if user == nil {
		return
	}
	id, err := pathID(r, "bookingId")
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	if err := h.svc.Cancel(r.Context(), id, &user.ID); err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteNoContent(w)
}

func (h *Bookings) caller(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		responses.WriteError(r.Context(), h.res.Logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
	}
	return user
}
