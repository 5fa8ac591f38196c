package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Reviews serves both /reviews and the tour-scoped /tours/{tourId}/reviews.
type Reviews struct {
	svc *reviews.Service
	res Resource[models.Review]
}

func NewReviews(svc *reviews.Service, logg *logger.Logger) *Reviews {
	return &Reviews{svc: svc, res: Resource[models.Review]{Schema: reviews.Schema, Present: reviews.Present, Logger: logg}}
}

func (h *Reviews) Get() http.HandlerFunc { return h.res.GetOne(h.svc.Get) }

// List returns reviews, limited to the tour of the nested route when present.
func (h *Reviews) List(w http.ResponseWriter, r *http.Request) {
	tourID, err := routeTour(r)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	params, err := query.Parse(r.URL.Query(), h.res.Schema)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	found, err := h.svc.List(r.Context(), tourID, params)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeList(w, r, found, params)
}

// Create stores a review written by the caller.
func (h *Reviews) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tourID, err := routeTour(r)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	patch, err := validators.DecodePatch(r)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	review, err := h.svc.Create(r.Context(), actor, tourID, patch)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeOne(w, r, http.StatusCreated, review, query.Params{})
}

func (h *Reviews) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	patch, err := validators.DecodePatch(r)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	review, err := h.svc.Update(r.Context(), actor, id, patch)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeOne(w, r, http.StatusOK, review, query.Params{})
}

func (h *Reviews) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteNoContent(w)
}

func (h *Reviews) actor(w http.ResponseWriter, r *http.Request) (reviews.Actor, bool) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		responses.WriteError(r.Context(), h.res.Logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
		return reviews.Actor{}, false
	}
	return reviews.Actor{ID: user.ID, Role: user.Role}, true
}

func routeTour(r *http.Request) (*uuid.UUID, error) {
	if chi.URLParam(r, "tourId") == "" {
		return nil, nil
	}
	id, err := pathID(r, "tourId")
	if err != nil {
		return nil, err
	}
	return &id, nil
}
