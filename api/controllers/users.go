package controllers

import (
	"net/http"

	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Users groups the self-service and admin handlers for accounts.
type Users struct {
	svc *users.Service
	res Resource[models.User]
}

func NewUsers(svc *users.Service, logg *logger.Logger) *Users {
	return &Users{svc: svc, res: Resource[models.User]{Schema: users.Schema, Logger: logg}}
}

func (h *Users) Me(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	if caller == nil {
		h.notLoggedIn(w, r)
		return
	}
	user, err := h.svc.Me(r.Context(), caller.ID)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeOne(w, r, http.StatusOK, user, query.Params{})
}

// UpdateMe changes the caller's name or email.
func (h *Users) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	if caller == nil {
		h.notLoggedIn(w, r)
		return
	}
	patch, err := validators.DecodePatch(r)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	user, err := h.svc.UpdateMe(r.Context(), caller.ID, patch)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeOne(w, r, http.StatusOK, user, query.Params{})
}

// DeleteMe deactivates the caller's account.
func (h *Users) DeleteMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	if caller == nil {
		h.notLoggedIn(w, r)
		return
	}
	if err := h.svc.DeleteMe(r.Context(), caller.ID); err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteNoContent(w)
}

func (h *Users) List() http.HandlerFunc   { return h.res.GetAll(h.svc.List) }
func (h *Users) Get() http.HandlerFunc    { return h.res.GetOne(h.svc.Get) }
func (h *Users) Update() http.HandlerFunc { return h.res.UpdateOne(h.svc.Update) }
func (h *Users) Delete() http.HandlerFunc { return h.res.DeleteOne(h.svc.Delete) }

// Create always points callers at signup.
func (h *Users) Create(w http.ResponseWriter, r *http.Request) {
	responses.WriteError(r.Context(), h.res.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "This route is not defined! Please use /signup instead"))
}

func (h *Users) notLoggedIn(w http.ResponseWriter, r *http.Request) {
	responses.WriteError(r.Context(), h.res.Logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
}
