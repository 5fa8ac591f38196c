package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Tours groups the catalog handlers.
type Tours struct {
	svc *tours.Service
	res Resource[models.Tour]
}

func NewTours(svc *tours.Service, logg *logger.Logger) *Tours {
	return &Tours{svc: svc, res: Resource[models.Tour]{Schema: tours.Schema, Present: tours.Present, Logger: logg}}
}

func (h *Tours) List() http.HandlerFunc   { return h.res.GetAll(h.svc.List) }
func (h *Tours) Get() http.HandlerFunc    { return h.res.GetOne(h.svc.Get) }
func (h *Tours) Create() http.HandlerFunc { return h.res.CreateOne(h.svc.Create) }
func (h *Tours) Update() http.HandlerFunc { return h.res.UpdateOne(h.svc.Update) }
func (h *Tours) Delete() http.HandlerFunc { return h.res.DeleteOne(h.svc.Delete) }

// TopCheap rewrites the query to the five best rated, cheapest tours and
// hands over to the list handler.
func TopCheap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r2 := r.Clone(r.Context())
		r2.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r2)
	})
}

// Stats aggregates the catalog by difficulty.
func (h *Tours) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"stats": stats})
}

// MonthlyPlan counts tour starts per month of the requested year.
func (h *Tours) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := tours.ParseYear(chi.URLParam(r, "year"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	plan, err := h.svc.MonthlyPlan(r.Context(), year)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"plan": plan})
}

// Within lists tours starting inside a radius around a point.
func (h *Tours) Within(w http.ResponseWriter, r *http.Request) {
	radius, err := tours.ParseDistance(chi.URLParam(r, "distance"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	center, err := tours.ParseCenter(chi.URLParam(r, "latlng"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	unit, err := tours.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	found, err := h.svc.Within(r.Context(), radius, center, unit)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	h.res.writeList(w, r, found, query.Params{})
}

// Distances lists every tour by distance from a point, nearest first.
func (h *Tours) Distances(w http.ResponseWriter, r *http.Request) {
	center, err := tours.ParseCenter(chi.URLParam(r, "latlng"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	unit, err := tours.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	distances, err := h.svc.Distances(r.Context(), center, unit)
	if err != nil {
		responses.WriteError(r.Context(), h.res.Logger, w, err)
		return
	}
	responses.WriteList(w, distances)
}
