package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/resource"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Resource binds the serialization of one record type to its query schema.
// Its handlers are generic over any service that exposes the matching
// operation.
type Resource[T any] struct {
	Schema  query.Schema
	Present func(*T) any
	Logger  *logger.Logger
}

type (
	getFunc[T any]    func(ctx context.Context, id uuid.UUID) (*T, error)
	listFunc[T any]   func(ctx context.Context, params query.Params) ([]T, error)
	createFunc[T any] func(ctx context.Context, patch resource.Patch) (*T, error)
	updateFunc[T any] func(ctx context.Context, id uuid.UUID, patch resource.Patch) (*T, error)
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
)

// CreateOne decodes the body into a patch and responds 201 with the record.
func (res Resource[T]) CreateOne(create createFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, err := validators.DecodePatch(r)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		rec, err := create(r.Context(), patch)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		res.writeOne(w, r, http.StatusCreated, rec, query.Params{})
	}
}

// GetOne loads the record named by the id URL parameter.
func (res Resource[T]) GetOne(get getFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		rec, err := get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		res.writeOne(w, r, http.StatusOK, rec, query.Params{})
	}
}

// GetAll parses the query string against the schema and lists a page.
func (res Resource[T]) GetAll(list listFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := query.Parse(r.URL.Query(), res.Schema)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		records, err := list(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		res.writeList(w, r, records, params)
	}
}

// UpdateOne applies the body as a partial update to the record named by id.
func (res Resource[T]) UpdateOne(update updateFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		patch, err := validators.DecodePatch(r)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		rec, err := update(r.Context(), id, patch)
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		res.writeOne(w, r, http.StatusOK, rec, query.Params{})
	}
}

// DeleteOne removes the record named by id and responds 204.
func (res Resource[T]) DeleteOne(del deleteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		if err := del(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), res.Logger, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func (res Resource[T]) writeOne(w http.ResponseWriter, r *http.Request, status int, rec *T, params query.Params) {
	var v any = rec
	if res.Present != nil {
		v = res.Present(rec)
	}
	doc, err := resource.Document(v, params, res.Schema)
	if err != nil {
		responses.WriteError(r.Context(), res.Logger, w, err)
		return
	}
	responses.WriteDocument(w, status, doc)
}

func (res Resource[T]) writeList(w http.ResponseWriter, r *http.Request, records []T, params query.Params) {
	docs, err := resource.Documents(records, params, res.Schema, res.Present)
	if err != nil {
		responses.WriteError(r.Context(), res.Logger, w, err)
		return
	}
	responses.WriteList(w, docs)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Invalid %s: %s", name, raw))
	}
	return id, nil
}
