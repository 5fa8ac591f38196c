package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestWriteDocument(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDocument(w, http.StatusCreated, map[string]string{"name": "The Forest Hiker"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 but got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "success" {
		t.Fatalf("unexpected status %v", body["status"])
	}
	inner := body["data"].(map[string]any)["data"].(map[string]any)
	if inner["name"] != "The Forest Hiker" {
		t.Fatalf("unexpected payload %v", inner)
	}
}

func TestWriteListCountsResults(t *testing.T) {
	w := httptest.NewRecorder()
	WriteList(w, []map[string]any{{"id": "a"}, {"id": "b"}})

	body := decode(t, w)
	if body["results"] != float64(2) {
		t.Fatalf("expected results=2, got %v", body["results"])
	}

	w = httptest.NewRecorder()
	WriteList[map[string]any](w, nil)
	body = decode(t, w)
	if body["results"] != float64(0) {
		t.Fatalf("expected results=0, got %v", body["results"])
	}
	if docs := body["data"].(map[string]any)["data"].([]any); len(docs) != 0 {
		t.Fatalf("expected empty list, got %v", docs)
	}
}

func TestWriteErrorOperational(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data. A tour must have a name").
		WithDetails([]string{"A tour must have a name"})
	WriteError(context.Background(), logger.Nop(), w, err)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 but got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "fail" {
		t.Fatalf("expected fail status, got %v", body["status"])
	}
	if body["message"] != "Invalid input data. A tour must have a name" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if errs, ok := body["errors"].([]any); !ok || len(errs) != 1 {
		t.Fatalf("expected one listed violation, got %v", body["errors"])
	}
	if _, ok := body["stack"]; ok {
		t.Fatalf("stack must not leak outside debug mode")
	}
}

func TestWriteErrorMasksInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 but got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "error" {
		t.Fatalf("expected error status, got %v", body["status"])
	}
	if body["message"] != "Something went very wrong!" {
		t.Fatalf("expected generic message, got %v", body["message"])
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("error chain must not leak outside debug mode")
	}
}

func TestWriteErrorDebugIncludesChainAndStack(t *testing.T) {
	w := httptest.NewRecorder()
	ctx := WithDebug(context.Background(), true)
	WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("boom"), "load tour"))

	body := decode(t, w)
	if body["message"] != "load tour" {
		t.Fatalf("expected raw message in debug mode, got %v", body["message"])
	}
	if body["stack"] == nil || body["stack"] == "" {
		t.Fatalf("expected stack in debug mode")
	}
	detail, ok := body["error"].(map[string]any)
	if !ok || detail["chain"] == nil {
		t.Fatalf("expected error chain, got %v", body["error"])
	}
}

func TestWriteToken(t *testing.T) {
	w := httptest.NewRecorder()
	WriteToken(w, http.StatusCreated, "jwt-value", map[string]string{"name": "Jonas"})

	body := decode(t, w)
	if body["token"] != "jwt-value" {
		t.Fatalf("unexpected token %v", body["token"])
	}
	user := body["data"].(map[string]any)["user"].(map[string]any)
	if user["name"] != "Jonas" {
		t.Fatalf("unexpected user %v", user)
	}
}
